package collector

import (
	"context"
	"net/http"
	"testing"

	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

func TestConvertCollectorDecomposesLegs(t *testing.T) {
	store := storage.NewMemoryStore()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"list":[
			{"quoteId":"q1","orderId":99,"orderStatus":"SUCCESS","fromAsset":"ETH","fromAmount":"2","toAsset":"USDT","toAmount":"6000","ratio":"3000","inverseRatio":"0.00033","createTime":1714550400000},
			{"quoteId":"q2","orderId":100,"orderStatus":"FAILED","fromAsset":"BTC","fromAmount":"1","toAsset":"USDT","toAmount":"60000","ratio":"60000","inverseRatio":"0.000016","createTime":1714554000000}
		],"moreData":false}`))
	})
	c := NewConvertCollector(testDeps(t, store, handler))
	start, end := dayWindow()

	result, err := c.Collect(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if result.Collected != 2 {
		t.Errorf("collected = %d, want 2", result.Collected)
	}
	// Only the successful convert books, as two legs.
	if result.Saved != 2 {
		t.Errorf("saved = %d, want 2", result.Saved)
	}

	rows := make(map[string]models.TradeRecord)
	for _, tr := range store.Trades() {
		rows[tr.ExternalID] = tr
	}
	if len(rows) != 2 {
		t.Fatalf("store holds %d rows, want 2", len(rows))
	}

	sell := rows["convert_sell_99"]
	if sell.TxnSubtype != models.SubConvertSell || sell.Asset != "ETH" {
		t.Errorf("sell leg = %s of %s", sell.TxnSubtype, sell.Asset)
	}
	if !sell.Amount.Equal(mustDecimal(t, "-2")) {
		t.Errorf("sell amount = %s, want -2", sell.Amount)
	}

	buy := rows["convert_buy_99"]
	if buy.TxnSubtype != models.SubConvertBuy || buy.Asset != "USDT" {
		t.Errorf("buy leg = %s of %s", buy.TxnSubtype, buy.Asset)
	}
	if !buy.Amount.Equal(mustDecimal(t, "6000")) {
		t.Errorf("buy amount = %s, want 6000", buy.Amount)
	}

	// Both legs carry the implied price toAmount/fromAmount.
	for name, leg := range map[string]models.TradeRecord{"sell": sell, "buy": buy} {
		if leg.Price == nil || !leg.Price.Equal(mustDecimal(t, "3000")) {
			t.Errorf("%s leg price missing or wrong", name)
		}
	}
}

func TestConvertCollectorZeroFromAmount(t *testing.T) {
	store := storage.NewMemoryStore()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"list":[{"quoteId":"q3","orderId":101,"orderStatus":"SUCCESS","fromAsset":"DUST","fromAmount":"0","toAsset":"BNB","toAmount":"0.001","ratio":"0","inverseRatio":"0","createTime":1714550400000}],"moreData":false}`))
	})
	c := NewConvertCollector(testDeps(t, store, handler))
	start, end := dayWindow()

	if _, err := c.Collect(context.Background(), start, end); err != nil {
		t.Fatal(err)
	}
	// Legs book without a price instead of dividing by zero.
	for _, tr := range store.Trades() {
		if tr.Price != nil {
			t.Errorf("%s should have no price", tr.ExternalID)
		}
	}
	if n := len(store.Trades()); n != 2 {
		t.Errorf("store holds %d rows, want 2", n)
	}
}
