package collector

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

func seedSymbol(t *testing.T, store *storage.MemoryStore, symbol, base, quote string) {
	t.Helper()
	err := store.UpsertExchangeSymbol(context.Background(), &models.ExchangeSymbol{
		Symbol:               symbol,
		BaseAsset:            base,
		QuoteAsset:           quote,
		Status:               "TRADING",
		IsSpotTradingAllowed: true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTradeCollectorDecomposesSides(t *testing.T) {
	store := storage.NewMemoryStore()
	seedSymbol(t, store, "ETHUSDT", "ETH", "USDT")
	_ = store.UpsertTradedSymbol(context.Background(), testEmail, "ETHUSDT", time.Now())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "ETHUSDT" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[
			{"symbol":"ETHUSDT","id":1,"orderId":11,"price":"3000","qty":"2","quoteQty":"6000","commission":"0.002","commissionAsset":"ETH","time":1714550400000,"isBuyer":true,"isMaker":false},
			{"symbol":"ETHUSDT","id":2,"orderId":12,"price":"3000","qty":"1","quoteQty":"3000","commission":"3","commissionAsset":"USDT","time":1714554000000,"isBuyer":false,"isMaker":true}
		]`))
	})
	c := NewTradeCollector(testDeps(t, store, handler))
	start, end := dayWindow()

	result, err := c.Collect(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if result.Saved != 2 || result.FeesSaved != 2 {
		t.Errorf("saved = %d, fees = %d, want 2 and 2", result.Saved, result.FeesSaved)
	}

	rows := make(map[string]models.TradeRecord)
	for _, tr := range store.Trades() {
		rows[tr.ExternalID] = tr
	}
	if len(rows) != 4 {
		t.Fatalf("store holds %d rows, want 4", len(rows))
	}

	// The buy books the base asset received.
	buy := rows["trade_1"]
	if buy.TxnSubtype != models.SubSpotBuy || buy.Asset != "ETH" {
		t.Errorf("buy = %s of %s, want spot_buy of ETH", buy.TxnSubtype, buy.Asset)
	}
	if !buy.Amount.Equal(mustDecimal(t, "2")) {
		t.Errorf("buy amount = %s, want 2", buy.Amount)
	}
	if buy.Price == nil || !buy.Price.Equal(mustDecimal(t, "3000")) {
		t.Error("buy price missing or wrong")
	}

	// The sell books the quote asset, negated.
	sell := rows["trade_2"]
	if sell.TxnSubtype != models.SubSpotSell || sell.Asset != "USDT" {
		t.Errorf("sell = %s of %s, want spot_sell of USDT", sell.TxnSubtype, sell.Asset)
	}
	if !sell.Amount.Equal(mustDecimal(t, "-3000")) {
		t.Errorf("sell amount = %s, want -3000", sell.Amount)
	}

	// Fees split by liquidity side, in the commission asset.
	takerFee := rows["trade_fee_1"]
	if takerFee.TxnSubtype != models.SubTakerFee || takerFee.Asset != "ETH" || !takerFee.Amount.Equal(mustDecimal(t, "-0.002")) {
		t.Errorf("taker fee wrong: %+v", takerFee)
	}
	makerFee := rows["trade_fee_2"]
	if makerFee.TxnSubtype != models.SubMakerFee || makerFee.Asset != "USDT" || !makerFee.Amount.Equal(mustDecimal(t, "-3")) {
		t.Errorf("maker fee wrong: %+v", makerFee)
	}

	entry := store.TradedSymbolEntry(testEmail, "ETHUSDT")
	if entry == nil || !entry.Active {
		t.Error("traded symbol cache not refreshed")
	}
}

func TestTradeCollectorIsolatesInvalidSymbol(t *testing.T) {
	store := storage.NewMemoryStore()
	seedSymbol(t, store, "GOODUSDT", "GOOD", "USDT")
	seedSymbol(t, store, "BADUSDT", "BAD", "USDT")
	_ = store.UpsertTradedSymbol(context.Background(), testEmail, "GOODUSDT", time.Now())
	_ = store.UpsertTradedSymbol(context.Background(), testEmail, "BADUSDT", time.Now())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "BADUSDT":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		case "GOODUSDT":
			w.Write([]byte(`[{"symbol":"GOODUSDT","id":5,"orderId":50,"price":"10","qty":"4","quoteQty":"40","commission":"0","commissionAsset":"USDT","time":1714550400000,"isBuyer":true,"isMaker":true}]`))
		default:
			w.Write([]byte(`[]`))
		}
	})
	c := NewTradeCollector(testDeps(t, store, handler))
	start, end := dayWindow()

	result, err := c.Collect(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if result.Saved != 1 {
		t.Errorf("saved = %d, want the good symbol's trade", result.Saved)
	}
	// The bad symbol is logged and deactivated, not fatal.
	if len(store.Errors) == 0 {
		t.Fatal("expected an ingestion error for the bad symbol")
	}
	found := false
	for _, e := range store.Errors {
		if e.ErrorType == "invalid_symbol" && e.Symbol == "BADUSDT" {
			found = true
		}
	}
	if !found {
		t.Errorf("no invalid_symbol error for BADUSDT in %+v", store.Errors)
	}
	entry := store.TradedSymbolEntry(testEmail, "BADUSDT")
	if entry == nil || entry.Active {
		t.Error("bad symbol should be deactivated in the cache")
	}
}

func TestTradeCollectorAdvancesCursorPastInvalidTrades(t *testing.T) {
	store := storage.NewMemoryStore()
	seedSymbol(t, store, "ETHUSDT", "ETH", "USDT")
	_ = store.UpsertTradedSymbol(context.Background(), testEmail, "ETHUSDT", time.Now())

	// A full page whose trailing trade fails validation: the cursor must
	// still move past it, so the next request starts after the page.
	calls := 0
	var fromIDs []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "ETHUSDT" {
			w.Write([]byte(`[]`))
			return
		}
		calls++
		fromIDs = append(fromIDs, r.URL.Query().Get("fromId"))
		if calls > 1 {
			w.Write([]byte(`[]`))
			return
		}
		var b strings.Builder
		b.WriteString("[")
		for id := 1; id <= binance.PageLimitDefault; id++ {
			if id > 1 {
				b.WriteString(",")
			}
			qty := `"1"`
			if id == binance.PageLimitDefault {
				qty = `"garbage"`
			}
			fmt.Fprintf(&b, `{"symbol":"ETHUSDT","id":%d,"orderId":%d,"price":"10","qty":%s,"quoteQty":"10","commission":"0","commissionAsset":"USDT","time":1714550400000,"isBuyer":true,"isMaker":true}`, id, id, qty)
		}
		b.WriteString("]")
		w.Write([]byte(b.String()))
	})
	c := NewTradeCollector(testDeps(t, store, handler))
	start, end := dayWindow()

	result, err := c.Collect(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("endpoint called %d times, want 2", calls)
	}
	if want := strconv.Itoa(binance.PageLimitDefault + 1); fromIDs[1] != want {
		t.Errorf("second page fromId = %s, want %s", fromIDs[1], want)
	}
	if result.Saved != binance.PageLimitDefault-1 {
		t.Errorf("saved = %d, want %d valid trades", result.Saved, binance.PageLimitDefault-1)
	}
}

func TestTradeCollectorRequiresSymbolDirectory(t *testing.T) {
	store := storage.NewMemoryStore()
	c := NewTradeCollector(testDeps(t, store, http.NotFoundHandler()))
	start, end := dayWindow()

	result, err := c.Collect(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if result.Saved != 0 {
		t.Errorf("saved = %d, want 0 without a directory", result.Saved)
	}
	if len(store.Errors) != 1 || store.Errors[0].ErrorType != "symbol_cache_empty" {
		t.Errorf("expected a symbol_cache_empty error, got %+v", store.Errors)
	}
}
