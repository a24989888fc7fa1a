package collector

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

func TestSnapshotCollectorExpandsBalances(t *testing.T) {
	store := storage.NewMemoryStore()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("type") {
		case "SPOT":
			w.Write([]byte(`{"code":200,"msg":"","snapshotVos":[
				{"type":"spot","updateTime":1714607999000,"data":{"totalAssetOfBtc":"1.6","balances":[
					{"asset":"BTC","free":"1","locked":"0.5"},
					{"asset":"USDT","free":"0","locked":"0"}
				]}}
			]}`))
		case "MARGIN":
			w.Write([]byte(`{"code":200,"msg":"","snapshotVos":[
				{"type":"margin","updateTime":1714607999000,"data":{"totalAssetOfBtc":"0.1","userAssets":[
					{"asset":"ETH","marginBalance":"4"}
				]}}
			]}`))
		default:
			w.Write([]byte(`{"code":200,"msg":"","snapshotVos":[]}`))
		}
	})
	c := NewSnapshotCollector(testDeps(t, store, handler))
	start, end := dayWindow()

	result, err := c.Collect(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	// Zero USDT balance is dropped: one spot row plus one margin row.
	if result.Saved != 2 {
		t.Errorf("saved = %d, want 2", result.Saved)
	}
	if result.Subflows["SPOT"] != 1 || result.Subflows["MARGIN"] != 1 {
		t.Errorf("subflows = %+v", result.Subflows)
	}

	date := time.UnixMilli(1714607999000).UTC().Truncate(24 * time.Hour)
	balances, err := store.BalancesOn(context.Background(), testEmail, date)
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != 2 {
		t.Fatalf("store holds %d balances on %v, want 2", len(balances), date)
	}
	byAsset := make(map[string]models.Balance)
	for _, b := range balances {
		byAsset[b.Asset] = b
	}
	btc := byAsset["BTC"]
	if btc.Wallet != models.WalletSpot || !btc.RawBalance.Equal(mustDecimal(t, "1.5")) {
		t.Errorf("BTC snapshot = %s on %s, want 1.5 on SPOT", btc.RawBalance, btc.Wallet)
	}
	eth := byAsset["ETH"]
	if eth.Wallet != models.WalletMargin || !eth.RawBalance.Equal(mustDecimal(t, "4")) {
		t.Errorf("ETH snapshot = %s on %s, want 4 on MARGIN", eth.RawBalance, eth.Wallet)
	}
}

func TestSnapshotCollectorRefreshKeepsCalc(t *testing.T) {
	store := storage.NewMemoryStore()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "SPOT" {
			w.Write([]byte(`{"code":200,"msg":"","snapshotVos":[]}`))
			return
		}
		w.Write([]byte(`{"code":200,"msg":"","snapshotVos":[
			{"type":"spot","updateTime":1714607999000,"data":{"totalAssetOfBtc":"1","balances":[{"asset":"BTC","free":"1","locked":"0"}]}}
		]}`))
	})
	c := NewSnapshotCollector(testDeps(t, store, handler))
	start, end := dayWindow()

	if _, err := c.Collect(context.Background(), start, end); err != nil {
		t.Fatal(err)
	}
	date := time.UnixMilli(1714607999000).UTC().Truncate(24 * time.Hour)
	cal := mustDecimal(t, "1")
	err := store.UpdateBalanceCalc(context.Background(), &models.Balance{
		Email:      testEmail,
		Date:       date,
		Wallet:     models.WalletSpot,
		Asset:      "BTC",
		CalBalance: &cal,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Re-pulling the snapshot refreshes raw_* but leaves the calc result.
	if _, err := c.Collect(context.Background(), start, end); err != nil {
		t.Fatal(err)
	}
	balances, _ := store.BalancesOn(context.Background(), testEmail, date)
	if len(balances) != 1 {
		t.Fatalf("store holds %d balances, want 1", len(balances))
	}
	if balances[0].CalBalance == nil || !balances[0].CalBalance.Equal(cal) {
		t.Error("re-ingest must not clobber cal_balance")
	}
}
