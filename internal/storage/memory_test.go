package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinfrs/recon/internal/models"
)

func TestUpsertTransferKeyedOnSourceAndExternalID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := models.Transfer{
		Source:     models.SourceBinanceAPI,
		ExternalID: "deposit_1",
		Email:      "a@example.com",
		Asset:      "BTC",
		Amount:     decimal.NewFromInt(1),
	}
	if err := store.UpsertTransfer(ctx, &first); err != nil {
		t.Fatal(err)
	}
	update := first
	update.Amount = decimal.NewFromInt(2)
	if err := store.UpsertTransfer(ctx, &update); err != nil {
		t.Fatal(err)
	}

	rows := store.Transfers()
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if !rows[0].Amount.Equal(decimal.NewFromInt(2)) {
		t.Errorf("amount = %s, want updated value 2", rows[0].Amount)
	}
}

func TestTransfersBetweenHalfOpen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{0, time.Hour, 24 * time.Hour, 25 * time.Hour} {
		err := store.UpsertTransfer(ctx, &models.Transfer{
			Source:     models.SourceBinanceAPI,
			ExternalID: "t" + string(rune('a'+i)),
			Email:      "a@example.com",
			Datetime:   base.Add(offset),
			Asset:      "BTC",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	// (base, base+24h]: excludes the record at exactly base, includes the
	// one at exactly base+24h.
	rows, err := store.TransfersBetween(ctx, "a@example.com", base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2 in the half-open window", len(rows))
	}
}

func TestBalanceDateTruncation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.UpsertBalance(ctx, &models.Balance{
		Email:      "a@example.com",
		Date:       time.Date(2024, 5, 1, 23, 59, 59, 0, time.UTC),
		Wallet:     models.WalletSpot,
		Asset:      "BTC",
		RawBalance: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := store.BalancesOn(ctx, "a@example.com", time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("date lookup ignores time of day, got %d rows", len(rows))
	}
}

func TestMarkSymbolInactive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.UpsertTradedSymbol(ctx, "a@example.com", "BTCUSDT", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkSymbolInactive(ctx, "a@example.com", "BTCUSDT"); err != nil {
		t.Fatal(err)
	}
	active, err := store.ActiveTradedSymbols(ctx, "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("inactive symbol still listed: %v", active)
	}
}
