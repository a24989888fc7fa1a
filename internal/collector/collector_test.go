package collector

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/storage"
)

const testEmail = "ops@example.com"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testDeps wires a collector at a fake exchange. The budget is effectively
// unlimited and sleeps return immediately so policy paths run instantly.
func testDeps(t *testing.T, store *storage.MemoryStore, handler http.Handler) *Deps {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := binance.NewClient(binance.Config{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		APISecret: "test-secret",
		Budget:    binance.NewWeightBudget(1_000_000, time.Minute),
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &Deps{
		Client:      client,
		Store:       store,
		Email:       testEmail,
		AccountType: AccountMain,
		ExportDir:   t.TempDir(),
		Logger:      quietLogger(),
		sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func depositFixture() binance.Deposit {
	return binance.Deposit{
		ID:         "d1",
		Amount:     "1.5",
		Coin:       "BTC",
		Network:    "BTC",
		Status:     depositStatusSuccess,
		Address:    "bc1qaddr",
		TxID:       "hash1",
		InsertTime: 1714521600000,
	}
}

func dayWindow() (time.Time, time.Time) {
	end := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, 0, -1), end
}

func TestRunAccumulatesErrors(t *testing.T) {
	store := storage.NewMemoryStore()
	deps := testDeps(t, store, http.NotFoundHandler())
	r := newRun(deps, "test", time.Now().Add(-time.Hour), time.Now(), transferColumns)

	r.logError(context.Background(), "data_shape_error", "BTCUSDT", "bad field", nil)
	r.logError(context.Background(), "storage_error", "", "db down", nil)

	if len(r.errs) != 2 {
		t.Fatalf("run holds %d errors, want 2", len(r.errs))
	}
	if len(store.Errors) != 2 {
		t.Fatalf("store holds %d errors, want 2", len(store.Errors))
	}
	if store.Errors[0].RunID != r.id {
		t.Error("persisted error missing run id")
	}
	if store.Errors[0].Symbol != "BTCUSDT" {
		t.Errorf("symbol = %q, want BTCUSDT", store.Errors[0].Symbol)
	}
}

func TestHandleAPIErrorPolicy(t *testing.T) {
	store := storage.NewMemoryStore()
	deps := testDeps(t, store, http.NotFoundHandler())
	r := newRun(deps, "test", time.Now().Add(-time.Hour), time.Now(), transferColumns)
	ctx := context.Background()

	cases := []struct {
		name     string
		err      error
		expected action
	}{
		{"rate limit retries", &binance.APIError{Category: binance.ErrRateLimit}, actionRetry},
		{"invalid symbol skips", &binance.APIError{Category: binance.ErrInvalidSymbol}, actionSkip},
		{"bad key aborts", &binance.APIError{Category: binance.ErrAPIKeyInvalid}, actionAbort},
		{"parameter error skips", &binance.APIError{Category: binance.ErrParameter}, actionSkip},
		{"unknown skips", &binance.APIError{Category: binance.ErrUnknown}, actionSkip},
		{"plain error skips", io.ErrUnexpectedEOF, actionSkip},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.handleAPIError(ctx, tc.err, ""); got != tc.expected {
				t.Errorf("action = %d, want %d", got, tc.expected)
			}
		})
	}
}

func TestFetchWithPolicyRecordsExhaustedRateLimit(t *testing.T) {
	store := storage.NewMemoryStore()
	deps := testDeps(t, store, http.NotFoundHandler())
	r := newRun(deps, "test", time.Now().Add(-time.Hour), time.Now(), tradeColumns)

	calls := 0
	_, ok, err := fetchWithPolicy(context.Background(), r, "ETHUSDT", func(context.Context) ([]binance.Trade, error) {
		calls++
		return nil, &binance.APIError{Category: binance.ErrRateLimit, HTTPStatus: 429}
	})
	if err != nil {
		t.Fatalf("exhausted rate limit must not abort the run: %v", err)
	}
	if ok {
		t.Error("unit should be dropped after the retry is spent")
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want exactly one retry", calls)
	}

	// The dropped unit lands in the error log for manual replay.
	found := false
	for _, e := range store.Errors {
		if e.ErrorType == "rate_limit_exhausted" && e.Symbol == "ETHUSDT" {
			found = true
		}
	}
	if !found {
		t.Errorf("no rate_limit_exhausted error recorded, got %+v", store.Errors)
	}
}

func TestHandleAPIErrorDeactivatesSymbol(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.UpsertTradedSymbol(context.Background(), testEmail, "DEADUSDT", time.Now())

	deps := testDeps(t, store, http.NotFoundHandler())
	r := newRun(deps, "test", time.Now().Add(-time.Hour), time.Now(), transferColumns)

	r.handleAPIError(context.Background(), &binance.APIError{Category: binance.ErrInvalidSymbol}, "DEADUSDT")

	entry := store.TradedSymbolEntry(testEmail, "DEADUSDT")
	if entry == nil {
		t.Fatal("traded symbol entry missing")
	}
	if entry.Active {
		t.Error("symbol should be inactive after invalid-symbol error")
	}
}
