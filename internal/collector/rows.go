package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/models"
)

// fetchWithPolicy wraps one API call with the shared error policy: a rate
// limit gets exactly one retry after the window wait, broken credentials
// abort the whole run, anything else skips this unit of work. The bool
// reports whether value is usable.
func fetchWithPolicy[T any](ctx context.Context, r *run, symbol string, fn func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, true, nil
		}
		switch r.handleAPIError(ctx, err, symbol) {
		case actionAbort:
			var apiErr *binance.APIError
			if errors.As(err, &apiErr) && apiErr.Category == binance.ErrAPIKeyInvalid {
				return zero, false, fmt.Errorf("%w: %v", ErrCredentials, err)
			}
			return zero, false, err
		case actionRetry:
			if attempt == 0 {
				continue
			}
			// The retry is spent. The unit is dropped, so it has to
			// land in the error log for manual replay.
			r.logError(ctx, "rate_limit_exhausted", symbol, err.Error(), err)
			return zero, false, nil
		default:
			return zero, false, nil
		}
	}
}

var (
	transferColumns = []string{
		"datetime", "email", "txn_type", "txn_subtype", "wallet",
		"asset", "amount", "counter_party", "network", "txn_hash",
	}
	tradeColumns = []string{
		"datetime", "email", "txn_type", "txn_subtype", "symbol",
		"asset", "amount", "price", "external_id",
	}
	balanceColumns = []string{
		"date", "email", "wallet", "asset",
		"balance", "loan", "interest", "unrealised_pnl",
	}
	symbolColumns = []string{
		"symbol", "base_asset", "quote_asset", "status",
		"tick_size", "lot_size", "min_notional",
	}
)

func transferRow(t *models.Transfer) []string {
	return []string{
		t.Datetime.UTC().Format(time.RFC3339),
		t.Email,
		string(t.TxnType),
		string(t.TxnSubtype),
		string(t.Wallet),
		t.Asset,
		t.Amount.String(),
		t.CounterParty,
		t.Network,
		t.TxnHash,
	}
}

func tradeRow(t *models.TradeRecord) []string {
	price := ""
	if t.Price != nil {
		price = t.Price.String()
	}
	return []string{
		t.Datetime.UTC().Format(time.RFC3339),
		t.Email,
		string(t.TxnType),
		string(t.TxnSubtype),
		t.Symbol,
		t.Asset,
		t.Amount.String(),
		price,
		t.ExternalID,
	}
}

func balanceRow(b *models.Balance) []string {
	return []string{
		b.Date.UTC().Format("2006-01-02"),
		b.Email,
		string(b.Wallet),
		b.Asset,
		b.RawBalance.String(),
		b.RawLoan.String(),
		b.RawInterest.String(),
		b.RawUnrealisedPnl.String(),
	}
}

func symbolRow(s *models.ExchangeSymbol) []string {
	return []string{
		s.Symbol,
		s.BaseAsset,
		s.QuoteAsset,
		s.Status,
		s.TickSize,
		s.LotSize,
		s.MinNotional,
	}
}

// parseAmount converts an exchange monetary string without any float
// round trip.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}
