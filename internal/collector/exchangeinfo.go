package collector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/models"
)

// ExchangeInfoCollector refreshes the cached symbol directory. It has no
// time-range semantics; the window only labels the export file.
type ExchangeInfoCollector struct {
	deps *Deps
}

func NewExchangeInfoCollector(deps *Deps) *ExchangeInfoCollector {
	return &ExchangeInfoCollector{deps: deps}
}

func (c *ExchangeInfoCollector) Name() string { return "exchange_info" }

func (c *ExchangeInfoCollector) Validate(s binance.SymbolInfo) bool {
	return s.Symbol != "" && s.BaseAsset != "" && s.QuoteAsset != ""
}

func (c *ExchangeInfoCollector) Collect(ctx context.Context, start, end time.Time) (*Result, error) {
	r := newRun(c.deps, c.Name(), start, end, symbolColumns)
	result := &Result{}

	info, ok, err := fetchWithPolicy(ctx, r, "", func(ctx context.Context) (*binance.ExchangeInfo, error) {
		return c.deps.Client.ExchangeInfo(ctx)
	})
	if err != nil || !ok {
		return r.finish(result), err
	}

	for _, sym := range info.Symbols {
		result.Collected++
		if !c.Validate(sym) {
			r.logError(ctx, "data_shape_error", sym.Symbol, "symbol failed validation", nil)
			continue
		}
		// Only live spot markets enter the cache. Symbols that halt
		// after an earlier refresh keep their cached row.
		if sym.Status != "TRADING" || !sym.IsSpotTradingAllowed {
			continue
		}
		row := symbolModel(sym)
		if err := c.deps.Store.UpsertExchangeSymbol(ctx, row); err != nil {
			r.logError(ctx, "storage_error", sym.Symbol, err.Error(), err)
			continue
		}
		r.csv.add(symbolRow(row))
		result.Saved++
	}
	r.log.WithField("symbols", result.Saved).Info("symbol directory refreshed")
	return r.finish(result), nil
}

func symbolModel(sym binance.SymbolInfo) *models.ExchangeSymbol {
	row := &models.ExchangeSymbol{
		Symbol:                 sym.Symbol,
		BaseAsset:              sym.BaseAsset,
		QuoteAsset:             sym.QuoteAsset,
		Status:                 sym.Status,
		IsSpotTradingAllowed:   sym.IsSpotTradingAllowed,
		IsMarginTradingAllowed: sym.IsMarginTradingAllowed,
	}
	for _, f := range sym.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			row.TickSize = f.TickSize
		case "LOT_SIZE":
			row.LotSize = f.StepSize
		case "MIN_NOTIONAL", "NOTIONAL":
			row.MinNotional = f.MinNotional
		}
	}
	if raw, err := json.Marshal(sym); err == nil {
		row.RawData = string(raw)
	}
	return row
}
