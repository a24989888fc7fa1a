package collector

import (
	"context"
	"strconv"
	"time"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

// TradeCollector ingests spot trade history symbol by symbol. A trade's
// principal row books the received side: base quantity on buys, quote
// quantity (negated) on sells. Nonzero commission adds a separate fee row
// in the commission asset.
type TradeCollector struct {
	deps *Deps
}

func NewTradeCollector(deps *Deps) *TradeCollector {
	return &TradeCollector{deps: deps}
}

func (c *TradeCollector) Name() string { return "trades" }

func (c *TradeCollector) Validate(t binance.Trade) bool {
	if t.ID == 0 || t.Symbol == "" || t.Time <= 0 {
		return false
	}
	for _, s := range []string{t.Price, t.Qty, t.QuoteQty, t.Commission} {
		if _, err := parseAmount(s); err != nil {
			return false
		}
	}
	return true
}

func (c *TradeCollector) Collect(ctx context.Context, start, end time.Time) (*Result, error) {
	r := newRun(c.deps, c.Name(), start, end, tradeColumns)
	result := &Result{}

	plan, directory, err := symbolPlan(ctx, c.deps.Store, c.deps.Email, c.deps.SymbolBudget)
	if err != nil {
		return r.finish(result), err
	}
	if len(directory) == 0 {
		r.logError(ctx, "symbol_cache_empty", "", "exchange info has never been collected", nil)
		return r.finish(result), nil
	}

	for _, symbol := range plan {
		if err := c.collectSymbol(ctx, r, result, symbol, directory, start, end); err != nil {
			return r.finish(result), err
		}
	}
	return r.finish(result), nil
}

// collectSymbol walks one symbol through the day-sized windows the trade
// endpoint requires, with a fromId cursor inside each window.
func (c *TradeCollector) collectSymbol(ctx context.Context, r *run, result *Result, symbol string, directory map[string]models.ExchangeSymbol, start, end time.Time) error {
	info, cached := directory[symbol]
	if !cached {
		r.logError(ctx, "symbol_not_in_directory", symbol, "symbol missing from exchange info cache", nil)
		return nil
	}

	for _, chunk := range binance.ChunkTimeRange(start, end, binance.MaxRangeDaysTrades) {
		var fromID int64
		for {
			page, ok, err := fetchWithPolicy(ctx, r, symbol, func(ctx context.Context) ([]binance.Trade, error) {
				return c.deps.Client.MyTrades(ctx, symbol, chunk.Start, chunk.End, fromID)
			})
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			for _, trade := range page {
				result.Collected++
				r.saveRaw(ctx, storage.RawTrades, symbol, time.Time{}, trade)
				if !c.Validate(trade) {
					r.logError(ctx, "data_shape_error", symbol, "trade failed validation: id="+strconv.FormatInt(trade.ID, 10), nil)
					continue
				}
				saved, fees := c.save(ctx, r, trade, info)
				result.Saved += saved
				result.FeesSaved += fees
			}
			if len(page) == 0 {
				break
			}
			// The cursor moves past the whole page regardless of
			// per-trade validation, otherwise a bad trailing trade
			// would be fetched again on the next page.
			fromID = page[len(page)-1].ID + 1
			if len(page) < binance.PageLimitDefault {
				break
			}
		}
	}
	return nil
}

func (c *TradeCollector) save(ctx context.Context, r *run, trade binance.Trade, info models.ExchangeSymbol) (saved, fees int) {
	price, err := parseAmount(trade.Price)
	if err != nil {
		r.logError(ctx, "data_shape_error", trade.Symbol, err.Error(), err)
		return 0, 0
	}
	when := time.UnixMilli(trade.Time).UTC()
	orderID := trade.OrderID

	principal := models.TradeRecord{
		Source:     models.SourceBinanceAPI,
		FID:        c.deps.fid(),
		ExternalID: "trade_" + strconv.FormatInt(trade.ID, 10),
		Datetime:   when,
		TxnType:    models.TxnTrade,
		Email:      c.deps.Email,
		Wallet:     models.WalletSpot,
		Symbol:     trade.Symbol,
		Price:      &price,
		AggID:      &orderID,
	}
	if trade.IsBuyer {
		qty, qErr := parseAmount(trade.Qty)
		if qErr != nil {
			r.logError(ctx, "data_shape_error", trade.Symbol, qErr.Error(), qErr)
			return 0, 0
		}
		principal.TxnSubtype = models.SubSpotBuy
		principal.Asset = info.BaseAsset
		principal.Amount = qty
	} else {
		quoteQty, qErr := parseAmount(trade.QuoteQty)
		if qErr != nil {
			r.logError(ctx, "data_shape_error", trade.Symbol, qErr.Error(), qErr)
			return 0, 0
		}
		principal.TxnSubtype = models.SubSpotSell
		principal.Asset = info.QuoteAsset
		principal.Amount = quoteQty.Neg()
	}
	if err := c.deps.Store.UpsertTrade(ctx, &principal); err != nil {
		r.logError(ctx, "storage_error", trade.Symbol, err.Error(), err)
		return 0, 0
	}
	r.csv.add(tradeRow(&principal))
	saved = 1

	if err := c.deps.Store.UpsertTradedSymbol(ctx, c.deps.Email, trade.Symbol, when); err != nil {
		r.log.WithError(err).WithField("symbol", trade.Symbol).Error("failed to record traded symbol")
	}

	commission, err := parseAmount(trade.Commission)
	if err != nil || commission.IsZero() {
		if err != nil {
			r.logError(ctx, "data_shape_error", trade.Symbol, err.Error(), err)
		}
		return saved, 0
	}
	subtype := models.SubTakerFee
	if trade.IsMaker {
		subtype = models.SubMakerFee
	}
	fee := models.TradeRecord{
		Source:     models.SourceBinanceAPI,
		FID:        c.deps.fid(),
		ExternalID: "trade_fee_" + strconv.FormatInt(trade.ID, 10),
		Datetime:   when,
		TxnType:    models.TxnFee,
		TxnSubtype: subtype,
		Email:      c.deps.Email,
		Wallet:     models.WalletSpot,
		Symbol:     trade.Symbol,
		Asset:      trade.CommissionAsset,
		Amount:     commission.Neg(),
		AggID:      &orderID,
	}
	if err := c.deps.Store.UpsertTrade(ctx, &fee); err != nil {
		r.logError(ctx, "storage_error", trade.Symbol, err.Error(), err)
		return saved, 0
	}
	r.csv.add(tradeRow(&fee))
	return saved, 1
}
