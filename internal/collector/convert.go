package collector

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

const convertStatusSuccess = "SUCCESS"

// ConvertCollector ingests convert trade flow. One successful convert
// decomposes into a sell of the from asset and a buy of the to asset,
// sharing the order's implied price.
type ConvertCollector struct {
	deps *Deps
}

func NewConvertCollector(deps *Deps) *ConvertCollector {
	return &ConvertCollector{deps: deps}
}

func (c *ConvertCollector) Name() string { return "converts" }

func (c *ConvertCollector) Validate(cv binance.Convert) bool {
	if cv.OrderID == 0 || cv.FromAsset == "" || cv.ToAsset == "" || cv.CreateTime <= 0 {
		return false
	}
	for _, s := range []string{cv.FromAmount, cv.ToAmount} {
		if _, err := parseAmount(s); err != nil {
			return false
		}
	}
	return true
}

func (c *ConvertCollector) Collect(ctx context.Context, start, end time.Time) (*Result, error) {
	r := newRun(c.deps, c.Name(), start, end, tradeColumns)
	result := &Result{}

	// The convert endpoint caps each query at 30 days regardless of the
	// account's history depth.
	for _, chunk := range binance.ChunkTimeRange(start, end, binance.MaxRangeDaysSnapshot) {
		page, ok, err := fetchWithPolicy(ctx, r, "", func(ctx context.Context) ([]binance.Convert, error) {
			return c.deps.Client.ConvertHistory(ctx, chunk.Start, chunk.End)
		})
		if err != nil {
			return r.finish(result), err
		}
		if !ok {
			continue
		}
		for _, cv := range page {
			result.Collected++
			r.saveRaw(ctx, storage.RawConverts, "", time.Time{}, cv)
			if !c.Validate(cv) {
				r.logError(ctx, "data_shape_error", "", "convert failed validation: orderId="+strconv.FormatInt(cv.OrderID, 10), nil)
				continue
			}
			if cv.OrderStatus != convertStatusSuccess {
				continue
			}
			result.Saved += c.save(ctx, r, cv)
		}
	}
	return r.finish(result), nil
}

// save writes both legs. Returns how many rows were persisted.
func (c *ConvertCollector) save(ctx context.Context, r *run, cv binance.Convert) int {
	fromAmount, err := parseAmount(cv.FromAmount)
	if err != nil {
		r.logError(ctx, "data_shape_error", "", err.Error(), err)
		return 0
	}
	toAmount, err := parseAmount(cv.ToAmount)
	if err != nil {
		r.logError(ctx, "data_shape_error", "", err.Error(), err)
		return 0
	}

	// Implied price of the to asset in units of the from asset. A zero
	// from amount has been seen on dust converts; the legs still book,
	// just without a price.
	var price *decimal.Decimal
	if !fromAmount.IsZero() {
		p := toAmount.Div(fromAmount)
		price = &p
	}

	when := time.UnixMilli(cv.CreateTime).UTC()
	orderID := strconv.FormatInt(cv.OrderID, 10)
	symbol := cv.FromAsset + cv.ToAsset

	legs := []models.TradeRecord{
		{
			Source:     models.SourceBinanceAPI,
			FID:        c.deps.fid(),
			ExternalID: "convert_sell_" + orderID,
			Datetime:   when,
			TxnType:    models.TxnTrade,
			TxnSubtype: models.SubConvertSell,
			Email:      c.deps.Email,
			Wallet:     models.WalletSpot,
			Symbol:     symbol,
			Asset:      cv.FromAsset,
			Amount:     fromAmount.Neg(),
			Price:      price,
		},
		{
			Source:     models.SourceBinanceAPI,
			FID:        c.deps.fid(),
			ExternalID: "convert_buy_" + orderID,
			Datetime:   when,
			TxnType:    models.TxnTrade,
			TxnSubtype: models.SubConvertBuy,
			Email:      c.deps.Email,
			Wallet:     models.WalletSpot,
			Symbol:     symbol,
			Asset:      cv.ToAsset,
			Amount:     toAmount,
			Price:      price,
		},
	}
	saved := 0
	for i := range legs {
		if err := c.deps.Store.UpsertTrade(ctx, &legs[i]); err != nil {
			r.logError(ctx, "storage_error", "", err.Error(), err)
			continue
		}
		r.csv.add(tradeRow(&legs[i]))
		saved++
	}
	return saved
}
