package collector

import (
	"context"
	"strconv"
	"time"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

// withdrawStatusCompleted is the only terminal success state; earlier
// states (email sent, awaiting approval, processing) still archive raw.
const withdrawStatusCompleted = 6

// WithdrawCollector ingests withdrawal history. A completed withdrawal
// with a nonzero network fee yields two canonical rows, principal and fee,
// each with its own external id.
type WithdrawCollector struct {
	deps *Deps
}

func NewWithdrawCollector(deps *Deps) *WithdrawCollector {
	return &WithdrawCollector{deps: deps}
}

func (c *WithdrawCollector) Name() string { return "withdrawals" }

func (c *WithdrawCollector) Validate(w binance.Withdrawal) bool {
	if w.ID == "" || w.Coin == "" {
		return false
	}
	if _, err := parseAmount(w.Amount); err != nil {
		return false
	}
	_, err := parseApplyTime(w.ApplyTime)
	return err == nil
}

func (c *WithdrawCollector) Collect(ctx context.Context, start, end time.Time) (*Result, error) {
	r := newRun(c.deps, c.Name(), start, end, transferColumns)
	result := &Result{}

	for _, chunk := range binance.ChunkTimeRange(start, end, binance.MaxRangeDaysDefault) {
		for offset := 0; ; offset += binance.PageLimitDefault {
			page, ok, err := fetchWithPolicy(ctx, r, "", func(ctx context.Context) ([]binance.Withdrawal, error) {
				return c.deps.Client.WithdrawHistory(ctx, chunk.Start, chunk.End, offset)
			})
			if err != nil {
				return r.finish(result), err
			}
			if !ok {
				break
			}
			for _, w := range page {
				result.Collected++
				r.saveRaw(ctx, storage.RawWithdrawals, "", time.Time{}, w)
				if !c.Validate(w) {
					r.logError(ctx, "data_shape_error", "", "withdrawal failed validation: id="+w.ID, nil)
					continue
				}
				if w.Status != withdrawStatusCompleted {
					continue
				}
				saved, fees := c.save(ctx, r, w)
				result.Saved += saved
				result.FeesSaved += fees
			}
			if len(page) < binance.PageLimitDefault {
				break
			}
		}
	}
	return r.finish(result), nil
}

func (c *WithdrawCollector) save(ctx context.Context, r *run, w binance.Withdrawal) (saved, fees int) {
	amount, err := parseAmount(w.Amount)
	if err != nil {
		r.logError(ctx, "data_shape_error", "", err.Error(), err)
		return 0, 0
	}
	applied, err := parseApplyTime(w.ApplyTime)
	if err != nil {
		r.logError(ctx, "data_shape_error", "", err.Error(), err)
		return 0, 0
	}

	principal := models.Transfer{
		Source:       models.SourceBinanceAPI,
		FID:          c.deps.fid(),
		ExternalID:   "withdrawal_" + w.ID,
		Datetime:     applied,
		TxnType:      models.TxnTransferOut,
		TxnSubtype:   models.SubWithdraw,
		Email:        c.deps.Email,
		Wallet:       models.WalletSpot,
		Asset:        w.Coin,
		Amount:       amount.Neg(),
		CounterParty: w.Address,
		Network:      w.Network,
		TxnHash:      w.TxID,
	}
	if err := c.deps.Store.UpsertTransfer(ctx, &principal); err != nil {
		r.logError(ctx, "storage_error", "", err.Error(), err)
		return 0, 0
	}
	r.csv.add(transferRow(&principal))
	saved = 1

	fee, err := parseAmount(w.TransactionFee)
	if err != nil {
		r.logError(ctx, "data_shape_error", "", err.Error(), err)
		return saved, 0
	}
	if fee.IsZero() {
		return saved, 0
	}
	feeRow := models.Transfer{
		Source:       models.SourceBinanceAPI,
		FID:          c.deps.fid(),
		ExternalID:   "withdrawal_fee_" + w.ID,
		Datetime:     applied,
		TxnType:      models.TxnFee,
		TxnSubtype:   models.SubWithdrawalFee,
		Email:        c.deps.Email,
		Wallet:       models.WalletSpot,
		Asset:        w.Coin,
		Amount:       fee.Neg(),
		CounterParty: w.Address,
		Network:      w.Network,
		TxnHash:      w.TxID,
	}
	if err := c.deps.Store.UpsertTransfer(ctx, &feeRow); err != nil {
		r.logError(ctx, "storage_error", "", err.Error(), err)
		return saved, 0
	}
	r.csv.add(transferRow(&feeRow))
	return saved, 1
}

// parseApplyTime accepts both formats the endpoint has been seen to
// return: a "2006-01-02 15:04:05" UTC string and a millisecond epoch.
func parseApplyTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t.UTC(), nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
