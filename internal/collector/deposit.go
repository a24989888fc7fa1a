package collector

import (
	"context"
	"time"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

// depositStatusSuccess is the only deposit state that moves money; pending
// and credited-but-locked deposits are archived raw and otherwise ignored.
const depositStatusSuccess = 1

// DepositCollector ingests on-chain deposit history.
type DepositCollector struct {
	deps *Deps
}

func NewDepositCollector(deps *Deps) *DepositCollector {
	return &DepositCollector{deps: deps}
}

func (c *DepositCollector) Name() string { return "deposits" }

// Validate checks the fields the transformation depends on.
func (c *DepositCollector) Validate(d binance.Deposit) bool {
	if d.ID == "" || d.Coin == "" || d.InsertTime <= 0 {
		return false
	}
	_, err := parseAmount(d.Amount)
	return err == nil
}

func (c *DepositCollector) Collect(ctx context.Context, start, end time.Time) (*Result, error) {
	r := newRun(c.deps, c.Name(), start, end, transferColumns)
	result := &Result{}

	for _, chunk := range binance.ChunkTimeRange(start, end, binance.MaxRangeDaysDefault) {
		for offset := 0; ; offset += binance.PageLimitDefault {
			page, ok, err := fetchWithPolicy(ctx, r, "", func(ctx context.Context) ([]binance.Deposit, error) {
				return c.deps.Client.DepositHistory(ctx, chunk.Start, chunk.End, offset)
			})
			if err != nil {
				return r.finish(result), err
			}
			if !ok {
				break
			}
			for _, d := range page {
				result.Collected++
				r.saveRaw(ctx, storage.RawDeposits, "", time.Time{}, d)
				if !c.Validate(d) {
					r.logError(ctx, "data_shape_error", "", "deposit failed validation: id="+d.ID, nil)
					continue
				}
				if d.Status != depositStatusSuccess {
					continue
				}
				if c.save(ctx, r, d) {
					result.Saved++
				}
			}
			if len(page) < binance.PageLimitDefault {
				break
			}
		}
	}
	return r.finish(result), nil
}

// save transforms one successful deposit into its canonical transfer row.
// Returns false when the row could not be persisted.
func (c *DepositCollector) save(ctx context.Context, r *run, d binance.Deposit) bool {
	amount, err := parseAmount(d.Amount)
	if err != nil {
		r.logError(ctx, "data_shape_error", "", err.Error(), err)
		return false
	}
	t := models.Transfer{
		Source:       models.SourceBinanceAPI,
		FID:          c.deps.fid(),
		ExternalID:   "deposit_" + d.ID,
		Datetime:     time.UnixMilli(d.InsertTime).UTC(),
		TxnType:      models.TxnTransferIn,
		TxnSubtype:   models.SubDeposit,
		Email:        c.deps.Email,
		Wallet:       models.WalletSpot,
		Asset:        d.Coin,
		Amount:       amount,
		CounterParty: d.Address,
		Network:      d.Network,
		TxnHash:      d.TxID,
	}
	if err := c.deps.Store.UpsertTransfer(ctx, &t); err != nil {
		r.logError(ctx, "storage_error", "", err.Error(), err)
		return false
	}
	r.csv.add(transferRow(&t))
	return true
}
