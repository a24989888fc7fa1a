package collector

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

// SnapshotCollector ingests the exchange's end-of-day balance snapshots
// for each wallet family. Snapshot rows are the "actual" side of
// reconciliation; the keyed upsert means re-pulling a day refreshes raw_*
// columns without disturbing any cal_* results already written.
type SnapshotCollector struct {
	deps *Deps
}

func NewSnapshotCollector(deps *Deps) *SnapshotCollector {
	return &SnapshotCollector{deps: deps}
}

func (c *SnapshotCollector) Name() string { return "snapshots" }

func (c *SnapshotCollector) Validate(s binance.Snapshot) bool {
	return s.Type != "" && s.UpdateTime > 0
}

func (c *SnapshotCollector) Collect(ctx context.Context, start, end time.Time) (*Result, error) {
	r := newRun(c.deps, c.Name(), start, end, balanceColumns)
	result := &Result{Subflows: map[string]int{}}

	for _, snapshotType := range binance.SnapshotTypes {
		for _, chunk := range binance.ChunkTimeRange(start, end, binance.MaxRangeDaysSnapshot) {
			snapshots, ok, err := fetchWithPolicy(ctx, r, "", func(ctx context.Context) ([]binance.Snapshot, error) {
				return c.deps.Client.AccountSnapshot(ctx, snapshotType, chunk.Start, chunk.End)
			})
			if err != nil {
				return r.finish(result), err
			}
			if !ok {
				continue
			}
			for _, snap := range snapshots {
				result.Collected++
				date := time.UnixMilli(snap.UpdateTime).UTC().Truncate(24 * time.Hour)
				r.saveRaw(ctx, storage.RawSnapshots, "", date, snap)
				if !c.Validate(snap) {
					r.logError(ctx, "data_shape_error", "", "snapshot failed validation: type="+snap.Type, nil)
					continue
				}
				n := c.save(ctx, r, snap, date)
				result.Saved += n
				result.Subflows[snapshotType] += n
			}
		}
	}
	return r.finish(result), nil
}

// save expands one wallet snapshot into per-asset balance rows. Zero
// balances are dropped; the exchange pads spot snapshots with every asset
// it lists.
func (c *SnapshotCollector) save(ctx context.Context, r *run, snap binance.Snapshot, date time.Time) int {
	wallet := snapshotWallet(snap.Type)
	saved := 0
	write := func(asset string, balance decimal.Decimal) {
		if balance.IsZero() {
			return
		}
		b := models.Balance{
			Source:     models.SourceBinanceAPI,
			FID:        c.deps.fid(),
			ExternalID: "snapshot_" + string(wallet) + "_" + date.Format("20060102"),
			Date:       date,
			Email:      c.deps.Email,
			Wallet:     wallet,
			Asset:      asset,
			RawBalance: balance,
		}
		if err := c.deps.Store.UpsertBalance(ctx, &b); err != nil {
			r.logError(ctx, "storage_error", "", err.Error(), err)
			return
		}
		r.csv.add(balanceRow(&b))
		saved++
	}

	switch wallet {
	case models.WalletSpot:
		for _, bal := range snap.Data.Balances {
			free, err1 := parseAmount(bal.Free)
			locked, err2 := parseAmount(bal.Locked)
			if err1 != nil || err2 != nil {
				r.logError(ctx, "data_shape_error", "", "unparseable spot balance for "+bal.Asset, nil)
				continue
			}
			write(bal.Asset, free.Add(locked))
		}
	case models.WalletMargin:
		for _, asset := range snap.Data.UserAssets {
			balance, err := parseAmount(asset.MarginBalance)
			if err != nil {
				r.logError(ctx, "data_shape_error", "", "unparseable margin balance for "+asset.Asset, nil)
				continue
			}
			write(asset.Asset, balance)
		}
	case models.WalletFutures:
		for _, asset := range snap.Data.Assets {
			balance, err := parseAmount(asset.WalletBalance)
			if err != nil {
				r.logError(ctx, "data_shape_error", "", "unparseable futures balance for "+asset.Asset, nil)
				continue
			}
			write(asset.Asset, balance)
		}
	}
	return saved
}

// snapshotWallet maps a snapshot type to its wallet. The request parameter
// is uppercase but the response vos echo the type in lowercase.
func snapshotWallet(snapshotType string) models.Wallet {
	switch strings.ToUpper(snapshotType) {
	case "MARGIN":
		return models.WalletMargin
	case "FUTURES":
		return models.WalletFutures
	default:
		return models.WalletSpot
	}
}
