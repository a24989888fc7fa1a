package collector

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

const (
	transferStatusConfirmed = "CONFIRMED"
	subTransferStatusOK     = "SUCCESS"
)

// TransferCollector ingests the three internal movement flows: universal
// transfers touching the spot wallet, wallet-to-wallet transfers between
// non-spot wallets, and transfers between master and sub accounts. Each
// flow reports its own count under Result.Subflows.
type TransferCollector struct {
	deps *Deps
}

func NewTransferCollector(deps *Deps) *TransferCollector {
	return &TransferCollector{deps: deps}
}

func (c *TransferCollector) Name() string { return "transfers" }

func (c *TransferCollector) Validate(v binance.AssetTransfer) bool {
	if v.TranID == 0 || v.Asset == "" || v.Timestamp <= 0 {
		return false
	}
	_, err := parseAmount(v.Amount)
	return err == nil
}

func (c *TransferCollector) validateSub(v binance.SubTransfer) bool {
	if v.TranID == 0 || v.Asset == "" || v.Time <= 0 {
		return false
	}
	if v.FromEmail == "" && v.ToEmail == "" {
		return false
	}
	_, err := parseAmount(v.Qty)
	return err == nil
}

func (c *TransferCollector) Collect(ctx context.Context, start, end time.Time) (*Result, error) {
	r := newRun(c.deps, c.Name(), start, end, transferColumns)
	result := &Result{Subflows: map[string]int{}}

	if err := c.collectUniversal(ctx, r, result, start, end, binance.MainTransferTypes, "main_transfer_", models.SubMainTransfer, "main"); err != nil {
		return r.finish(result), err
	}
	if err := c.collectUniversal(ctx, r, result, start, end, binance.WalletTransferTypes, "wallet_transfer_", models.SubWalletTransfer, "wallet"); err != nil {
		return r.finish(result), err
	}
	if c.deps.AccountType == AccountMain {
		if err := c.collectSub(ctx, r, result, start, end); err != nil {
			// An account labelled main may still lack sub-account
			// permission on its key. That only disables this flow,
			// the other flows already succeeded with the same key.
			if errors.Is(err, ErrCredentials) {
				r.logError(ctx, "permission_error", "", "sub-account transfer history not permitted for this key", err)
			} else {
				return r.finish(result), err
			}
		}
	}
	return r.finish(result), nil
}

// collectUniversal walks one list of fromWallet_toWallet type tokens
// through the universal transfer endpoint.
func (c *TransferCollector) collectUniversal(ctx context.Context, r *run, result *Result, start, end time.Time, types []string, idPrefix string, subtype models.TxnSubtype, flow string) error {
	kind := storage.RawMainTransfers
	if subtype == models.SubWalletTransfer {
		kind = storage.RawWalletTransfers
	}
	for _, chunk := range binance.ChunkTimeRange(start, end, binance.MaxRangeDaysDefault) {
		for _, transferType := range types {
			for current := 1; ; current++ {
				page, ok, err := fetchWithPolicy(ctx, r, "", func(ctx context.Context) ([]binance.AssetTransfer, error) {
					return c.deps.Client.AssetTransfers(ctx, transferType, chunk.Start, chunk.End, current)
				})
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				for _, tr := range page {
					result.Collected++
					r.saveRaw(ctx, kind, "", time.Time{}, tr)
					if !c.Validate(tr) {
						r.logError(ctx, "data_shape_error", "", "transfer failed validation: tranId="+strconv.FormatInt(tr.TranID, 10), nil)
						continue
					}
					if tr.Status != transferStatusConfirmed {
						continue
					}
					n := c.saveUniversal(ctx, r, tr, transferType, idPrefix, subtype)
					result.Saved += n
					result.Subflows[flow] += n
				}
				if len(page) < binance.PageLimitTransfers {
					break
				}
			}
		}
	}
	return nil
}

// saveUniversal books an internal movement double-entry: one leg per
// wallet side, so each wallet's reconciliation sees its own delta.
// Returns the number of rows written.
func (c *TransferCollector) saveUniversal(ctx context.Context, r *run, tr binance.AssetTransfer, transferType, idPrefix string, subtype models.TxnSubtype) int {
	amount, err := parseAmount(tr.Amount)
	if err != nil {
		r.logError(ctx, "data_shape_error", "", err.Error(), err)
		return 0
	}
	fromToken, toToken, found := strings.Cut(transferType, "_")
	if !found {
		r.logError(ctx, "data_shape_error", "", "unrecognized transfer type "+transferType, nil)
		return 0
	}

	id := strconv.FormatInt(tr.TranID, 10)
	datetime := time.UnixMilli(tr.Timestamp).UTC()
	legs := []models.Transfer{
		{
			ExternalID:   idPrefix + id + "_out",
			TxnType:      models.TxnTransferOut,
			Wallet:       walletFromToken(fromToken),
			Amount:       amount.Neg(),
			CounterParty: toToken,
		},
		{
			ExternalID:   idPrefix + id + "_in",
			TxnType:      models.TxnTransferIn,
			Wallet:       walletFromToken(toToken),
			Amount:       amount,
			CounterParty: fromToken,
		},
	}
	saved := 0
	for _, t := range legs {
		t.Source = models.SourceBinanceAPI
		t.FID = c.deps.fid()
		t.Datetime = datetime
		t.TxnSubtype = subtype
		t.Email = c.deps.Email
		t.Asset = tr.Asset
		if err := c.deps.Store.UpsertTransfer(ctx, &t); err != nil {
			r.logError(ctx, "storage_error", "", err.Error(), err)
			continue
		}
		r.csv.add(transferRow(&t))
		saved++
	}
	return saved
}

func (c *TransferCollector) collectSub(ctx context.Context, r *run, result *Result, start, end time.Time) error {
	for _, chunk := range binance.ChunkTimeRange(start, end, binance.MaxRangeDaysDefault) {
		page, ok, err := fetchWithPolicy(ctx, r, "", func(ctx context.Context) ([]binance.SubTransfer, error) {
			return c.deps.Client.SubAccountTransfers(ctx, chunk.Start, chunk.End)
		})
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, tr := range page {
			result.Collected++
			r.saveRaw(ctx, storage.RawSubTransfers, "", time.Time{}, tr)
			if !c.validateSub(tr) {
				r.logError(ctx, "data_shape_error", "", "sub transfer failed validation: tranId="+strconv.FormatInt(tr.TranID, 10), nil)
				continue
			}
			if tr.Status != subTransferStatusOK {
				continue
			}
			if c.saveSub(ctx, r, tr) {
				result.Saved++
				result.Subflows["sub"]++
			}
		}
	}
	return nil
}

func (c *TransferCollector) saveSub(ctx context.Context, r *run, tr binance.SubTransfer) bool {
	amount, err := parseAmount(tr.Qty)
	if err != nil {
		r.logError(ctx, "data_shape_error", "", err.Error(), err)
		return false
	}
	txnType := models.TxnTransferOut
	counterparty := tr.ToEmail
	amount = amount.Neg()
	if strings.EqualFold(tr.ToEmail, c.deps.Email) {
		txnType = models.TxnTransferIn
		counterparty = tr.FromEmail
		amount = amount.Neg()
	}

	t := models.Transfer{
		Source:       models.SourceBinanceAPI,
		FID:          c.deps.fid(),
		ExternalID:   "sub_transfer_" + strconv.FormatInt(tr.TranID, 10),
		Datetime:     time.UnixMilli(tr.Time).UTC(),
		TxnType:      txnType,
		TxnSubtype:   models.SubSubTransfer,
		Email:        c.deps.Email,
		Wallet:       models.WalletSpot,
		Asset:        tr.Asset,
		Amount:       amount,
		CounterParty: counterparty,
	}
	if err := c.deps.Store.UpsertTransfer(ctx, &t); err != nil {
		r.logError(ctx, "storage_error", "", err.Error(), err)
		return false
	}
	r.csv.add(transferRow(&t))
	return true
}

func walletFromToken(token string) models.Wallet {
	switch token {
	case "MAIN":
		return models.WalletSpot
	case "MARGIN":
		return models.WalletMargin
	case "UMFUTURE", "CMFUTURE":
		return models.WalletFutures
	case "FUNDING":
		return models.WalletFunding
	default:
		return models.WalletSpot
	}
}
