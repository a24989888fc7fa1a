// Package storage provides the persistence boundary for the ingestion and
// reconciliation engine. The core issues only keyed upserts, appends, and
// range queries; migrations and pooling live outside.
package storage

import (
	"context"
	"time"

	"github.com/coinfrs/recon/internal/models"
)

// RawKind selects the raw-audit table an unmodified payload lands in.
type RawKind string

const (
	RawDeposits        RawKind = "deposits"
	RawWithdrawals     RawKind = "withdrawals"
	RawMainTransfers   RawKind = "main_transfers"
	RawSubTransfers    RawKind = "sub_transfers"
	RawWalletTransfers RawKind = "wallet_transfers"
	RawTrades          RawKind = "trades"
	RawConverts        RawKind = "converts"
	RawSnapshots       RawKind = "snapshots"
)

// RawRecord is one unmodified API payload headed for its audit table.
type RawRecord struct {
	Kind         RawKind
	Email        string
	Symbol       string
	SnapshotDate time.Time
	Payload      []byte
}

// Store is the persistence contract. Upserts are idempotent on their
// documented keys, appends never deduplicate, and all methods are safe for
// concurrent use; that is what makes concurrent re-runs of the same time
// range safe without distributed locks.
type Store interface {
	// Keyed upserts. Transfer and trade rows key on (source, external_id);
	// balances on (email, date, wallet, asset); symbols on their unique
	// columns. Re-ingestion updates in place and never duplicates.
	UpsertTransfer(ctx context.Context, t *models.Transfer) error
	UpsertTrade(ctx context.Context, t *models.TradeRecord) error
	UpsertBalance(ctx context.Context, b *models.Balance) error
	// UpdateBalanceCalc writes cal_balance and variance onto an existing
	// snapshot row without touching its raw_* columns.
	UpdateBalanceCalc(ctx context.Context, b *models.Balance) error
	UpsertExchangeSymbol(ctx context.Context, s *models.ExchangeSymbol) error
	UpsertTradedSymbol(ctx context.Context, email, symbol string, tradeTime time.Time) error
	MarkSymbolInactive(ctx context.Context, email, symbol string) error

	// Append-only evidence and error trails.
	AppendRaw(ctx context.Context, r *RawRecord) error
	AppendError(ctx context.Context, e *models.IngestionError) error

	// Range queries for reconciliation and symbol discovery. Between
	// queries are half-open (start, end].
	TransfersBetween(ctx context.Context, email string, start, end time.Time) ([]models.Transfer, error)
	TradesBetween(ctx context.Context, email string, start, end time.Time) ([]models.TradeRecord, error)
	BalancesOn(ctx context.Context, email string, date time.Time) ([]models.Balance, error)
	MarkReconciled(ctx context.Context, email string, start, end time.Time) error

	ActiveTradedSymbols(ctx context.Context, email string) ([]string, error)
	TradableSymbols(ctx context.Context) ([]models.ExchangeSymbol, error)
	ObservedAssets(ctx context.Context, email string) ([]string, error)
}
