package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/coinfrs/recon/internal/models"
)

// gormStore implements Store on Postgres through GORM. Idempotency comes
// from ON CONFLICT DO UPDATE on each table's natural key; created_at is
// never part of the update set.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore opens a Postgres connection and returns a Store backed by it.
func NewGormStore(dsn string) (Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &gormStore{db: db}, nil
}

// NewStoreFromDB wraps an existing GORM handle, used by cmd/migrate and
// tests that manage the connection themselves.
func NewStoreFromDB(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// AutoMigrate creates or updates every table the engine touches.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Transfer{},
		&models.TradeRecord{},
		&models.Balance{},
		&models.ExchangeSymbol{},
		&models.TradedSymbol{},
		&models.IngestionError{},
		&models.RawDeposit{},
		&models.RawWithdrawal{},
		&models.RawMainTransfer{},
		&models.RawSubTransfer{},
		&models.RawWalletTransfer{},
		&models.RawTrade{},
		&models.RawConvert{},
		&models.RawSnapshot{},
	)
}

func (s *gormStore) UpsertTransfer(ctx context.Context, t *models.Transfer) error {
	now := time.Now().UTC()
	t.UpdatedAt = now
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"datetime", "txn_type", "txn_subtype", "email", "wallet", "asset",
			"amount", "counter_party", "network", "txn_hash", "updated_at",
		}),
	}).Create(t).Error
}

func (s *gormStore) UpsertTrade(ctx context.Context, t *models.TradeRecord) error {
	now := time.Now().UTC()
	t.UpdatedAt = now
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"datetime", "txn_type", "txn_subtype", "email", "wallet", "symbol",
			"asset", "amount", "price", "agg_id", "updated_at",
		}),
	}).Create(t).Error
}

func (s *gormStore) UpsertBalance(ctx context.Context, b *models.Balance) error {
	now := time.Now().UTC()
	b.UpdatedAt = now
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.Date = truncateDate(b.Date)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}, {Name: "date"}, {Name: "wallet"}, {Name: "asset"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source", "fid", "external_id",
			"raw_balance", "raw_loan", "raw_interest", "raw_unrealised_pnl",
			"updated_at",
		}),
	}).Create(b).Error
}

// UpdateBalanceCalc writes the reconciliation results onto an existing
// snapshot row. Raw columns are left alone so collection and
// reconciliation can run in either order.
func (s *gormStore) UpdateBalanceCalc(ctx context.Context, b *models.Balance) error {
	return s.db.WithContext(ctx).Model(&models.Balance{}).
		Where("email = ? AND date = ? AND wallet = ? AND asset = ?",
			b.Email, truncateDate(b.Date), b.Wallet, b.Asset).
		Updates(map[string]any{
			"cal_balance":       b.CalBalance,
			"variance_in_asset": b.VarianceInAsset,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (s *gormStore) UpsertExchangeSymbol(ctx context.Context, sym *models.ExchangeSymbol) error {
	sym.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_asset", "quote_asset", "status",
			"is_spot_trading_allowed", "is_margin_trading_allowed",
			"tick_size", "lot_size", "min_notional", "raw_data", "updated_at",
		}),
	}).Create(sym).Error
}

func (s *gormStore) UpsertTradedSymbol(ctx context.Context, email, symbol string, tradeTime time.Time) error {
	now := time.Now().UTC()
	row := models.TradedSymbol{
		Email:         email,
		Symbol:        symbol,
		FirstSeen:     now,
		LastTradeTime: tradeTime,
		LastChecked:   now,
		Active:        true,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_trade_time", "last_checked", "active",
		}),
	}).Create(&row).Error
}

func (s *gormStore) MarkSymbolInactive(ctx context.Context, email, symbol string) error {
	return s.db.WithContext(ctx).Model(&models.TradedSymbol{}).
		Where("email = ? AND symbol = ?", email, symbol).
		Updates(map[string]any{"active": false, "last_checked": time.Now().UTC()}).Error
}

func (s *gormStore) AppendRaw(ctx context.Context, r *RawRecord) error {
	now := time.Now().UTC()
	payload := string(r.Payload)
	db := s.db.WithContext(ctx)

	switch r.Kind {
	case RawDeposits:
		return db.Create(&models.RawDeposit{Email: r.Email, Payload: payload, IngestedAt: now}).Error
	case RawWithdrawals:
		return db.Create(&models.RawWithdrawal{Email: r.Email, Payload: payload, IngestedAt: now}).Error
	case RawMainTransfers:
		return db.Create(&models.RawMainTransfer{Email: r.Email, Payload: payload, IngestedAt: now}).Error
	case RawSubTransfers:
		return db.Create(&models.RawSubTransfer{Email: r.Email, Payload: payload, IngestedAt: now}).Error
	case RawWalletTransfers:
		return db.Create(&models.RawWalletTransfer{Email: r.Email, Payload: payload, IngestedAt: now}).Error
	case RawTrades:
		return db.Create(&models.RawTrade{Email: r.Email, Symbol: r.Symbol, Payload: payload, IngestedAt: now}).Error
	case RawConverts:
		return db.Create(&models.RawConvert{Email: r.Email, Payload: payload, IngestedAt: now}).Error
	case RawSnapshots:
		return db.Create(&models.RawSnapshot{Email: r.Email, SnapshotDate: truncateDate(r.SnapshotDate), Payload: payload, IngestedAt: now}).Error
	default:
		return fmt.Errorf("unknown raw table kind %q", r.Kind)
	}
}

func (s *gormStore) AppendError(ctx context.Context, e *models.IngestionError) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *gormStore) TransfersBetween(ctx context.Context, email string, start, end time.Time) ([]models.Transfer, error) {
	var transfers []models.Transfer
	err := s.db.WithContext(ctx).
		Where("email = ? AND datetime > ? AND datetime <= ?", email, start, end).
		Order("datetime").
		Find(&transfers).Error
	return transfers, err
}

func (s *gormStore) TradesBetween(ctx context.Context, email string, start, end time.Time) ([]models.TradeRecord, error) {
	var trades []models.TradeRecord
	err := s.db.WithContext(ctx).
		Where("email = ? AND datetime > ? AND datetime <= ?", email, start, end).
		Order("datetime").
		Find(&trades).Error
	return trades, err
}

func (s *gormStore) BalancesOn(ctx context.Context, email string, date time.Time) ([]models.Balance, error) {
	var balances []models.Balance
	err := s.db.WithContext(ctx).
		Where("email = ? AND date = ?", email, truncateDate(date)).
		Find(&balances).Error
	return balances, err
}

func (s *gormStore) MarkReconciled(ctx context.Context, email string, start, end time.Time) error {
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Transfer{}).
		Where("email = ? AND datetime > ? AND datetime <= ?", email, start, end).
		Update("reconciled", true).Error; err != nil {
		return err
	}
	return db.Model(&models.TradeRecord{}).
		Where("email = ? AND datetime > ? AND datetime <= ?", email, start, end).
		Update("reconciled", true).Error
}

func (s *gormStore) ActiveTradedSymbols(ctx context.Context, email string) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).Model(&models.TradedSymbol{}).
		Where("email = ? AND active = true", email).
		Order("last_trade_time desc").
		Pluck("symbol", &symbols).Error
	return symbols, err
}

func (s *gormStore) TradableSymbols(ctx context.Context) ([]models.ExchangeSymbol, error) {
	var symbols []models.ExchangeSymbol
	err := s.db.WithContext(ctx).
		Where("status = ? AND is_spot_trading_allowed = true", "TRADING").
		Find(&symbols).Error
	return symbols, err
}

func (s *gormStore) ObservedAssets(ctx context.Context, email string) ([]string, error) {
	db := s.db.WithContext(ctx)
	seen := make(map[string]struct{})
	var assets []string

	for _, model := range []any{&models.Transfer{}, &models.TradeRecord{}, &models.Balance{}} {
		var batch []string
		if err := db.Model(model).Distinct().
			Where("email = ?", email).
			Pluck("asset", &batch).Error; err != nil {
			return nil, err
		}
		for _, a := range batch {
			if _, ok := seen[a]; !ok && a != "" {
				seen[a] = struct{}{}
				assets = append(assets, a)
			}
		}
	}
	return assets, nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
