package models

import "time"

// ExchangeSymbol caches the exchange's symbol directory. Refreshed in
// place on every exchange-info run, never append-only.
type ExchangeSymbol struct {
	ID                     int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Symbol                 string    `gorm:"column:symbol;size:20;uniqueIndex"`
	BaseAsset              string    `gorm:"column:base_asset;size:20;index"`
	QuoteAsset             string    `gorm:"column:quote_asset;size:20;index"`
	Status                 string    `gorm:"column:status;size:20"`
	IsSpotTradingAllowed   bool      `gorm:"column:is_spot_trading_allowed"`
	IsMarginTradingAllowed bool      `gorm:"column:is_margin_trading_allowed"`
	TickSize               string    `gorm:"column:tick_size;size:40"`
	LotSize                string    `gorm:"column:lot_size;size:40"`
	MinNotional            string    `gorm:"column:min_notional;size:40"`
	RawData                string    `gorm:"column:raw_data;type:jsonb"`
	UpdatedAt              time.Time `gorm:"column:updated_at"`
}

func (ExchangeSymbol) TableName() string { return "binance_exchange_symbols" }

// TradedSymbol remembers which symbols an account has actually traded so
// later runs skip probing the full symbol universe.
type TradedSymbol struct {
	ID            int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Email         string    `gorm:"column:email;size:255;uniqueIndex:ux_traded_symbol,priority:1"`
	Symbol        string    `gorm:"column:symbol;size:20;uniqueIndex:ux_traded_symbol,priority:2"`
	FirstSeen     time.Time `gorm:"column:first_seen"`
	LastTradeTime time.Time `gorm:"column:last_trade_time"`
	LastChecked   time.Time `gorm:"column:last_checked"`
	Active        bool      `gorm:"column:active;default:true"`
}

func (TradedSymbol) TableName() string { return "binance_traded_symbols" }

// IngestionError is the append-only log of skipped or failed units of work,
// kept with enough context for manual replay.
type IngestionError struct {
	ID           int64      `gorm:"primaryKey;autoIncrement;column:id"`
	RunID        string     `gorm:"column:run_id;size:36;index"`
	Timestamp    time.Time  `gorm:"column:timestamp"`
	Email        string     `gorm:"column:email;size:255"`
	ErrorType    string     `gorm:"column:error_type;size:50"`
	Symbol       string     `gorm:"column:symbol;size:20"`
	Message      string     `gorm:"column:message"`
	RawError     string     `gorm:"column:raw_error;type:jsonb"`
	ManualReview bool       `gorm:"column:needs_manual_review"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at"`
	Resolution   string     `gorm:"column:resolution_notes"`
}

func (IngestionError) TableName() string { return "binance_ingestion_errors" }
