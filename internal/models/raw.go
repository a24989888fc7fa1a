package models

import "time"

// Raw audit tables: unmodified API payloads written before any
// transformation runs, one table per endpoint family. Rows are inserted
// once and never updated, so transformation bugs cannot lose evidence.

type RawDeposit struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Email      string    `gorm:"column:email;size:255;index"`
	Payload    string    `gorm:"column:payload;type:jsonb"`
	IngestedAt time.Time `gorm:"column:ingested_at"`
}

func (RawDeposit) TableName() string { return "binance_raw_deposit_history" }

type RawWithdrawal struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Email      string    `gorm:"column:email;size:255;index"`
	Payload    string    `gorm:"column:payload;type:jsonb"`
	IngestedAt time.Time `gorm:"column:ingested_at"`
}

func (RawWithdrawal) TableName() string { return "binance_raw_withdraw_history" }

type RawMainTransfer struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Email      string    `gorm:"column:email;size:255;index"`
	Payload    string    `gorm:"column:payload;type:jsonb"`
	IngestedAt time.Time `gorm:"column:ingested_at"`
}

func (RawMainTransfer) TableName() string { return "binance_raw_transfer_main_spot" }

type RawSubTransfer struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Email      string    `gorm:"column:email;size:255;index"`
	Payload    string    `gorm:"column:payload;type:jsonb"`
	IngestedAt time.Time `gorm:"column:ingested_at"`
}

func (RawSubTransfer) TableName() string { return "binance_raw_transfer_sub_account" }

type RawWalletTransfer struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Email      string    `gorm:"column:email;size:255;index"`
	Payload    string    `gorm:"column:payload;type:jsonb"`
	IngestedAt time.Time `gorm:"column:ingested_at"`
}

func (RawWalletTransfer) TableName() string { return "binance_raw_transfer_wallets" }

type RawTrade struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Email      string    `gorm:"column:email;size:255;index"`
	Symbol     string    `gorm:"column:symbol;size:20;index"`
	Payload    string    `gorm:"column:payload;type:jsonb"`
	IngestedAt time.Time `gorm:"column:ingested_at"`
}

func (RawTrade) TableName() string { return "binance_raw_trades" }

type RawConvert struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Email      string    `gorm:"column:email;size:255;index"`
	Payload    string    `gorm:"column:payload;type:jsonb"`
	IngestedAt time.Time `gorm:"column:ingested_at"`
}

func (RawConvert) TableName() string { return "binance_raw_convert_history" }

type RawSnapshot struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Email        string    `gorm:"column:email;size:255;index"`
	SnapshotDate time.Time `gorm:"column:snapshot_date;type:date"`
	Payload      string    `gorm:"column:payload;type:jsonb"`
	IngestedAt   time.Time `gorm:"column:ingested_at"`
}

func (RawSnapshot) TableName() string { return "binance_raw_daily_snapshot" }
