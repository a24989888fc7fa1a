// Package models defines the canonical accounting schema plus the metadata
// and raw-audit tables the collectors persist into.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceBinanceAPI tags every record with the API it was ingested from.
const SourceBinanceAPI = "binance_api"

// TxnType partitions records by their effect on a position.
type TxnType string

const (
	TxnTransferIn  TxnType = "transfer_in"
	TxnTransferOut TxnType = "transfer_out"
	TxnFee         TxnType = "txn_fee"
	TxnTrade       TxnType = "trade"
)

// TxnSubtype narrows a TxnType to the concrete exchange event.
type TxnSubtype string

const (
	SubDeposit        TxnSubtype = "deposit"
	SubWithdraw       TxnSubtype = "withdraw"
	SubWithdrawalFee  TxnSubtype = "withdrawal_fee"
	SubMainTransfer   TxnSubtype = "transfer_between_account_main_spot"
	SubSubTransfer    TxnSubtype = "transfer_between_account_sub"
	SubWalletTransfer TxnSubtype = "transfer_between_wallets"

	SubSpotBuy     TxnSubtype = "spot_buy"
	SubSpotSell    TxnSubtype = "spot_sell"
	SubMakerFee    TxnSubtype = "maker_fee"
	SubTakerFee    TxnSubtype = "taker_fee"
	SubConvertBuy  TxnSubtype = "convert_buy"
	SubConvertSell TxnSubtype = "convert_sell"
)

// Wallet identifies which account wallet a record belongs to.
type Wallet string

const (
	WalletSpot    Wallet = "SPOT"
	WalletMargin  Wallet = "MARGIN"
	WalletFutures Wallet = "FUTURES"
	WalletFunding Wallet = "FUNDING"
	WalletOption  Wallet = "OPTION"
)

// Transfer is the canonical record for deposits, withdrawals, fees, and
// account/wallet transfers. (source, external_id) is the idempotency key:
// re-ingesting the same exchange event updates the row in place.
type Transfer struct {
	PID          int64           `gorm:"primaryKey;autoIncrement;column:pid"`
	Source       string          `gorm:"column:source;size:100;uniqueIndex:ux_transfer_source_ext,priority:1"`
	FID          int             `gorm:"column:fid"`
	ExternalID   string          `gorm:"column:external_id;size:100;uniqueIndex:ux_transfer_source_ext,priority:2"`
	Datetime     time.Time       `gorm:"column:datetime;index"`
	TxnType      TxnType         `gorm:"column:txn_type;size:50"`
	TxnSubtype   TxnSubtype      `gorm:"column:txn_subtype;size:100"`
	Email        string          `gorm:"column:email;size:255;index"`
	Wallet       Wallet          `gorm:"column:wallet;size:20"`
	Asset        string          `gorm:"column:asset;size:20;index"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(36,18)"`
	CounterParty string          `gorm:"column:counter_party;size:255"`
	Network      string          `gorm:"column:network;size:50"`
	TxnHash      string          `gorm:"column:txn_hash;size:100"`
	MatchID      *int64          `gorm:"column:match_id"`
	Reconciled   bool            `gorm:"column:reconciled"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
}

func (Transfer) TableName() string { return "recon_transfers" }

// TradeRecord is the canonical record for trades and converts. One exchange
// trade decomposes into a principal record and, when commission is nonzero,
// a fee record with its own external id.
type TradeRecord struct {
	PID        int64            `gorm:"primaryKey;autoIncrement;column:pid"`
	Source     string           `gorm:"column:source;size:100;uniqueIndex:ux_trade_source_ext,priority:1"`
	FID        int              `gorm:"column:fid"`
	ExternalID string           `gorm:"column:external_id;size:100;uniqueIndex:ux_trade_source_ext,priority:2"`
	Datetime   time.Time        `gorm:"column:datetime;index"`
	TxnType    TxnType          `gorm:"column:txn_type;size:50;default:trade"`
	TxnSubtype TxnSubtype       `gorm:"column:txn_subtype;size:50"`
	Email      string           `gorm:"column:email;size:255;index"`
	Wallet     Wallet           `gorm:"column:wallet;size:20;default:SPOT"`
	Symbol     string           `gorm:"column:symbol;size:20;index"`
	Asset      string           `gorm:"column:asset;size:20;index"`
	Amount     decimal.Decimal  `gorm:"column:amount;type:numeric(36,18)"`
	Price      *decimal.Decimal `gorm:"column:price;type:numeric(36,18)"`
	AggID      *int64           `gorm:"column:agg_id"`
	Reconciled bool             `gorm:"column:reconciled"`
	CreatedAt  time.Time        `gorm:"column:created_at"`
	UpdatedAt  time.Time        `gorm:"column:updated_at"`
}

func (TradeRecord) TableName() string { return "recon_trades" }

// Balance is one asset's daily snapshot for one wallet. raw_* columns hold
// what the exchange reported; cal_* stay nil until the reconciliation
// engine recomputes them.
type Balance struct {
	PID        int64     `gorm:"primaryKey;autoIncrement;column:pid"`
	Source     string    `gorm:"column:source;size:100"`
	FID        int       `gorm:"column:fid"`
	ExternalID string    `gorm:"column:external_id;size:100"`
	Date       time.Time `gorm:"column:date;type:date;uniqueIndex:ux_balance_key,priority:2"`
	Email      string    `gorm:"column:email;size:255;uniqueIndex:ux_balance_key,priority:1"`
	Wallet     Wallet    `gorm:"column:wallet;size:20;uniqueIndex:ux_balance_key,priority:3"`
	Asset      string    `gorm:"column:asset;size:20;uniqueIndex:ux_balance_key,priority:4"`

	RawBalance       decimal.Decimal `gorm:"column:raw_balance;type:numeric(36,18)"`
	RawLoan          decimal.Decimal `gorm:"column:raw_loan;type:numeric(36,18)"`
	RawInterest      decimal.Decimal `gorm:"column:raw_interest;type:numeric(36,18)"`
	RawUnrealisedPnl decimal.Decimal `gorm:"column:raw_unrealised_pnl;type:numeric(36,18)"`

	CalBalance       *decimal.Decimal `gorm:"column:cal_balance;type:numeric(36,18)"`
	CalLoan          *decimal.Decimal `gorm:"column:cal_loan;type:numeric(36,18)"`
	CalInterest      *decimal.Decimal `gorm:"column:cal_interest;type:numeric(36,18)"`
	CalUnrealisedPnl *decimal.Decimal `gorm:"column:cal_unrealised_pnl;type:numeric(36,18)"`

	VarianceInAsset *decimal.Decimal `gorm:"column:variance_in_asset;type:numeric(36,18)"`
	VarianceInUSD   *decimal.Decimal `gorm:"column:variance_in_usd;type:numeric(36,18)"`
	USDPrice        *decimal.Decimal `gorm:"column:usd_price;type:numeric(36,18)"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Balance) TableName() string { return "recon_balances" }
