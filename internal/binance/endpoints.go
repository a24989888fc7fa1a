package binance

// Endpoint paths grouped the way Binance documents them. Only the surface
// the collectors touch is listed here.
const (
	pathExchangeInfo        = "/api/v3/exchangeInfo"
	pathMyTrades            = "/api/v3/myTrades"
	pathDepositHistory      = "/sapi/v1/capital/deposit/hisrec"
	pathWithdrawHistory     = "/sapi/v1/capital/withdraw/history"
	pathAccountSnapshot     = "/sapi/v1/accountSnapshot"
	pathAssetTransfer       = "/sapi/v1/asset/transfer"
	pathSubAccountTransfers = "/sapi/v1/sub-account/transfer/subUserHistory"
	pathConvertHistory      = "/sapi/v1/convert/tradeFlow"
)

// Request weights as published in the exchange's API documentation. The
// budget accounts in these units, not in request counts.
const (
	weightExchangeInfo        = 20
	weightMyTrades            = 20
	weightDepositHistory      = 1
	weightWithdrawHistory     = 18
	weightAccountSnapshot     = 2400
	weightAssetTransfer       = 1
	weightSubAccountTransfers = 1
	weightConvertHistory      = 20
)

// Historical lookback limits per endpoint family, in days.
const (
	MaxRangeDaysDefault  = 90
	MaxRangeDaysTrades   = 1
	MaxRangeDaysSnapshot = 30
)

// Page sizes. A page shorter than the limit terminates pagination.
const (
	PageLimitDefault   = 1000
	PageLimitTransfers = 100
	PageLimitSub       = 500
	PageLimitSnapshot  = 30
)

// Universal-transfer type tokens encode fromWallet_toWallet. MAIN is the
// spot wallet. MainTransferTypes cover movements touching the spot wallet;
// WalletTransferTypes cover the remaining wallet-to-wallet pairs.
var MainTransferTypes = []string{
	"MAIN_UMFUTURE",
	"MAIN_CMFUTURE",
	"MAIN_MARGIN",
	"MAIN_FUNDING",
	"UMFUTURE_MAIN",
	"CMFUTURE_MAIN",
	"MARGIN_MAIN",
	"FUNDING_MAIN",
}

var WalletTransferTypes = []string{
	"MARGIN_UMFUTURE",
	"UMFUTURE_MARGIN",
	"MARGIN_CMFUTURE",
	"CMFUTURE_MARGIN",
	"FUNDING_UMFUTURE",
	"UMFUTURE_FUNDING",
	"MARGIN_FUNDING",
	"FUNDING_MARGIN",
	"FUNDING_CMFUTURE",
	"CMFUTURE_FUNDING",
}

// SnapshotTypes are the wallet families the daily snapshot endpoint serves.
var SnapshotTypes = []string{"SPOT", "MARGIN", "FUTURES"}
