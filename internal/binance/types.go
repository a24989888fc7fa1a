package binance

import "encoding/json"

// Raw payload shapes as the exchange returns them. Monetary fields stay
// strings here; collectors parse them into decimals during transformation.

type Deposit struct {
	ID           string `json:"id"`
	Amount       string `json:"amount"`
	Coin         string `json:"coin"`
	Network      string `json:"network"`
	Status       int    `json:"status"`
	Address      string `json:"address"`
	TxID         string `json:"txId"`
	InsertTime   int64  `json:"insertTime"`
	ConfirmTimes string `json:"confirmTimes"`
}

type Withdrawal struct {
	ID              string `json:"id"`
	Amount          string `json:"amount"`
	TransactionFee  string `json:"transactionFee"`
	Coin            string `json:"coin"`
	Network         string `json:"network"`
	Status          int    `json:"status"`
	Address         string `json:"address"`
	TxID            string `json:"txId"`
	ApplyTime       string `json:"applyTime"`
	CompleteTime    string `json:"completeTime"`
	TransferType    int    `json:"transferType"`
	WithdrawOrderID string `json:"withdrawOrderId"`
}

type Trade struct {
	Symbol          string `json:"symbol"`
	ID              int64  `json:"id"`
	OrderID         int64  `json:"orderId"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	QuoteQty        string `json:"quoteQty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
	IsMaker         bool   `json:"isMaker"`
	IsBestMatch     bool   `json:"isBestMatch"`
}

type AssetTransfer struct {
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	TranID    int64  `json:"tranId"`
	Timestamp int64  `json:"timestamp"`
}

type assetTransferPage struct {
	Total int             `json:"total"`
	Rows  []AssetTransfer `json:"rows"`
}

type SubTransfer struct {
	TranID    int64  `json:"tranId"`
	FromEmail string `json:"fromEmail"`
	ToEmail   string `json:"toEmail"`
	Asset     string `json:"asset"`
	Qty       string `json:"qty"`
	Status    string `json:"status"`
	Time      int64  `json:"time"`
}

type Convert struct {
	QuoteID      string `json:"quoteId"`
	OrderID      int64  `json:"orderId"`
	OrderStatus  string `json:"orderStatus"`
	FromAsset    string `json:"fromAsset"`
	FromAmount   string `json:"fromAmount"`
	ToAsset      string `json:"toAsset"`
	ToAmount     string `json:"toAmount"`
	Ratio        string `json:"ratio"`
	InverseRatio string `json:"inverseRatio"`
	CreateTime   int64  `json:"createTime"`
}

type convertPage struct {
	List      []Convert `json:"list"`
	StartTime int64     `json:"startTime"`
	EndTime   int64     `json:"endTime"`
	Limit     int       `json:"limit"`
	MoreData  bool      `json:"moreData"`
}

type SnapshotBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type SnapshotAsset struct {
	Asset         string `json:"asset"`
	MarginBalance string `json:"marginBalance"`
	WalletBalance string `json:"walletBalance"`
}

type SnapshotPosition struct {
	Symbol           string `json:"symbol"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	PositionAmt      string `json:"positionAmt"`
	UnRealizedProfit string `json:"unRealizedProfit"`
}

type SnapshotData struct {
	TotalAssetOfBtc string             `json:"totalAssetOfBtc"`
	Balances        []SnapshotBalance  `json:"balances"`
	UserAssets      []SnapshotAsset    `json:"userAssets"`
	Assets          []SnapshotAsset    `json:"assets"`
	Positions       []SnapshotPosition `json:"positions"`
}

type Snapshot struct {
	Type       string       `json:"type"`
	UpdateTime int64        `json:"updateTime"`
	Data       SnapshotData `json:"data"`
}

type snapshotEnvelope struct {
	Code        int        `json:"code"`
	Msg         string     `json:"msg"`
	SnapshotVos []Snapshot `json:"snapshotVos"`
}

type SymbolFilter struct {
	FilterType  string `json:"filterType"`
	TickSize    string `json:"tickSize"`
	StepSize    string `json:"stepSize"`
	MinNotional string `json:"minNotional"`
}

type SymbolInfo struct {
	Symbol                 string          `json:"symbol"`
	Status                 string          `json:"status"`
	BaseAsset              string          `json:"baseAsset"`
	QuoteAsset             string          `json:"quoteAsset"`
	BaseAssetPrecision     int             `json:"baseAssetPrecision"`
	QuoteAssetPrecision    int             `json:"quoteAssetPrecision"`
	IsSpotTradingAllowed   bool            `json:"isSpotTradingAllowed"`
	IsMarginTradingAllowed bool            `json:"isMarginTradingAllowed"`
	Permissions            []string        `json:"permissions"`
	Filters                []SymbolFilter  `json:"filters"`
	Raw                    json.RawMessage `json:"-"`
}

type ExchangeInfo struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"`
	Symbols    []SymbolInfo `json:"symbols"`
}

type errorEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
