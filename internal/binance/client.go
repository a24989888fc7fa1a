// Package binance implements the signed, rate-budgeted REST client the
// collectors use to pull account history from the exchange.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL    = "https://api.binance.com"
	defaultRecvWindow = 5000
	requestTimeout    = 15 * time.Second
)

// Config holds client construction parameters. Credentials arrive already
// decrypted from the credential provider; the client never stores them
// anywhere else.
type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	RecvWindow int

	// Budget serializes all calls sharing one account's credentials. When
	// nil a fresh default budget is created, but callers running several
	// collectors for the same account must pass a shared one.
	Budget *WeightBudget

	Logger *logrus.Logger
}

// Client is a signed Binance REST client. Safe for concurrent use; all
// requests block on the shared weight budget first.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	recvWindow int

	httpClient *http.Client
	budget     *WeightBudget
	limiter    *rate.Limiter
	log        *logrus.Entry
	now        func() time.Time
}

// NewClient builds a client from the given config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("binance: api key and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = defaultRecvWindow
	}
	if cfg.Budget == nil {
		cfg.Budget = NewWeightBudget(DefaultWeightLimit, DefaultWeightWindow)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		recvWindow: cfg.RecvWindow,
		httpClient: &http.Client{Timeout: requestTimeout},
		budget:     cfg.Budget,
		// Smooths bursts under the minute budget: 10 req/s sustained.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		log:     cfg.Logger.WithField("component", "binance-client"),
		now:     time.Now,
	}, nil
}

// sign produces the HMAC-SHA256 digest of the canonical query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// request applies the weight budget, issues the call, and decodes either the
// payload or the exchange error envelope into a typed *APIError.
func (c *Client) request(ctx context.Context, method, path string, params url.Values, signed bool, weight int) (json.RawMessage, error) {
	if err := c.budget.Acquire(ctx, weight); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("recvWindow", strconv.Itoa(c.recvWindow))
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		params.Set("signature", c.sign(params.Encode()))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		_ = json.Unmarshal(body, &envelope)
		apiErr := classify(resp.StatusCode, envelope.Code, envelope.Msg)
		c.log.WithFields(logrus.Fields{
			"path":     path,
			"status":   resp.StatusCode,
			"code":     envelope.Code,
			"category": apiErr.Category,
		}).Warn("api error response")
		return nil, apiErr
	}
	return body, nil
}

// ValidatePermissions issues one unsigned, zero-risk read call. It returns
// false only when the error category is APIKeyInvalid; any other failure
// propagates to the caller.
func (c *Client) ValidatePermissions(ctx context.Context) (bool, error) {
	_, err := c.request(ctx, http.MethodGet, pathExchangeInfo, nil, false, weightExchangeInfo)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Category == ErrAPIKeyInvalid {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExchangeInfo fetches the full symbol directory.
func (c *Client) ExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	body, err := c.request(ctx, http.MethodGet, pathExchangeInfo, nil, false, weightExchangeInfo)
	if err != nil {
		return nil, err
	}
	var info ExchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}
	return &info, nil
}

// DepositHistory fetches deposits within [start, end]. Callers chunk ranges
// longer than the endpoint's 90-day lookback themselves.
func (c *Client) DepositHistory(ctx context.Context, start, end time.Time, offset int) ([]Deposit, error) {
	params := rangeParams(start, end)
	params.Set("limit", strconv.Itoa(PageLimitDefault))
	params.Set("offset", strconv.Itoa(offset))

	body, err := c.request(ctx, http.MethodGet, pathDepositHistory, params, true, weightDepositHistory)
	if err != nil {
		return nil, err
	}
	var deposits []Deposit
	if err := json.Unmarshal(body, &deposits); err != nil {
		return nil, fmt.Errorf("decode deposit history: %w", err)
	}
	return deposits, nil
}

// WithdrawHistory fetches withdrawals within [start, end].
func (c *Client) WithdrawHistory(ctx context.Context, start, end time.Time, offset int) ([]Withdrawal, error) {
	params := rangeParams(start, end)
	params.Set("limit", strconv.Itoa(PageLimitDefault))
	params.Set("offset", strconv.Itoa(offset))

	body, err := c.request(ctx, http.MethodGet, pathWithdrawHistory, params, true, weightWithdrawHistory)
	if err != nil {
		return nil, err
	}
	var withdrawals []Withdrawal
	if err := json.Unmarshal(body, &withdrawals); err != nil {
		return nil, fmt.Errorf("decode withdraw history: %w", err)
	}
	return withdrawals, nil
}

// MyTrades fetches account trades for one symbol. fromID of zero means
// "from the beginning of the window"; pass lastID+1 to advance the cursor.
func (c *Client) MyTrades(ctx context.Context, symbol string, start, end time.Time, fromID int64) ([]Trade, error) {
	params := rangeParams(start, end)
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(PageLimitDefault))
	if fromID > 0 {
		params.Set("fromId", strconv.FormatInt(fromID, 10))
	}

	body, err := c.request(ctx, http.MethodGet, pathMyTrades, params, true, weightMyTrades)
	if err != nil {
		return nil, err
	}
	var trades []Trade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	return trades, nil
}

// AssetTransfers fetches universal transfers of one direction token.
func (c *Client) AssetTransfers(ctx context.Context, transferType string, start, end time.Time, current int) ([]AssetTransfer, error) {
	params := rangeParams(start, end)
	params.Set("type", transferType)
	params.Set("size", strconv.Itoa(PageLimitTransfers))
	params.Set("current", strconv.Itoa(current))

	body, err := c.request(ctx, http.MethodGet, pathAssetTransfer, params, true, weightAssetTransfer)
	if err != nil {
		return nil, err
	}
	var page assetTransferPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode asset transfers: %w", err)
	}
	return page.Rows, nil
}

// SubAccountTransfers fetches sub-account transfer history. Only master
// accounts may call this; others get an APIKeyInvalid-class error.
func (c *Client) SubAccountTransfers(ctx context.Context, start, end time.Time) ([]SubTransfer, error) {
	params := rangeParams(start, end)
	params.Set("limit", strconv.Itoa(PageLimitSub))

	body, err := c.request(ctx, http.MethodGet, pathSubAccountTransfers, params, true, weightSubAccountTransfers)
	if err != nil {
		return nil, err
	}
	var transfers []SubTransfer
	if err := json.Unmarshal(body, &transfers); err != nil {
		return nil, fmt.Errorf("decode sub transfers: %w", err)
	}
	return transfers, nil
}

// ConvertHistory fetches convert trade flow within [start, end].
func (c *Client) ConvertHistory(ctx context.Context, start, end time.Time) ([]Convert, error) {
	params := rangeParams(start, end)
	params.Set("limit", strconv.Itoa(PageLimitDefault))

	body, err := c.request(ctx, http.MethodGet, pathConvertHistory, params, true, weightConvertHistory)
	if err != nil {
		return nil, err
	}
	var page convertPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode convert history: %w", err)
	}
	return page.List, nil
}

// AccountSnapshot fetches daily snapshots for one wallet family. The
// endpoint wraps its payload in a {code, msg, snapshotVos} envelope and
// reports errors with code != 200 even on HTTP 200.
func (c *Client) AccountSnapshot(ctx context.Context, accountType string, start, end time.Time) ([]Snapshot, error) {
	params := rangeParams(start, end)
	params.Set("type", accountType)
	params.Set("limit", strconv.Itoa(PageLimitSnapshot))

	body, err := c.request(ctx, http.MethodGet, pathAccountSnapshot, params, true, weightAccountSnapshot)
	if err != nil {
		return nil, err
	}
	var envelope snapshotEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode account snapshot: %w", err)
	}
	if envelope.Code != 200 {
		return nil, classify(http.StatusOK, envelope.Code, envelope.Msg)
	}
	return envelope.SnapshotVos, nil
}

func rangeParams(start, end time.Time) url.Values {
	params := url.Values{}
	if !start.IsZero() {
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	return params
}
