package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coinfrs/recon/internal/models"
)

// MemoryStore is an in-memory Store with the same upsert-key semantics as
// the Postgres implementation. Collector and reconciliation tests run
// against it; it is not meant for production use.
type MemoryStore struct {
	mu sync.Mutex

	transfers map[string]*models.Transfer    // source|external_id
	trades    map[string]*models.TradeRecord // source|external_id
	balances  map[string]*models.Balance     // email|date|wallet|asset
	symbols   map[string]*models.ExchangeSymbol
	traded    map[string]*models.TradedSymbol // email|symbol

	Raw    []RawRecord
	Errors []models.IngestionError

	nextPID int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transfers: make(map[string]*models.Transfer),
		trades:    make(map[string]*models.TradeRecord),
		balances:  make(map[string]*models.Balance),
		symbols:   make(map[string]*models.ExchangeSymbol),
		traded:    make(map[string]*models.TradedSymbol),
	}
}

func (m *MemoryStore) UpsertTransfer(_ context.Context, t *models.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := t.Source + "|" + t.ExternalID
	if existing, ok := m.transfers[key]; ok {
		created := existing.CreatedAt
		pid := existing.PID
		cp := *t
		cp.PID = pid
		cp.CreatedAt = created
		cp.UpdatedAt = time.Now().UTC()
		m.transfers[key] = &cp
		return nil
	}
	m.nextPID++
	cp := *t
	cp.PID = m.nextPID
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.transfers[key] = &cp
	return nil
}

func (m *MemoryStore) UpsertTrade(_ context.Context, t *models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := t.Source + "|" + t.ExternalID
	if existing, ok := m.trades[key]; ok {
		created := existing.CreatedAt
		pid := existing.PID
		cp := *t
		cp.PID = pid
		cp.CreatedAt = created
		cp.UpdatedAt = time.Now().UTC()
		m.trades[key] = &cp
		return nil
	}
	m.nextPID++
	cp := *t
	cp.PID = m.nextPID
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.trades[key] = &cp
	return nil
}

func (m *MemoryStore) UpsertBalance(_ context.Context, b *models.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	cp.Date = truncateDate(b.Date)
	key := balanceKey(&cp)
	if existing, ok := m.balances[key]; ok {
		cp.PID = existing.PID
		cp.CreatedAt = existing.CreatedAt
		cp.CalBalance = existing.CalBalance
		cp.CalLoan = existing.CalLoan
		cp.CalInterest = existing.CalInterest
		cp.CalUnrealisedPnl = existing.CalUnrealisedPnl
		cp.VarianceInAsset = existing.VarianceInAsset
		cp.VarianceInUSD = existing.VarianceInUSD
		cp.USDPrice = existing.USDPrice
	} else {
		m.nextPID++
		cp.PID = m.nextPID
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()
	m.balances[key] = &cp
	return nil
}

func (m *MemoryStore) UpdateBalanceCalc(_ context.Context, b *models.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	cp.Date = truncateDate(b.Date)
	existing, ok := m.balances[balanceKey(&cp)]
	if !ok {
		return nil
	}
	existing.CalBalance = b.CalBalance
	existing.VarianceInAsset = b.VarianceInAsset
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) UpsertExchangeSymbol(_ context.Context, s *models.ExchangeSymbol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.UpdatedAt = time.Now().UTC()
	m.symbols[s.Symbol] = &cp
	return nil
}

func (m *MemoryStore) UpsertTradedSymbol(_ context.Context, email, symbol string, tradeTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := email + "|" + symbol
	now := time.Now().UTC()
	if existing, ok := m.traded[key]; ok {
		existing.LastTradeTime = tradeTime
		existing.LastChecked = now
		existing.Active = true
		return nil
	}
	m.traded[key] = &models.TradedSymbol{
		Email:         email,
		Symbol:        symbol,
		FirstSeen:     now,
		LastTradeTime: tradeTime,
		LastChecked:   now,
		Active:        true,
	}
	return nil
}

func (m *MemoryStore) MarkSymbolInactive(_ context.Context, email, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.traded[email+"|"+symbol]; ok {
		existing.Active = false
		existing.LastChecked = time.Now().UTC()
	}
	return nil
}

func (m *MemoryStore) AppendRaw(_ context.Context, r *RawRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Raw = append(m.Raw, *r)
	return nil
}

func (m *MemoryStore) AppendError(_ context.Context, e *models.IngestionError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors = append(m.Errors, *e)
	return nil
}

func (m *MemoryStore) TransfersBetween(_ context.Context, email string, start, end time.Time) ([]models.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transfer
	for _, t := range m.transfers {
		if t.Email == email && t.Datetime.After(start) && !t.Datetime.After(end) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.Before(out[j].Datetime) })
	return out, nil
}

func (m *MemoryStore) TradesBetween(_ context.Context, email string, start, end time.Time) ([]models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TradeRecord
	for _, t := range m.trades {
		if t.Email == email && t.Datetime.After(start) && !t.Datetime.After(end) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.Before(out[j].Datetime) })
	return out, nil
}

func (m *MemoryStore) BalancesOn(_ context.Context, email string, date time.Time) ([]models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := truncateDate(date)
	var out []models.Balance
	for _, b := range m.balances {
		if b.Email == email && b.Date.Equal(day) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (m *MemoryStore) MarkReconciled(_ context.Context, email string, start, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transfers {
		if t.Email == email && t.Datetime.After(start) && !t.Datetime.After(end) {
			t.Reconciled = true
		}
	}
	for _, t := range m.trades {
		if t.Email == email && t.Datetime.After(start) && !t.Datetime.After(end) {
			t.Reconciled = true
		}
	}
	return nil
}

func (m *MemoryStore) ActiveTradedSymbols(_ context.Context, email string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []*models.TradedSymbol
	for _, s := range m.traded {
		if s.Email == email && s.Active {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LastTradeTime.After(rows[j].LastTradeTime) })
	symbols := make([]string, 0, len(rows))
	for _, s := range rows {
		symbols = append(symbols, s.Symbol)
	}
	return symbols, nil
}

func (m *MemoryStore) TradableSymbols(_ context.Context) ([]models.ExchangeSymbol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ExchangeSymbol
	for _, s := range m.symbols {
		if s.Status == "TRADING" && s.IsSpotTradingAllowed {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *MemoryStore) ObservedAssets(_ context.Context, email string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	var assets []string
	add := func(email2, asset string) {
		if email2 != email || asset == "" {
			return
		}
		if _, ok := seen[asset]; !ok {
			seen[asset] = struct{}{}
			assets = append(assets, asset)
		}
	}
	for _, t := range m.transfers {
		add(t.Email, t.Asset)
	}
	for _, t := range m.trades {
		add(t.Email, t.Asset)
	}
	for _, b := range m.balances {
		add(b.Email, b.Asset)
	}
	sort.Strings(assets)
	return assets, nil
}

// Transfers returns all canonical transfer rows, sorted by external id.
// Test helper.
func (m *MemoryStore) Transfers() []models.Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Transfer, 0, len(m.transfers))
	for _, t := range m.transfers {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}

// Trades returns all canonical trade rows, sorted by external id. Test
// helper.
func (m *MemoryStore) Trades() []models.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TradeRecord, 0, len(m.trades))
	for _, t := range m.trades {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}

// TradedSymbolEntry returns the cache row for (email, symbol), or nil.
func (m *MemoryStore) TradedSymbolEntry(email, symbol string) *models.TradedSymbol {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.traded[email+"|"+symbol]; ok {
		cp := *s
		return &cp
	}
	return nil
}

func balanceKey(b *models.Balance) string {
	return b.Email + "|" + b.Date.Format("2006-01-02") + "|" + string(b.Wallet) + "|" + b.Asset
}
