package collector

import (
	"context"
	"sort"

	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

// DefaultSymbolBudget caps how many never-before-traded symbols one run
// probes. The full directory is thousands of symbols; probing them all
// would burn the weight budget for nothing on most accounts.
const DefaultSymbolBudget = 100

// quoteRank orders discovery candidates: stablecoin-quoted markets first,
// then the major crypto quotes, then everything else. Accounts trade
// overwhelmingly against stables, so this finds activity soonest.
var quoteRank = map[string]int{
	"USDT":  0,
	"USDC":  1,
	"BUSD":  2,
	"FDUSD": 3,
	"BTC":   4,
	"ETH":   5,
	"BNB":   6,
}

func rankOf(quote string) int {
	if r, ok := quoteRank[quote]; ok {
		return r
	}
	return len(quoteRank)
}

// symbolPlan decides which symbols a trade run queries: every symbol the
// account is already known to trade, plus up to budget fresh candidates
// whose base or quote asset the account has actually held. It also
// returns the directory lookup the transformation needs for base/quote
// splitting.
func symbolPlan(ctx context.Context, store storage.Store, email string, budget int) ([]string, map[string]models.ExchangeSymbol, error) {
	if budget <= 0 {
		budget = DefaultSymbolBudget
	}

	directory, err := store.TradableSymbols(ctx)
	if err != nil {
		return nil, nil, err
	}
	lookup := make(map[string]models.ExchangeSymbol, len(directory))
	for _, s := range directory {
		lookup[s.Symbol] = s
	}

	known, err := store.ActiveTradedSymbols(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool, len(known))
	plan := make([]string, 0, len(known)+budget)
	for _, s := range known {
		seen[s] = true
		plan = append(plan, s)
	}

	assets, err := store.ObservedAssets(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	observed := make(map[string]bool, len(assets))
	for _, a := range assets {
		observed[a] = true
	}

	// A pair is only worth probing if the account has held one of its
	// sides. Probing the rest of the directory burns weight for nothing.
	candidates := make([]models.ExchangeSymbol, 0, len(directory))
	for _, s := range directory {
		if seen[s.Symbol] {
			continue
		}
		if s.Status != "TRADING" || !s.IsSpotTradingAllowed {
			continue
		}
		if !observed[s.BaseAsset] && !observed[s.QuoteAsset] {
			continue
		}
		candidates = append(candidates, s)
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := rankOf(candidates[i].QuoteAsset), rankOf(candidates[j].QuoteAsset)
		if ri != rj {
			return ri < rj
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})
	if len(candidates) > budget {
		candidates = candidates[:budget]
	}
	for _, s := range candidates {
		plan = append(plan, s.Symbol)
	}
	return plan, lookup, nil
}
