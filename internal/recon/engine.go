// Package recon implements daily position reconciliation: the expected
// balance of each asset is rolled forward from the prior snapshot through
// the day's canonical movements and compared against what the exchange
// reported.
package recon

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

// DefaultTolerance absorbs the exchange's own rounding. Differences at or
// below 1e-8 in asset units are treated as equal.
var DefaultTolerance = decimal.New(1, -8)

// ErrMissingSnapshot marks an account that cannot be reconciled for the
// requested day because either boundary snapshot has not been collected.
var ErrMissingSnapshot = errors.New("recon: boundary snapshot missing")

// Discrepancy is one asset whose reported balance disagrees with the
// rolled-forward expectation beyond tolerance.
type Discrepancy struct {
	Email      string
	Date       time.Time
	Wallet     models.Wallet
	Asset      string
	Expected   decimal.Decimal
	Actual     decimal.Decimal
	Difference decimal.Decimal
}

// Result reports one account's reconciliation of one day.
type Result struct {
	Email         string
	Date          time.Time
	AssetsChecked int
	Discrepancies []Discrepancy
}

// Clean reports whether every asset balanced within tolerance.
func (r *Result) Clean() bool { return len(r.Discrepancies) == 0 }

// Engine rolls balances forward and compares them against snapshots. It
// only reads and annotates; collection must have run first.
type Engine struct {
	store     storage.Store
	tolerance decimal.Decimal
	log       *logrus.Entry
}

func NewEngine(store storage.Store, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		store:     store,
		tolerance: DefaultTolerance,
		log:       logger.WithField("component", "recon-engine"),
	}
}

type positionKey struct {
	Wallet models.Wallet
	Asset  string
}

// Reconcile checks one account as of asOf: the snapshot of the day before
// (T-1) is compared against the snapshot two days before (T-2) rolled
// forward through T-1's movements. Working two days behind gives the
// exchange time to finalize its end-of-day snapshots.
//
// expected(T-1) = position(T-2) + sum of signed movement amounts on T-1.
//
// On success the expectation and variance are written back onto the T-1
// snapshot rows and the window's movements are marked reconciled.
func (e *Engine) Reconcile(ctx context.Context, email string, asOf time.Time) (*Result, error) {
	day := truncateDate(asOf)
	tMinus1 := day.AddDate(0, 0, -1)
	tMinus2 := day.AddDate(0, 0, -2)

	prior, err := e.store.BalancesOn(ctx, email, tMinus2)
	if err != nil {
		return nil, err
	}
	actual, err := e.store.BalancesOn(ctx, email, tMinus1)
	if err != nil {
		return nil, err
	}
	if len(prior) == 0 || len(actual) == 0 {
		e.log.WithFields(logrus.Fields{
			"email": email,
			"date":  tMinus1.Format("2006-01-02"),
		}).Warn("boundary snapshot missing, account not reconciled")
		return nil, ErrMissingSnapshot
	}

	// Snapshots are end-of-day, so the movements between them are exactly
	// the ones dated T-1: the window (T-1 00:00, T 00:00].
	windowStart := tMinus1
	windowEnd := day
	transfers, err := e.store.TransfersBetween(ctx, email, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	trades, err := e.store.TradesBetween(ctx, email, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	expected := make(map[positionKey]decimal.Decimal, len(prior))
	for _, b := range prior {
		expected[positionKey{b.Wallet, b.Asset}] = b.RawBalance
	}
	for _, t := range transfers {
		key := positionKey{t.Wallet, t.Asset}
		expected[key] = expected[key].Add(t.Amount)
	}
	for _, t := range trades {
		key := positionKey{t.Wallet, t.Asset}
		expected[key] = expected[key].Add(t.Amount)
	}

	reported := make(map[positionKey]decimal.Decimal, len(actual))
	for _, b := range actual {
		reported[positionKey{b.Wallet, b.Asset}] = b.RawBalance
	}

	keys := make(map[positionKey]struct{}, len(expected)+len(reported))
	for k := range expected {
		keys[k] = struct{}{}
	}
	for k := range reported {
		keys[k] = struct{}{}
	}

	result := &Result{Email: email, Date: tMinus1}
	for key := range keys {
		exp := expected[key]
		act := reported[key]
		diff := act.Sub(exp)
		result.AssetsChecked++
		if diff.Abs().GreaterThan(e.tolerance) {
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Email:      email,
				Date:       tMinus1,
				Wallet:     key.Wallet,
				Asset:      key.Asset,
				Expected:   exp,
				Actual:     act,
				Difference: diff,
			})
		}
		expCopy := exp
		diffCopy := diff
		if err := e.store.UpdateBalanceCalc(ctx, &models.Balance{
			Email:           email,
			Date:            tMinus1,
			Wallet:          key.Wallet,
			Asset:           key.Asset,
			CalBalance:      &expCopy,
			VarianceInAsset: &diffCopy,
		}); err != nil {
			return nil, err
		}
	}
	sort.Slice(result.Discrepancies, func(i, j int) bool {
		a, b := result.Discrepancies[i], result.Discrepancies[j]
		if a.Wallet != b.Wallet {
			return a.Wallet < b.Wallet
		}
		return a.Asset < b.Asset
	})

	// Movements flip to reconciled only once their period balances. A
	// discrepant period keeps them open for manual replay.
	if result.Clean() {
		if err := e.store.MarkReconciled(ctx, email, windowStart, windowEnd); err != nil {
			return nil, err
		}
	}
	e.log.WithFields(logrus.Fields{
		"email":         email,
		"date":          tMinus1.Format("2006-01-02"),
		"assets":        result.AssetsChecked,
		"discrepancies": len(result.Discrepancies),
	}).Info("account reconciled")
	return result, nil
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
