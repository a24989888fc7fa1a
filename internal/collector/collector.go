// Package collector implements the per-type Binance collectors and the
// shared machinery they run on: raw-payload archival, run-scoped error
// accumulation, API error policy, and CSV audit exports.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

// AccountMain marks a master account; sub-account transfer history is only
// attempted for these.
const (
	AccountMain = "main"
	AccountSub  = "sub"
)

// DefaultFID is the facility id stamped on canonical records when the
// caller does not supply one.
const DefaultFID = 1

// Result is what every collector run reports, even under partial failure.
// Partial success is the normal case: callers inspect the counts and the
// accumulated errors rather than a single pass/fail.
type Result struct {
	RunID     string
	Collector string
	Email     string
	Collected int
	Saved     int
	FeesSaved int
	// Subflows carries per-subflow record counts for collectors with more
	// than one fetch path (the transfer collector).
	Subflows map[string]int
	Errors   []models.IngestionError
	CSVFile  string
}

// Collector is the contract every record type implements. Each collector
// also carries a Validate method typed to its own wire record; validation
// never crosses record types, so it stays off the shared contract.
type Collector interface {
	Name() string
	Collect(ctx context.Context, start, end time.Time) (*Result, error)
}

// Deps carries the injected collaborators every collector shares. One Deps
// value per (account, run); the client's weight budget serializes calls
// across collectors of the same account.
type Deps struct {
	Client      *binance.Client
	Store       storage.Store
	Email       string
	AccountType string
	FID         int
	ExportDir   string
	Logger      *logrus.Logger

	// SymbolBudget caps fresh symbols probed per trade run; zero means
	// DefaultSymbolBudget.
	SymbolBudget int

	// sleep is swapped out in tests to avoid real rate-limit waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func (d *Deps) fid() int {
	if d.FID == 0 {
		return DefaultFID
	}
	return d.FID
}

func (d *Deps) logger() *logrus.Logger {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	return d.Logger
}

// rateLimitWait is how long a run pauses before its single retry after the
// exchange reports exhausted request weight.
const rateLimitWait = time.Minute

// ErrCredentials aborts a collector run: the account's API key is broken
// and every further call would fail the same way.
var ErrCredentials = errors.New("collector: api credentials rejected")

// run holds the per-invocation state of one collector execution.
type run struct {
	deps  *Deps
	id    string
	name  string
	log   *logrus.Entry
	errs  []models.IngestionError
	csv   *csvExport
	start time.Time
	end   time.Time
}

func newRun(deps *Deps, name string, start, end time.Time, columns []string) *run {
	id := uuid.NewString()
	return &run{
		deps: deps,
		id:   id,
		name: name,
		log: deps.logger().WithFields(logrus.Fields{
			"collector": name,
			"email":     deps.Email,
			"run_id":    id,
		}),
		csv:   newCSVExport(deps.ExportDir, deps.Email, name, start, end, columns),
		start: start,
		end:   end,
	}
}

// logError accumulates one failed unit of work. It never raises: a bad
// record must not abort the batch it arrived in.
func (r *run) logError(ctx context.Context, errType, symbol, message string, raw error) {
	entry := models.IngestionError{
		RunID:     r.id,
		Timestamp: time.Now().UTC(),
		Email:     r.deps.Email,
		ErrorType: errType,
		Symbol:    symbol,
		Message:   message,
	}
	if raw != nil {
		entry.RawError = rawErrorJSON(raw)
	}
	r.errs = append(r.errs, entry)
	r.log.WithFields(logrus.Fields{"error_type": errType, "symbol": symbol}).Warn(message)
	if err := r.deps.Store.AppendError(ctx, &entry); err != nil {
		r.log.WithError(err).Error("failed to persist ingestion error")
	}
}

// saveRaw archives the unmodified payload before any transformation runs.
func (r *run) saveRaw(ctx context.Context, kind storage.RawKind, symbol string, snapshotDate time.Time, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logError(ctx, "raw_marshal_error", symbol, err.Error(), err)
		return
	}
	rec := storage.RawRecord{
		Kind:         kind,
		Email:        r.deps.Email,
		Symbol:       symbol,
		SnapshotDate: snapshotDate,
		Payload:      data,
	}
	if err := r.deps.Store.AppendRaw(ctx, &rec); err != nil {
		r.logError(ctx, "raw_persist_error", symbol, err.Error(), err)
	}
}

// action is the policy verdict for one API error.
type action int

const (
	actionSkip action = iota
	actionRetry
	actionAbort
)

// handleAPIError applies the shared policy table: rate limit waits out the
// window and retries once, invalid symbol is skipped, broken credentials
// abort the run, everything else is logged and skipped.
func (r *run) handleAPIError(ctx context.Context, err error, symbol string) action {
	var apiErr *binance.APIError
	if !errors.As(err, &apiErr) {
		r.logError(ctx, "api_error", symbol, err.Error(), err)
		return actionSkip
	}
	switch apiErr.Category {
	case binance.ErrRateLimit:
		r.log.WithField("wait", rateLimitWait).Info("rate limit hit, waiting for window reset")
		if sleepErr := r.sleep(ctx, rateLimitWait); sleepErr != nil {
			return actionAbort
		}
		return actionRetry
	case binance.ErrInvalidSymbol:
		r.logError(ctx, "invalid_symbol", symbol, apiErr.Message, apiErr)
		if symbol != "" {
			if markErr := r.deps.Store.MarkSymbolInactive(ctx, r.deps.Email, symbol); markErr != nil {
				r.log.WithError(markErr).WithField("symbol", symbol).Error("failed to deactivate symbol")
			}
		}
		return actionSkip
	case binance.ErrAPIKeyInvalid:
		r.logError(ctx, "api_key_invalid", symbol, apiErr.Message, apiErr)
		return actionAbort
	default:
		r.logError(ctx, "api_error", symbol, apiErr.Message, apiErr)
		return actionSkip
	}
}

func (r *run) sleep(ctx context.Context, d time.Duration) error {
	if r.deps.sleep != nil {
		return r.deps.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// finish closes the CSV export and assembles the run's Result.
func (r *run) finish(result *Result) *Result {
	result.RunID = r.id
	result.Collector = r.name
	result.Email = r.deps.Email
	result.Errors = r.errs
	path, err := r.csv.flush()
	if err != nil {
		r.log.WithError(err).Error("csv export failed")
	} else {
		result.CSVFile = path
	}
	return result
}

func rawErrorJSON(err error) string {
	var apiErr *binance.APIError
	if errors.As(err, &apiErr) {
		data, mErr := json.Marshal(map[string]any{
			"category": apiErr.Category,
			"code":     apiErr.Code,
			"http":     apiErr.HTTPStatus,
			"message":  apiErr.Message,
		})
		if mErr == nil {
			return string(data)
		}
	}
	data, mErr := json.Marshal(map[string]string{"message": err.Error()})
	if mErr != nil {
		return fmt.Sprintf("{%q:%q}", "message", err.Error())
	}
	return string(data)
}
