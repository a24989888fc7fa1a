// Package service orchestrates collection and reconciliation across the
// configured accounts: one client and weight budget per account, the full
// collector sequence per window, and notification of findings.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coinfrs/recon/internal/binance"
	"github.com/coinfrs/recon/internal/collector"
	"github.com/coinfrs/recon/internal/recon"
	"github.com/coinfrs/recon/internal/storage"
)

// Account couples one set of exchange credentials with its identity.
type Account struct {
	Email     string
	APIKey    string
	APISecret string
	Type      string
}

// CredentialProvider supplies the accounts a run should cover. configs
// parses the env account list into StaticCredentials; anything
// vault-backed can slot in behind the same interface.
type CredentialProvider interface {
	Accounts(ctx context.Context) ([]Account, error)
}

// StaticCredentials is a fixed account list.
type StaticCredentials []Account

func (s StaticCredentials) Accounts(context.Context) ([]Account, error) { return s, nil }

// Options tune a Service without threading each knob separately.
type Options struct {
	BaseURL      string
	ExportDir    string
	WeightLimit  int
	SymbolBudget int
	FID          int
}

// Service runs the ingestion and reconciliation workflows.
type Service struct {
	store    storage.Store
	creds    CredentialProvider
	notifier Notifier
	opts     Options
	log      *logrus.Logger
}

func New(store storage.Store, creds CredentialProvider, notifier Notifier, logger *logrus.Logger, opts Options) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if opts.WeightLimit <= 0 {
		opts.WeightLimit = binance.DefaultWeightLimit
	}
	return &Service{
		store:    store,
		creds:    creds,
		notifier: notifier,
		opts:     opts,
		log:      logger,
	}
}

// CollectSummary aggregates one collection run across all accounts.
type CollectSummary struct {
	Results        []*collector.Result
	FailedAccounts []string
}

// Collect runs the full collector sequence for every account over the
// given window. One account's failure never stops the others; broken
// credentials fail that account and move on.
func (s *Service) Collect(ctx context.Context, start, end time.Time) (*CollectSummary, error) {
	accounts, err := s.creds.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	summary := &CollectSummary{}
	symbolsRefreshed := false

	for _, acct := range accounts {
		log := s.log.WithField("email", acct.Email)
		client, err := s.clientFor(acct)
		if err != nil {
			log.WithError(err).Error("client construction failed")
			summary.FailedAccounts = append(summary.FailedAccounts, acct.Email)
			continue
		}
		ok, err := client.ValidatePermissions(ctx)
		if err != nil {
			log.WithError(err).Error("permission check failed")
			summary.FailedAccounts = append(summary.FailedAccounts, acct.Email)
			continue
		}
		if !ok {
			log.Error("api key rejected, skipping account")
			summary.FailedAccounts = append(summary.FailedAccounts, acct.Email)
			continue
		}

		deps := &collector.Deps{
			Client:       client,
			Store:        s.store,
			Email:        acct.Email,
			AccountType:  acct.Type,
			FID:          s.opts.FID,
			ExportDir:    s.opts.ExportDir,
			Logger:       s.log,
			SymbolBudget: s.opts.SymbolBudget,
		}

		collectors := make([]collector.Collector, 0, 7)
		// The symbol directory is account-agnostic; refresh it once per
		// run through whichever account validated first.
		if !symbolsRefreshed {
			collectors = append(collectors, collector.NewExchangeInfoCollector(deps))
			symbolsRefreshed = true
		}
		collectors = append(collectors,
			collector.NewDepositCollector(deps),
			collector.NewWithdrawCollector(deps),
			collector.NewTransferCollector(deps),
			collector.NewTradeCollector(deps),
			collector.NewConvertCollector(deps),
			collector.NewSnapshotCollector(deps),
		)

		failed := false
		for _, c := range collectors {
			result, err := c.Collect(ctx, start, end)
			if result != nil {
				summary.Results = append(summary.Results, result)
			}
			if err != nil {
				if errors.Is(err, collector.ErrCredentials) {
					log.WithError(err).Error("credentials rejected mid-run, abandoning account")
					failed = true
					break
				}
				if ctx.Err() != nil {
					return summary, ctx.Err()
				}
				log.WithError(err).WithField("collector", c.Name()).Error("collector failed")
				failed = true
				break
			}
		}
		if failed {
			summary.FailedAccounts = append(summary.FailedAccounts, acct.Email)
		}
	}
	return summary, nil
}

// ReconSummary aggregates one reconciliation run across all accounts.
type ReconSummary struct {
	Results         []*recon.Result
	ReconciledCount int
	FailedCount     int
	FailedAccounts  []string
	Discrepancies   int
}

// Reconcile checks every account for the day before asOf and pushes any
// findings through the notifier.
func (s *Service) Reconcile(ctx context.Context, asOf time.Time) (*ReconSummary, error) {
	accounts, err := s.creds.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	engine := recon.NewEngine(s.store, s.log)
	summary := &ReconSummary{}

	for _, acct := range accounts {
		result, err := engine.Reconcile(ctx, acct.Email, asOf)
		if err != nil {
			if errors.Is(err, recon.ErrMissingSnapshot) {
				summary.FailedCount++
				summary.FailedAccounts = append(summary.FailedAccounts, acct.Email)
				continue
			}
			return summary, err
		}
		summary.Results = append(summary.Results, result)
		summary.ReconciledCount++
		summary.Discrepancies += len(result.Discrepancies)
		if !result.Clean() {
			if err := s.notifier.NotifyDiscrepancies(ctx, result); err != nil {
				s.log.WithError(err).WithField("email", acct.Email).Error("failed to publish discrepancies")
			}
		}
	}
	return summary, nil
}

func (s *Service) clientFor(acct Account) (*binance.Client, error) {
	return binance.NewClient(binance.Config{
		BaseURL:   s.opts.BaseURL,
		APIKey:    acct.APIKey,
		APISecret: acct.APISecret,
		Budget:    binance.NewWeightBudget(s.opts.WeightLimit, binance.DefaultWeightWindow),
		Logger:    s.log,
	})
}
