package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/coinfrs/recon/configs"
	"github.com/coinfrs/recon/internal/service"
	"github.com/coinfrs/recon/internal/storage"
)

// The daily job collects the lookback window and then reconciles the day
// before. Running two days behind real time means the exchange has had a
// full day to finalize the snapshots the comparison reads.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	appConfig := configs.AppLoad()

	if len(appConfig.Accounts) == 0 {
		logger.Fatal("no accounts configured, set BINANCE_ACCOUNTS")
	}

	store, err := storage.NewGormStore(appConfig.DBDSN)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to db")
	}

	var notifier service.Notifier
	if appConfig.Kafka.Broker != "" {
		kafkaNotifier := service.NewKafkaNotifier([]string{appConfig.Kafka.Broker}, appConfig.Kafka.Topic, logger)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	} else {
		notifier = service.NewLogNotifier(logger)
	}

	svc := service.New(
		store,
		service.StaticCredentials(appConfig.Accounts),
		notifier,
		logger,
		service.Options{
			BaseURL:      appConfig.Binance.BaseURL,
			ExportDir:    appConfig.Collect.ExportDir,
			WeightLimit:  appConfig.Binance.WeightLimit,
			SymbolBudget: appConfig.Collect.SymbolBudget,
			FID:          appConfig.Collect.FID,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := func() {
		now := time.Now().UTC()
		start := now.AddDate(0, 0, -appConfig.Collect.LookbackDays)

		collectSummary, err := svc.Collect(ctx, start, now)
		if err != nil {
			logger.WithError(err).Error("scheduled collection failed")
			return
		}
		logger.WithField("failed_accounts", collectSummary.FailedAccounts).Info("scheduled collection finished")

		reconSummary, err := svc.Reconcile(ctx, now)
		if err != nil {
			logger.WithError(err).Error("scheduled reconciliation failed")
			return
		}
		logger.WithFields(logrus.Fields{
			"reconciled":    reconSummary.ReconciledCount,
			"failed":        reconSummary.FailedCount,
			"discrepancies": reconSummary.Discrepancies,
		}).Info("scheduled reconciliation finished")
	}

	c := cron.New()
	spec := fmt.Sprintf("0 %d * * *", appConfig.Collect.ScheduleHour)
	if _, err := c.AddFunc(spec, job); err != nil {
		logger.WithError(err).Fatal("invalid cron spec")
	}
	c.Start()
	logger.WithField("schedule", spec).Info("scheduler started")

	<-ctx.Done()
	logger.Info("shutting down")
	cronCtx := c.Stop()
	<-cronCtx.Done()
	os.Exit(0)
}
