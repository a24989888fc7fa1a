package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coinfrs/recon/configs"
	"github.com/coinfrs/recon/internal/service"
	"github.com/coinfrs/recon/internal/storage"
)

func main() {
	var dateFlag string
	flag.StringVar(&dateFlag, "date", "", "reconcile as of this date (YYYY-MM-DD), default today")
	flag.Parse()

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

	asOf := time.Now().UTC()
	if dateFlag != "" {
		if asOf, err = time.Parse("2006-01-02", dateFlag); err != nil {
			logger.WithError(err).Fatal("invalid -date")
		}
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
		service.Options{},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := svc.Reconcile(ctx, asOf)
	if err != nil {
		logger.WithError(err).Fatal("reconciliation run failed")
	}
	logger.WithFields(logrus.Fields{
		"reconciled":      summary.ReconciledCount,
		"failed":          summary.FailedCount,
		"failed_accounts": summary.FailedAccounts,
		"discrepancies":   summary.Discrepancies,
	}).Info("reconciliation finished")
	if summary.Discrepancies > 0 {
		os.Exit(2)
	}
}
