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
	var startFlag, endFlag string
	flag.StringVar(&startFlag, "start", "", "window start (YYYY-MM-DD), default now minus lookback")
	flag.StringVar(&endFlag, "end", "", "window end (YYYY-MM-DD), default now")
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

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -appConfig.Collect.LookbackDays)
	if startFlag != "" {
		if start, err = time.Parse("2006-01-02", startFlag); err != nil {
			logger.WithError(err).Fatal("invalid -start")
		}
	}
	if endFlag != "" {
		if end, err = time.Parse("2006-01-02", endFlag); err != nil {
			logger.WithError(err).Fatal("invalid -end")
		}
	}

	svc := service.New(
		store,
		service.StaticCredentials(appConfig.Accounts),
		service.NewLogNotifier(logger),
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

	summary, err := svc.Collect(ctx, start, end)
	if err != nil {
		logger.WithError(err).Fatal("collection run failed")
	}
	var collected, saved int
	for _, r := range summary.Results {
		collected += r.Collected
		saved += r.Saved
	}
	logger.WithFields(logrus.Fields{
		"collected":       collected,
		"saved":           saved,
		"failed_accounts": summary.FailedAccounts,
	}).Info("collection finished")
	if len(summary.FailedAccounts) == len(appConfig.Accounts) {
		os.Exit(1)
	}
}
