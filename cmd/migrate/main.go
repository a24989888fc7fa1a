package main

import (
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/coinfrs/recon/configs"
	"github.com/coinfrs/recon/internal/storage"
)

func main() {
	logger := logrus.New()
	appConfig := configs.AppLoad()

	db, err := gorm.Open(postgres.Open(appConfig.DBDSN), &gorm.Config{})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to db")
	}
	if err := storage.AutoMigrate(db); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}
	logger.Info("migrations applied")
}
