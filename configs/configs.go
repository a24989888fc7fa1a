// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/coinfrs/recon/internal/service"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// DBDSN is the Postgres connection string.
	DBDSN string

	// Binance contains exchange client settings shared by all accounts.
	Binance BinanceConfig

	// Kafka contains the discrepancy notification settings. An empty
	// Broker disables publishing and findings only go to the log.
	Kafka KafkaConfig

	// Collect contains settings for the collection runs.
	Collect CollectConfig

	// Accounts are the exchange accounts every run covers.
	Accounts []service.Account
}

// BinanceConfig holds exchange client settings.
type BinanceConfig struct {
	// BaseURL overrides the production API endpoint, mainly for tests.
	BaseURL string

	// WeightLimit is the per-minute request weight this process may spend
	// per account. Kept well under the exchange's 1200 so other consumers
	// of the same keys are never starved.
	WeightLimit int
}

// KafkaConfig holds Kafka connection settings for discrepancy events.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic is the Kafka topic discrepancies are published to.
	Topic string
}

// CollectConfig holds settings for collection and scheduling.
type CollectConfig struct {
	// LookbackDays is how far back a scheduled collection reaches.
	LookbackDays int

	// SymbolBudget caps fresh symbols probed per trade run.
	SymbolBudget int

	// ExportDir is where CSV audit exports are written.
	ExportDir string

	// ScheduleHour is the hour of day (0-23, UTC) the scheduler fires.
	ScheduleHour int

	// FID is the facility id stamped on canonical records.
	FID int
}

// getDatabaseDSN constructs the Postgres DSN from environment variables.
func getDatabaseDSN() string {
	dbUser := getEnv("POSTGRES_USER", "recon")
	dbPassword := getEnv("POSTGRES_PASSWORD", "recon")
	dbHost := getEnv("POSTGRES_HOST", "localhost")
	dbPort := getEnv("POSTGRES_PORT", "5432")
	dbName := getEnv("POSTGRES_DB", "recon")

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName,
	)
}

// getAccounts parses BINANCE_ACCOUNTS, a comma-separated list of
// email:api_key:api_secret:type entries where type is "main" or "sub".
func getAccounts() []service.Account {
	raw := getEnv("BINANCE_ACCOUNTS", "")
	if raw == "" {
		return nil
	}
	var accounts []service.Account
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 3 {
			continue
		}
		acct := service.Account{
			Email:     parts[0],
			APIKey:    parts[1],
			APISecret: parts[2],
			Type:      "main",
		}
		if len(parts) > 3 && parts[3] != "" {
			acct.Type = parts[3]
		}
		accounts = append(accounts, acct)
	}
	return accounts
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	scheduleHour := getEnvInt("RECON_SCHEDULE_HOUR", 2)
	if scheduleHour < 0 || scheduleHour > 23 {
		scheduleHour = 2
	}

	return &AppConfig{
		DBDSN: getDatabaseDSN(),
		Binance: BinanceConfig{
			BaseURL:     getEnv("BINANCE_BASE_URL", ""),
			WeightLimit: getEnvInt("BINANCE_WEIGHT_LIMIT", 600),
		},
		Kafka: KafkaConfig{
			Broker: getEnv("KAFKA_BROKER", ""),
			Topic:  getEnv("KAFKA_DISCREPANCY_TOPIC", "recon_discrepancies"),
		},
		Collect: CollectConfig{
			LookbackDays: getEnvInt("COLLECT_LOOKBACK_DAYS", 3),
			SymbolBudget: getEnvInt("COLLECT_SYMBOL_BUDGET", 100),
			ExportDir:    getEnv("COLLECT_EXPORT_DIR", "exports"),
			ScheduleHour: scheduleHour,
			FID:          getEnvInt("RECON_FID", 1),
		},
		Accounts: getAccounts(),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
