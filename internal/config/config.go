// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"finflow-ledger/internal/rates"
	"finflow-ledger/pkg/db" // Import db package for its Config struct
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort  string
	LogLevel    string
	StoreDriver string
	DB          db.Config
	Rates       RatesConfig
	Redis       RedisConfig
}

// RatesConfig configures the exchange rate source.
type RatesConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
	// Static, when set, replaces the HTTP client with a fixed table such as
	// "USD:EUR=0.9,EUR:USD=1.11".
	Static string
}

// RedisConfig configures the optional idempotency store.
type RedisConfig struct {
	URL            string
	IdempotencyTTL time.Duration
}

// LoadConfig loads configuration from environment variables, after merging
// a .env file from the working directory when one exists. Variables already
// set in the environment win over the file.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	ratesTimeout, err := time.ParseDuration(getEnv("RATES_TIMEOUT", rates.DefaultTimeout.String()))
	if err != nil || ratesTimeout <= 0 {
		return nil, fmt.Errorf("invalid RATES_TIMEOUT %q", os.Getenv("RATES_TIMEOUT"))
	}
	idempotencyTTL, err := time.ParseDuration(getEnv("IDEMPOTENCY_TTL", "24h"))
	if err != nil || idempotencyTTL <= 0 {
		return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL %q", os.Getenv("IDEMPOTENCY_TTL"))
	}

	cfg := &AppConfig{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		StoreDriver: getEnv("STORE_DRIVER", StorePostgres),
		DB: db.Config{
			Driver:   getEnv("DB_DRIVER", db.DriverPQ),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "ledgerdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Rates: RatesConfig{
			APIURL:  getEnv("RATES_API_URL", "https://v6.exchangerate-api.com/v6"),
			APIKey:  os.Getenv("RATES_API_KEY"),
			Timeout: ratesTimeout,
			Static:  os.Getenv("RATES_STATIC"),
		},
		Redis: RedisConfig{
			URL:            os.Getenv("REDIS_URL"),
			IdempotencyTTL: idempotencyTTL,
		},
	}

	switch cfg.StoreDriver {
	case StorePostgres, StoreMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", cfg.StoreDriver, StorePostgres, StoreMemory)
	}
	switch cfg.DB.Driver {
	case db.DriverPQ, db.DriverPGX:
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want %s or %s", cfg.DB.Driver, db.DriverPQ, db.DriverPGX)
	}
	if cfg.Rates.Static == "" && cfg.Rates.APIKey == "" {
		return nil, errors.New("either RATES_API_KEY or RATES_STATIC must be set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
