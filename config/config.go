package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"botPerformance/internal/adapters/logger" // Import the logger package for LogLevel
)

// Data sources the performance service can read closed trades and ledger entries from.
const (
	DataSourceBackend = "backend"
	DataSourceBinance = "binance"
)

// Config holds all application configuration.
type Config struct {
	// Bot backend
	BackendURL    string
	BackendAPIKey string
	DataSource    string // "backend" or "binance"

	// Binance API, only needed when DataSource is "binance"
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Polling
	PollInterval     time.Duration
	RequestTimeout   time.Duration
	MaxRetryAttempts int

	// Reporting
	QuoteAsset string // Wallet coin for balances and transfers

	// Database
	DBPath string

	// HTTP API
	HTTPPort int

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat string          // "console" or "json"
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Bot backend
	cfg.BackendURL = strings.TrimRight(getEnv("BACKEND_URL", ""), "/")
	cfg.BackendAPIKey = getEnv("BACKEND_API_KEY", "")
	if cfg.BackendURL == "" {
		errs = append(errs, "BACKEND_URL must be set")
	}

	cfg.DataSource = strings.ToLower(getEnv("DATA_SOURCE", DataSourceBackend))
	switch cfg.DataSource {
	case DataSourceBackend, DataSourceBinance:
	default:
		errs = append(errs, fmt.Sprintf("DATA_SOURCE must be %q or %q", DataSourceBackend, DataSourceBinance))
	}

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	if cfg.DataSource == DataSourceBinance {
		if cfg.APIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set when DATA_SOURCE=binance")
		}
		if cfg.SecretKey == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set when DATA_SOURCE=binance")
		}
	}

	// Polling
	pollSeconds, err := getEnvAsIntRequired("POLL_INTERVAL_SECONDS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid POLL_INTERVAL_SECONDS: %v", err))
	} else if pollSeconds < 5 || pollSeconds > 300 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be between 5 and 300")
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	timeoutSeconds, err := getEnvAsIntRequired("REQUEST_TIMEOUT_SECONDS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REQUEST_TIMEOUT_SECONDS: %v", err))
	} else if timeoutSeconds <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT_SECONDS must be positive")
	}
	cfg.RequestTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.MaxRetryAttempts, err = getEnvAsIntRequired("MAX_RETRY_ATTEMPTS", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_RETRY_ATTEMPTS: %v", err))
	} else if cfg.MaxRetryAttempts <= 0 {
		errs = append(errs, "MAX_RETRY_ATTEMPTS must be positive")
	}

	// Reporting
	cfg.QuoteAsset = strings.ToUpper(getEnv("QUOTE_ASSET", "USDT"))

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/bot_performance.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// HTTP API
	cfg.HTTPPort, err = getEnvAsIntRequired("HTTP_PORT", 8080)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HTTP_PORT: %v", err))
	} else if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		errs = append(errs, "HTTP_PORT must be between 1 and 65535")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "console"))
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be console or json")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
