package main

import (
	"fmt"
	"os"

	"botPerformance/config"
	"botPerformance/internal/adapters/backend"
	"botPerformance/internal/adapters/logger"
)

func main() {
	app := &cliApp{out: os.Stdout, connect: connect}
	if err := newRootCmd(app).Execute(); err != nil {
		os.Exit(1)
	}
}

// connect builds the backend client from the same configuration as the service.
func connect(app *cliApp) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	appLogger, err := logger.New(logger.LevelWarn, cfg.LogFormat)
	if err != nil {
		return err
	}
	client, err := backend.New(backend.Config{
		BaseURL:     cfg.BackendURL,
		APIKey:      cfg.BackendAPIKey,
		Timeout:     cfg.RequestTimeout,
		MaxAttempts: cfg.MaxRetryAttempts,
		Logger:      appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize backend client: %w", err)
	}
	app.client = client
	app.quoteAsset = cfg.QuoteAsset
	return nil
}
