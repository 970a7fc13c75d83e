package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"
	"time"

	"botPerformance/config"
	"botPerformance/internal/adapters/backend"
	"botPerformance/internal/adapters/binanceclient"
	"botPerformance/internal/adapters/logger"
	"botPerformance/internal/adapters/sqlite"
	"botPerformance/internal/api"
	"botPerformance/internal/app"
	"botPerformance/internal/ports"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Bot Backend Client
	backendClient, err := backend.New(backend.Config{
		BaseURL:     cfg.BackendURL,
		APIKey:      cfg.BackendAPIKey,
		Timeout:     cfg.RequestTimeout,
		MaxAttempts: cfg.MaxRetryAttempts,
		Logger:      appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize backend client")
		log.Fatalf("FATAL: Failed to initialize backend client: %v", err)
	}
	appLogger.Info(context.Background(), "Backend client initialized", map[string]interface{}{"baseURL": cfg.BackendURL})

	// 5. Select the Trade Source
	var source ports.TradeSource = backendClient
	if cfg.DataSource == config.DataSourceBinance {
		binanceClient, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			QuoteAsset: cfg.QuoteAsset,
			Logger:     appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
			log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
		}
		source = binanceClient
	}
	appLogger.Info(context.Background(), "Trade source selected", map[string]interface{}{"dataSource": cfg.DataSource})

	// 6. Initialize Application Service
	perfService, err := app.NewPerformanceService(cfg, appLogger, backendClient, source, repo)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize performance service")
		log.Fatalf("FATAL: Failed to initialize performance service: %v", err)
	}
	if err := perfService.LoadPersisted(context.Background()); err != nil {
		appLogger.Warn(context.Background(), "Starting without persisted snapshots", map[string]interface{}{"error": err.Error()})
	}

	// 7. Initialize HTTP API
	server, err := api.New(api.Config{Port: cfg.HTTPPort, Logger: appLogger, Service: perfService})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize HTTP API")
		log.Fatalf("FATAL: Failed to initialize HTTP API: %v", err)
	}

	// 8. Start polling and serving until a shutdown signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := perfService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to start performance service")
		log.Fatalf("FATAL: Failed to start performance service: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		appLogger.Info(context.Background(), "Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(context.Background(), err, "HTTP API stopped unexpectedly")
		}
	}

	perfService.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(context.Background(), err, "Error shutting down HTTP API")
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
