package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/caesarbot/service/birdeye"
	"github.com/brojonat/caesarbot/service/config"
	"github.com/brojonat/caesarbot/service/db"
	"github.com/brojonat/caesarbot/service/dexscreener"
	"github.com/brojonat/caesarbot/service/helius"
	"github.com/brojonat/caesarbot/service/jupiter"
	"github.com/brojonat/caesarbot/service/metrics"
	natspkg "github.com/brojonat/caesarbot/service/nats"
	"github.com/brojonat/caesarbot/service/pumpfun"
	"github.com/brojonat/caesarbot/service/pumpportal"
	"github.com/brojonat/caesarbot/service/realtime"
	"github.com/brojonat/caesarbot/service/rugcheck"
	"github.com/brojonat/caesarbot/service/server"
	"github.com/brojonat/caesarbot/service/temporal"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	dbPool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("connected to database")

	store := db.NewStore(dbPool, metricsCollector)

	bus, err := natspkg.NewBus(cfg.NATSURL, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create NATS bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	stats := realtime.NewService(store, bus, metricsCollector, logger)
	defer stats.UnsubscribeAll()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	prices, err := birdeye.NewClient(cfg.BirdeyeAPIKey, cfg.BirdeyeAPIURL, httpClient, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create birdeye client", "error", err)
		os.Exit(1)
	}

	wallets, err := helius.NewClient(helius.Config{
		APIKey:     cfg.HeliusAPIKey,
		RPCURL:     cfg.HeliusRPCURL,
		APIURL:     cfg.HeliusAPIURL,
		HTTPClient: httpClient,
	}, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create helius client", "error", err)
		os.Exit(1)
	}

	swaps := jupiter.NewClient(cfg.JupiterAPIURL, metricsCollector, logger,
		jupiter.WithHTTPClient(httpClient),
		jupiter.WithMaxQuoteAge(cfg.QuoteMaxAge),
	)

	// Temporal is optional for the proxy: without it the watch routes are disabled.
	var scheduler temporal.Scheduler
	temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
	if err != nil {
		logger.Warn("temporal unavailable, wallet watch routes disabled", "error", err)
	} else {
		defer temporalClient.Close()
		scheduler = temporalClient
	}

	httpServer := server.New(cfg.ServerAddr, server.Deps{
		Prices: &retryingPrices{
			PriceService: prices,
			attempts:     cfg.RetryAttempts,
			baseDelay:    cfg.RetryBaseDelay,
			metrics:      metricsCollector,
		},
		Wallets:   wallets,
		Swaps:     swaps,
		Trades:    pumpportal.NewTrader(cfg.PumpportalAPIURL, httpClient, metricsCollector, logger),
		Stats:     stats,
		Uploads:   pumpfun.NewClient(cfg.PumpfunAPIURL, httpClient, metricsCollector, logger),
		Reports:   rugcheck.NewClient(cfg.RugcheckAPIURL, httpClient, metricsCollector, logger),
		Pairs:     dexscreener.NewClient(cfg.DexscreenerAPIURL, httpClient, metricsCollector, logger),
		Launches:  pumpportal.NewFeed(cfg.PumpportalWSURL, nil, logger),
		Scheduler: scheduler,
	}, server.Options{
		DefaultPollInterval: cfg.DefaultPollInterval,
		MinPollInterval:     cfg.MinPollInterval,
		AllowedOrigins:      cfg.AllowedOrigins,
	}, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"nats_url", cfg.NATSURL,
		"temporal_host", cfg.TemporalHost,
		"watch_enabled", scheduler != nil,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	level, err := config.ParseLogLevel(levelStr)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
