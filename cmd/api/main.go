// Command api is the FreshTrack API server and daily notification trigger.
//
// Usage:
//
//	freshtrack-api
//	DATABASE_URL=sqlite:fresh.db freshtrack-api

// @title FreshTrack API
// @version 1.0.0
// @description Pantry inventory API that reminds recipients before perishable items expire. Items come from manual entry, receipt scans or label scans; a daily run sends one reminder per item and threshold.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name FreshTrack
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/albapepper/freshtrack/internal/api"
	"github.com/albapepper/freshtrack/internal/api/handler"
	"github.com/albapepper/freshtrack/internal/cache"
	"github.com/albapepper/freshtrack/internal/config"
	"github.com/albapepper/freshtrack/internal/extraction"
	"github.com/albapepper/freshtrack/internal/listener"
	"github.com/albapepper/freshtrack/internal/notifications"
	"github.com/albapepper/freshtrack/internal/storage"
	"github.com/albapepper/freshtrack/internal/trigger"

	_ "github.com/albapepper/freshtrack/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Open storage
	logger.Info("Connecting to storage...")
	backend, err := storage.Open(ctx, cfg, true, logger)
	if err != nil {
		logger.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	defer appCache.Close()
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Notification scheduler
	metrics, err := notifications.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}
	var sender notifications.Dispatcher
	switch cfg.PushMode {
	case config.PushModeLog:
		sender = notifications.NewLogSender(logger)
		logger.Info("Push delivery in log-only mode")
	default:
		sender = notifications.NewPushSender(cfg.PushGatewayURL, cfg.PushAccessToken, cfg.PushRatePerSecond, logger)
	}
	scheduler := notifications.NewScheduler(backend.Items, backend.Log, sender, logger,
		notifications.WithLocation(cfg.NotifyLocation),
		notifications.WithConcurrency(cfg.NotifyConcurrency),
		notifications.WithMetrics(metrics),
	)

	trig, err := trigger.New(scheduler, backend.Log, trigger.Config{
		NotifySpec:  cfg.NotifySchedule,
		CleanupSpec: cfg.CleanupSchedule,
		Location:    cfg.NotifyLocation,
	}, logger)
	if err != nil {
		logger.Error("Failed to configure trigger", "error", err)
		os.Exit(1)
	}
	if cfg.NotifyEnabled {
		go trig.Start(ctx)
	} else {
		logger.Info("Daily notification trigger disabled (NOTIFY_ENABLED=false)")
	}

	// Start LISTEN/NOTIFY consumer for item-change cache invalidation
	if backend.ListenURL != "" {
		go listener.Start(ctx, backend.ListenURL, appCache, logger)
	}

	// Extraction client (optional)
	var extractor extraction.Extractor
	if cfg.ExtractionEnabled() {
		extractor = extraction.NewHTTPExtractor(cfg.ExtractionURL, cfg.ExtractionAPIKey, cfg.ExtractionTimeout, logger)
	} else {
		logger.Info("Extraction endpoints disabled (no EXTRACTION_URL)")
	}

	// Create router
	router := api.NewRouter(handler.Deps{
		Store:     backend.Items,
		History:   backend.Log,
		Cache:     appCache,
		Trigger:   trig,
		Extractor: extractor,
		Config:    cfg,
		Logger:    logger,
	}, prometheus.DefaultGatherer)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // manual runs and extraction are synchronous
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting FreshTrack API",
			"addr", addr,
			"environment", cfg.Environment,
			"storage", backend.Kind,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
