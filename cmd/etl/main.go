package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/quake-data-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/quake-data-etl/internal/adapter/postgres"
	"github.com/couchcryptid/quake-data-etl/internal/adapter/usgs"
	"github.com/couchcryptid/quake-data-etl/internal/adapter/worldpop"
	"github.com/couchcryptid/quake-data-etl/internal/config"
	"github.com/couchcryptid/quake-data-etl/internal/ingest"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
	"github.com/couchcryptid/quake-data-etl/internal/pipeline"
)

func main() {
	// Local development reads settings from a .env file when present.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
		logger.Error("failed to apply schema migrations", "error", err)
		os.Exit(1)
	}

	store := postgres.NewEventStore(pool, logger)

	feed := usgs.NewClient(cfg.USGSBaseURL, cfg.USGSTimeout, logger)
	demographics := worldpop.NewClient(cfg.WorldPopBaseURL, cfg.WorldPopTaskURL,
		cfg.WorldPopDataset, cfg.WorldPopYear, cfg.WorldPopTimeout, metrics, logger)

	enricher := pipeline.NewEnricher(demographics, logger)

	// Notifications are feature-flagged via KAFKA_BROKERS.
	var notifier pipeline.Notifier
	if cfg.NotificationsEnabled() {
		kn := kafkaadapter.NewNotifier(cfg.KafkaBrokers, cfg.KafkaNotifyTopic, logger)
		defer func() {
			if err := kn.Close(); err != nil {
				logger.Error("kafka notifier close error", "error", err)
			}
		}()
		notifier = kn
		logger.Info("significant-event notifications enabled", "topic", cfg.KafkaNotifyTopic)
	} else {
		logger.Info("significant-event notifications disabled")
	}

	job := pipeline.NewJob(store, store, enricher, notifier, logger, metrics,
		cfg.BatchPageSize, cfg.BatchChunkSize)
	stager := ingest.NewService(feed, store, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, stager, job, store, job, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
