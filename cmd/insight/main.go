package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	httpadapter "github.com/envsense/insight-engine/internal/adapter/http"
	kafkaadapter "github.com/envsense/insight-engine/internal/adapter/kafka"
	"github.com/envsense/insight-engine/internal/adapter/postgres"
	"github.com/envsense/insight-engine/internal/adapter/provider"
	"github.com/envsense/insight-engine/internal/adapter/redisstate"
	"github.com/envsense/insight-engine/internal/config"
	"github.com/envsense/insight-engine/internal/domain"
	"github.com/envsense/insight-engine/internal/engine"
	"github.com/envsense/insight-engine/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	tables, err := loadTables(cfg, logger)
	if err != nil {
		logger.Error("failed to load reference tables", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Measurement provider (feature-flagged via PROVIDER_BASE_URL).
	var measurements engine.MeasurementProvider
	if cfg.ProviderBaseURL != "" {
		client := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout, logger, metrics)
		measurements = provider.NewCachedProvider(client, cfg.ProviderCacheSize, cfg.ProviderCacheTTL, metrics)
		logger.Info("measurement provider enabled",
			"base_url", cfg.ProviderBaseURL, "cache_size", cfg.ProviderCacheSize, "cache_ttl", cfg.ProviderCacheTTL)
	} else {
		logger.Info("measurement provider disabled, requests must carry measurements")
	}

	// Health profile store (feature-flagged via POSTGRES_DSN).
	var profiles engine.ProfileStore
	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		profiles = store
		logger.Info("health profile store enabled")
	} else {
		logger.Info("health profile store disabled, evaluating baseline risk only")
	}

	// Alert state store (feature-flagged via REDIS_ADDR).
	var states engine.AlertStateStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		states = redisstate.New(client, cfg.AlertStateTTL)
		logger.Info("alert state store enabled", "addr", cfg.RedisAddr, "ttl", cfg.AlertStateTTL)
	} else {
		logger.Info("alert state store disabled, alerts will be deferred")
	}

	// Alert publisher (feature-flagged via KAFKA_BROKERS).
	var alertSink engine.AlertPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAlertsTopic, logger)
		defer publisher.Close()
		alertSink = publisher
		logger.Info("alert publisher enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertsTopic)
	} else {
		logger.Info("alert publisher disabled")
	}

	eng := engine.New(measurements, profiles, states, alertSink, tables, engine.Config{
		FreshnessWindow: cfg.FreshnessWindow,
		AlertCooldown:   cfg.AlertCooldown,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, eng, eng, logger)

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

// loadTables reads reference tables from TABLES_PATH, falling back to the
// built-in defaults.
func loadTables(cfg *config.Config, logger *slog.Logger) (*domain.Tables, error) {
	if cfg.TablesPath == "" {
		logger.Info("using built-in reference tables")
		return domain.DefaultTables(), nil
	}

	tables, err := domain.LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded reference tables", "path", cfg.TablesPath, "version", tables.Version)
	return tables, nil
}
