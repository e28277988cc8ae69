// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Engine tuning.
	FreshnessWindow time.Duration
	AlertCooldown   time.Duration
	TablesPath      string

	// Alert state store (Redis). Empty address disables alerting.
	RedisAddr     string
	RedisPassword string
	AlertStateTTL time.Duration

	// Health profile store (PostgreSQL). Empty DSN disables profiles.
	PostgresDSN string

	// Alert notification sink (Kafka). Empty broker list disables publishing.
	KafkaBrokers     []string
	KafkaAlertsTopic string

	// Upstream measurement provider. Empty base URL disables fetching.
	ProviderBaseURL   string
	ProviderAPIKey    string
	ProviderTimeout   time.Duration
	ProviderCacheSize int
	ProviderCacheTTL  time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is merged in first, never
// overriding real environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	freshnessWindow, err := parseDuration("FRESHNESS_WINDOW", "3h")
	if err != nil {
		return nil, err
	}
	alertCooldown, err := parseDuration("ALERT_COOLDOWN", "4h")
	if err != nil {
		return nil, err
	}
	alertStateTTL, err := parseDuration("ALERT_STATE_TTL", "48h")
	if err != nil {
		return nil, err
	}
	providerTimeout, err := parseDuration("PROVIDER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	providerCacheTTL, err := parseDuration("PROVIDER_CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}
	providerCacheSize, err := parsePositiveInt("PROVIDER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FreshnessWindow: freshnessWindow,
		AlertCooldown:   alertCooldown,
		TablesPath:      os.Getenv("TABLES_PATH"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		AlertStateTTL: alertStateTTL,

		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertsTopic: envOrDefault("KAFKA_ALERTS_TOPIC", "environment-alerts"),

		ProviderBaseURL:   os.Getenv("PROVIDER_BASE_URL"),
		ProviderAPIKey:    os.Getenv("PROVIDER_API_KEY"),
		ProviderTimeout:   providerTimeout,
		ProviderCacheSize: providerCacheSize,
		ProviderCacheTTL:  providerCacheTTL,
	}

	if cfg.ProviderAPIKey != "" && cfg.ProviderBaseURL == "" {
		return nil, errors.New("PROVIDER_API_KEY is set but PROVIDER_BASE_URL is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

// parseBrokers splits a comma-separated broker list, dropping empty entries.
func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
