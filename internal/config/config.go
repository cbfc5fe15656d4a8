package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	USGSBaseURL string
	USGSTimeout time.Duration

	WorldPopBaseURL string
	WorldPopTaskURL string
	WorldPopDataset string
	WorldPopYear    int
	WorldPopTimeout time.Duration

	// Kafka notifications are optional; an empty broker list disables them.
	KafkaBrokers     []string
	KafkaNotifyTopic string

	BatchPageSize  int
	BatchChunkSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	usgsTimeout, err := parseDuration("USGS_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	worldPopTimeout, err := parseDuration("WORLDPOP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	worldPopYear, err := parseInt("WORLDPOP_YEAR", 2020)
	if err != nil {
		return nil, err
	}
	pageSize, err := parseInt("BATCH_PAGE_SIZE", 50)
	if err != nil {
		return nil, err
	}
	chunkSize, err := parseInt("BATCH_CHUNK_SIZE", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		USGSBaseURL: envOrDefault("USGS_BASE_URL", "https://earthquake.usgs.gov/fdsnws/event/1"),
		USGSTimeout: usgsTimeout,

		WorldPopBaseURL: envOrDefault("WORLDPOP_BASE_URL", "https://api.worldpop.org/v1/services/stats"),
		WorldPopTaskURL: envOrDefault("WORLDPOP_TASK_URL", "https://api.worldpop.org/v1/tasks/"),
		WorldPopDataset: envOrDefault("WORLDPOP_DATASET", "wpgpas"),
		WorldPopYear:    worldPopYear,
		WorldPopTimeout: worldPopTimeout,

		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaNotifyTopic: envOrDefault("KAFKA_NOTIFY_TOPIC", "significant-earthquakes"),

		BatchPageSize:  pageSize,
		BatchChunkSize: chunkSize,
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaNotifyTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_NOTIFY_TOPIC is empty")
	}

	return cfg, nil
}

// NotificationsEnabled reports whether significant-event publishing is on.
func (c *Config) NotificationsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
