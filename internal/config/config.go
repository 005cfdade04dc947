// Package config loads process configuration from the environment, and
// hot-reloads the mutable subset (risk limits, feature flags) from a
// JSON file via a polling watcher.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the static, load-once-at-startup configuration. Broker
// credentials are required: their absence is fatal at process start.
type Config struct {
	HTTPAddr      string
	WSAddr        string
	AuthKey       string
	BusQueueDepth int
	ReplyTTL      time.Duration

	BrokerAPIKey string
	BrokerSecret string

	DatabaseDSN string
	LogLevel    string

	HeartbeatInterval    time.Duration
	ReconnectMaxAttempts int

	// RiskConfigPath, if set, is watched for hot-reloadable risk limits
	// and feature flags (see Watcher in watch.go). Empty disables hot
	// reload and falls back to RiskLimits' zero value (no limits).
	RiskConfigPath string
}

// Load reads Config from environment variables, applying the defaults
// a local/dev deployment needs and failing fast when broker credentials
// are absent.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:             getEnv("BROKERD_HTTP_ADDR", ":8080"),
		WSAddr:               getEnv("BROKERD_WS_ADDR", ":8081"),
		AuthKey:              os.Getenv("BROKERD_AUTH_KEY"),
		BrokerAPIKey:         os.Getenv("BROKERD_BROKER_API_KEY"),
		BrokerSecret:         os.Getenv("BROKERD_BROKER_SECRET"),
		DatabaseDSN:          os.Getenv("BROKERD_DATABASE_DSN"),
		LogLevel:             getEnv("BROKERD_LOG_LEVEL", "info"),
		RiskConfigPath:       os.Getenv("BROKERD_RISK_CONFIG_PATH"),
	}

	var err error
	if cfg.BusQueueDepth, err = getEnvInt("BROKERD_BUS_QUEUE_DEPTH", 1024); err != nil {
		return Config{}, err
	}
	if cfg.ReplyTTL, err = getEnvDuration("BROKERD_REPLY_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HeartbeatInterval, err = getEnvDuration("BROKERD_HEARTBEAT_INTERVAL", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ReconnectMaxAttempts, err = getEnvInt("BROKERD_RECONNECT_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}

	if cfg.BrokerAPIKey == "" || cfg.BrokerSecret == "" {
		return Config{}, fmt.Errorf("config: BROKERD_BROKER_API_KEY and BROKERD_BROKER_SECRET are required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}
