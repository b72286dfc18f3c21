// Package config loads the gedistored service configuration from an
// optional JSON file, with environment variable overrides applied on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/xcube-dev/xcube-gedidb/errors"
)

// Config is the complete service configuration.
type Config struct {
	NATS    NATSConfig    `json:"nats"`
	Metrics MetricsConfig `json:"metrics"`
	Store   StoreConfig   `json:"store"`
	Gateway GatewayConfig `json:"gateway"`
	Logging LoggingConfig `json:"logging"`
}

// NATSConfig holds the NATS connection settings.
type NATSConfig struct {
	URL            string        `json:"url" env:"NATS_URL"`
	ClientName     string        `json:"client_name" env:"NATS_CLIENT_NAME"`
	ConnectTimeout time.Duration `json:"connect_timeout" env:"NATS_CONNECT_TIMEOUT"`
	RequestTimeout time.Duration `json:"request_timeout" env:"NATS_REQUEST_TIMEOUT"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"METRICS_ENABLED"`
	Address string `json:"address" env:"METRICS_ADDRESS"`
	Path    string `json:"path" env:"METRICS_PATH"`
}

// StoreConfig holds the store parameters passed to the factory. All
// fields default to the production endpoints when empty.
type StoreConfig struct {
	StorageType string `json:"storage_type,omitempty" env:"STORE_STORAGE_TYPE"`
	Bucket      string `json:"bucket,omitempty" env:"STORE_BUCKET"`
	URL         string `json:"url,omitempty" env:"STORE_URL"`
	CMRURL      string `json:"cmr_url,omitempty" env:"STORE_CMR_URL"`
	RetryPolicy string `json:"retry_policy,omitempty" env:"STORE_RETRY_POLICY"`
}

// GatewayConfig holds the NATS gateway settings.
type GatewayConfig struct {
	QueueGroup  string        `json:"queue_group" env:"GATEWAY_QUEUE_GROUP"`
	CacheBucket string        `json:"cache_bucket" env:"GATEWAY_CACHE_BUCKET"`
	CacheTTL    time.Duration `json:"cache_ttl" env:"GATEWAY_CACHE_TTL"`
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL"`
	Format string `json:"format" env:"LOG_FORMAT"` // "json" or "text"
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			ClientName:     "gedistored",
			ConnectTimeout: 5 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
			Path:    "/metrics",
		},
		Gateway: GatewayConfig{
			QueueGroup:  "gateway",
			CacheBucket: "gedi-descriptors",
			CacheTTL:    time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then the JSON file (if path is
// non-empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "Config", "Load", "file read")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "file parsing")
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: NATS URL", errors.ErrMissingConfig),
			"Config", "Validate", "NATS check")
	}
	if c.NATS.ConnectTimeout <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: connect timeout must be positive", errors.ErrInvalidConfig),
			"Config", "Validate", "NATS check")
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: metrics address", errors.ErrMissingConfig),
			"Config", "Validate", "metrics check")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: log format %q", errors.ErrInvalidConfig, c.Logging.Format),
			"Config", "Validate", "logging check")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: log level %q", errors.ErrInvalidConfig, c.Logging.Level),
			"Config", "Validate", "logging check")
	}
	return nil
}

// StoreParams renders the store section as the raw JSON parameters the
// registry factory expects.
func (c *Config) StoreParams() (json.RawMessage, error) {
	params, err := json.Marshal(c.Store)
	if err != nil {
		return nil, errors.Wrap(err, "Config", "StoreParams", "params encoding")
	}
	return params, nil
}
