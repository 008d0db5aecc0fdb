// Package config provides centralized configuration for the Phoenix client stack.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the master configuration struct for the CLI and the session layer.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Store   StoreConfig   `mapstructure:"store"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`

	// Dir is the directory the configuration was resolved from.
	Dir string `mapstructure:"-"`
}

// APIConfig holds backend endpoint settings
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst int           `mapstructure:"rate_burst"`
}

// SessionConfig holds session manager tuning
type SessionConfig struct {
	RenewalThreshold  time.Duration `mapstructure:"renewal_threshold"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	GuardInterval     time.Duration `mapstructure:"guard_interval"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
	RefreshMaxRetries int           `mapstructure:"refresh_max_retries"`
	RefreshBackoff    time.Duration `mapstructure:"refresh_backoff"`
}

// StoreConfig selects and configures the credential store
type StoreConfig struct {
	Backend   string `mapstructure:"backend"` // file, bolt, redis or memory
	Path      string `mapstructure:"path"`
	Profile   string `mapstructure:"profile"`
	RedisURL  string `mapstructure:"redis_url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// NATSConfig holds session event publishing configuration
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// MetricsConfig holds the Prometheus listener address used by long-running commands
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store backends
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Load reads configuration from $PHOENIX_CONFIG_DIR/config.yaml (default ~/.phoenix)
// and PHOENIX_* environment variables.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom is Load with an explicit configuration directory.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configFile(dir))
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file - don't fail if file doesn't exist
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Dir = dir

	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath(dir, cfg.Store.Backend)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required")
	}
	switch c.Store.Backend {
	case BackendFile, BackendBolt, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.Backend == BackendRedis && c.Store.RedisURL == "" {
		return errors.New("config: store.redis_url is required for the redis backend")
	}
	if c.Session.RenewalThreshold < 0 {
		return errors.New("config: session.renewal_threshold must not be negative")
	}
	if c.Session.RequestTimeout <= 0 {
		return errors.New("config: session.request_timeout must be positive")
	}
	if c.Session.MinPasswordLength < 1 {
		return errors.New("config: session.min_password_length must be at least 1")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("config: nats.url is required when nats is enabled")
	}
	return nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("api.rate_burst", 5)

	v.SetDefault("session.renewal_threshold", "5m")
	v.SetDefault("session.request_timeout", "10s")
	v.SetDefault("session.guard_interval", "30s")
	v.SetDefault("session.min_password_length", 8)
	v.SetDefault("session.refresh_max_retries", 2)
	v.SetDefault("session.refresh_backoff", "250ms")

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", "")
	v.SetDefault("store.profile", "default")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.key_prefix", "phoenix")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "phoenix")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
}
