// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/quota"
)

// Config is the root configuration structure.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Quota     QuotaConfig     `yaml:"quota"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Retry     RetryConfig     `yaml:"retry"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProviderConfig configures the upstream video API.
type ProviderConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"` // env var holding the key; never written to disk
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// QuotaConfig configures the daily budget.
type QuotaConfig struct {
	DailyLimit int64            `yaml:"daily_limit"`
	ResetTZ    string           `yaml:"reset_tz"` // provider reset timezone
	Costs      map[string]int64 `yaml:"costs"`    // overrides for the default cost table
}

// RateLimitConfig configures request admission.
type RateLimitConfig struct {
	MaxPerSecond  float64 `yaml:"max_per_second"`
	Burst         int     `yaml:"burst"`
	MaxPerMinute  int     `yaml:"max_per_minute"`
	MaxConcurrent int64   `yaml:"max_concurrent"`
	QueueLimit    int     `yaml:"queue_limit"`
}

// BreakerConfig configures failure isolation.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	Window           time.Duration `yaml:"window"`
}

// RetryConfig configures backoff.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	JitterFactor float64       `yaml:"jitter_factor"`
	MaxElapsed   time.Duration `yaml:"max_elapsed"`
}

// DatabaseConfig configures the usage ledger store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "memory" or "sqlite"
	DSN    string `yaml:"dsn"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// Default returns the configuration defaults applied before file and env
// overlays.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			APIKeyEnv:   "YTGATE_API_KEY",
			CallTimeout: 15 * time.Second,
		},
		Quota: QuotaConfig{
			DailyLimit: 10000,
			ResetTZ:    "America/Los_Angeles",
		},
		RateLimit: RateLimitConfig{
			MaxPerSecond:  10,
			Burst:         10,
			MaxPerMinute:  300,
			MaxConcurrent: 4,
			QueueLimit:    64,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			Window:           time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			BaseDelay:    2 * time.Second,
			Multiplier:   2,
			MaxDelay:     30 * time.Second,
			JitterFactor: 0.25,
		},
		Database: DatabaseConfig{
			Driver: "memory",
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file, then applies environment
// overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays YTGATE_* environment variables for Docker-style
// deployments.
func (c *Config) applyEnv() {
	if v := os.Getenv("YTGATE_PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("YTGATE_QUOTA_DAILY_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Quota.DailyLimit = n
		}
	}
	if v := os.Getenv("YTGATE_DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("YTGATE_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("YTGATE_SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("YTGATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("YTGATE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// APIKey resolves the provider key from the configured environment variable.
// The key itself never appears in config files or logs.
func (c *Config) APIKey() string {
	return os.Getenv(c.Provider.APIKeyEnv)
}

// CostTable merges configured overrides over the default cost table.
func (c *Config) CostTable() quota.CostTable {
	table := quota.DefaultCosts()
	for k, v := range c.Quota.Costs {
		table[provider.OperationKind(k)] = v
	}
	return table
}

// ResetLocation resolves the quota reset timezone.
func (c *Config) ResetLocation() (*time.Location, error) {
	if c.Quota.ResetTZ == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Quota.ResetTZ)
}

// Validate checks the configuration for consistency, collecting every
// problem rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Quota.DailyLimit <= 0 {
		errs = append(errs, fmt.Errorf("quota.daily_limit must be positive, got %d", c.Quota.DailyLimit))
	}
	if err := c.CostTable().Validate(); err != nil {
		errs = append(errs, err)
	}
	for k := range c.Quota.Costs {
		if !provider.OperationKind(k).Valid() {
			errs = append(errs, fmt.Errorf("quota.costs: unknown operation kind %q", k))
		}
	}
	if _, err := c.ResetLocation(); err != nil {
		errs = append(errs, fmt.Errorf("quota.reset_tz: %w", err))
	}
	if c.RateLimit.MaxPerSecond <= 0 {
		errs = append(errs, errors.New("rate_limit.max_per_second must be positive"))
	}
	if c.RateLimit.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("rate_limit.max_concurrent must be positive"))
	}
	if c.Breaker.FailureThreshold <= 0 {
		errs = append(errs, errors.New("breaker.failure_threshold must be positive"))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry.max_attempts must be positive"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor >= 1 {
		errs = append(errs, fmt.Errorf("retry.jitter_factor must be in [0, 1), got %v", c.Retry.JitterFactor))
	}
	switch c.Database.Driver {
	case "memory":
	case "sqlite":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be memory or sqlite, got %q", c.Database.Driver))
	}

	return errors.Join(errs...)
}
