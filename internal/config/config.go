package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Senders  SendersConfig  `yaml:"senders"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Worker   WorkerConfig   `yaml:"worker"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	APIKey         string        `yaml:"api_key"`          // Bearer key required on /api routes (empty = no auth)
	AllowedOrigins []string      `yaml:"allowed_origins"`  // CORS origins (default: *)
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig contains Postgres connection settings
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// SendersConfig contains the three downstream channel sender endpoints
type SendersConfig struct {
	Email    SenderConfig `yaml:"email"`
	SMS      SenderConfig `yaml:"sms"`
	WhatsApp SenderConfig `yaml:"whatsapp"`
}

// SenderConfig contains one channel sender endpoint
type SenderConfig struct {
	URL           string  `yaml:"url"`
	APIKey        string  `yaml:"api_key"`
	RatePerSecond float64 `yaml:"rate_per_second"` // outbound call cap, 0 = unlimited
}

// DispatchConfig contains batching settings
type DispatchConfig struct {
	BatchSize   int `yaml:"batch_size"`
	Concurrency int `yaml:"concurrency"`
}

// WorkerConfig contains continuation worker settings
type WorkerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ClaimLease   time.Duration `yaml:"claim_lease"` // in_progress tasks older than this are reclaimable
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	Path       string `yaml:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}

	if c.Dispatch.BatchSize == 0 {
		c.Dispatch.BatchSize = 50
	}
	if c.Dispatch.Concurrency == 0 {
		c.Dispatch.Concurrency = 5
	}

	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 5 * time.Second
	}
	if c.Worker.ClaimLease == 0 {
		c.Worker.ClaimLease = 5 * time.Minute
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Senders.Email.URL == "" {
		return fmt.Errorf("senders.email.url is required")
	}
	if c.Senders.SMS.URL == "" {
		return fmt.Errorf("senders.sms.url is required")
	}
	if c.Senders.WhatsApp.URL == "" {
		return fmt.Errorf("senders.whatsapp.url is required")
	}

	if c.Dispatch.BatchSize < 1 {
		return fmt.Errorf("dispatch.batch_size must be positive")
	}
	if c.Dispatch.Concurrency < 1 {
		return fmt.Errorf("dispatch.concurrency must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text")
	}

	return nil
}
