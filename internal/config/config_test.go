package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	content := `
server:
  listen_addr: ":9080"
  api_key: "test-key"
  allowed_origins:
    - "https://app.propease.example"

database:
  dsn: "postgres://announce:pw@localhost/propease?sslmode=disable"
  max_open_conns: 20

senders:
  email:
    url: "https://functions.example/send-email"
    api_key: "email-key"
    rate_per_second: 10
  sms:
    url: "https://functions.example/send-sms"
  whatsapp:
    url: "https://functions.example/send-whatsapp"

dispatch:
  batch_size: 25
  concurrency: 3

worker:
  enabled: true
  poll_interval: 2s
  claim_lease: 10m

logging:
  level: "debug"
  format: "json"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ListenAddr != ":9080" {
		t.Errorf("ListenAddr = %v, want :9080", cfg.Server.ListenAddr)
	}
	if cfg.Server.APIKey != "test-key" {
		t.Errorf("APIKey = %v, want test-key", cfg.Server.APIKey)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.propease.example" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Database.MaxOpenConns != 20 {
		t.Errorf("MaxOpenConns = %v, want 20", cfg.Database.MaxOpenConns)
	}
	if cfg.Senders.Email.RatePerSecond != 10 {
		t.Errorf("Email.RatePerSecond = %v, want 10", cfg.Senders.Email.RatePerSecond)
	}
	if cfg.Dispatch.BatchSize != 25 {
		t.Errorf("BatchSize = %v, want 25", cfg.Dispatch.BatchSize)
	}
	if cfg.Dispatch.Concurrency != 3 {
		t.Errorf("Concurrency = %v, want 3", cfg.Dispatch.Concurrency)
	}
	if !cfg.Worker.Enabled {
		t.Error("Worker.Enabled = false, want true")
	}
	if cfg.Worker.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.ClaimLease != 10*time.Minute {
		t.Errorf("ClaimLease = %v, want 10m", cfg.Worker.ClaimLease)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Format = %v, want json", cfg.Logging.Format)
	}
}

func TestLoadDefaults(t *testing.T) {
	content := `
database:
  dsn: "postgres://localhost/propease"

senders:
  email:
    url: "https://functions.example/send-email"
  sms:
    url: "https://functions.example/send-sms"
  whatsapp:
    url: "https://functions.example/send-whatsapp"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %v, want :8080", cfg.Server.ListenAddr)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", cfg.Server.AllowedOrigins)
	}
	if cfg.Dispatch.BatchSize != 50 {
		t.Errorf("BatchSize = %v, want 50", cfg.Dispatch.BatchSize)
	}
	if cfg.Dispatch.Concurrency != 5 {
		t.Errorf("Concurrency = %v, want 5", cfg.Dispatch.Concurrency)
	}
	if cfg.Worker.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.ClaimLease != 5*time.Minute {
		t.Errorf("ClaimLease = %v, want 5m", cfg.Worker.ClaimLease)
	}
	if cfg.Metrics.ListenAddr != ":9090" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing dsn",
			`
senders:
  email:
    url: "u"
  sms:
    url: "u"
  whatsapp:
    url: "u"
`,
			"database.dsn",
		},
		{
			"missing email url",
			`
database:
  dsn: "d"
senders:
  sms:
    url: "u"
  whatsapp:
    url: "u"
`,
			"senders.email.url",
		},
		{
			"bad log level",
			`
database:
  dsn: "d"
senders:
  email:
    url: "u"
  sms:
    url: "u"
  whatsapp:
    url: "u"
logging:
  level: "verbose"
`,
			"logging.level",
		},
		{
			"negative batch size",
			`
database:
  dsn: "d"
senders:
  email:
    url: "u"
  sms:
    url: "u"
  whatsapp:
    url: "u"
dispatch:
  batch_size: -1
`,
			"dispatch.batch_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() error = nil, want read failure")
	}
}
