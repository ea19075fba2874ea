package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-sentinel
api:
  rest_url: https://demo-api.kalshi.co/trade-api/v2
database:
  postgres:
    host: localhost
    port: 5432
    name: test_db
    user: testuser
    password: testpass
telegram:
  bot_token: tok-123
  allowed_users:
    - alice
    - bob
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-sentinel" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-sentinel")
	}
	if cfg.API.RestURL != "https://demo-api.kalshi.co/trade-api/v2" {
		t.Errorf("API.RestURL = %q", cfg.API.RestURL)
	}
	if cfg.Database.Postgres.Host != "localhost" {
		t.Errorf("Database.Postgres.Host = %q, want localhost", cfg.Database.Postgres.Host)
	}
	if len(cfg.Telegram.AllowedUsers) != 2 {
		t.Errorf("Telegram.AllowedUsers = %v, want two entries", cfg.Telegram.AllowedUsers)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "secret123")

	yaml := `
instance:
  id: test-sentinel
database:
  postgres:
    host: localhost
    name: test_db
    user: testuser
    password: testpass
telegram:
  bot_token: ${TEST_BOT_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.BotToken != "secret123" {
		t.Errorf("Telegram.BotToken = %q, want %q", cfg.Telegram.BotToken, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-sentinel
database:
  postgres:
    host: localhost
    name: test_db
    user: testuser
    password: testpass
telegram:
  bot_token: tok-123
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.WSURL != DefaultWSURL {
		t.Errorf("API.WSURL = %q, want default %q", cfg.API.WSURL, DefaultWSURL)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Watch.TickBuffer != DefaultTickBuffer {
		t.Errorf("Watch.TickBuffer = %d, want default %d", cfg.Watch.TickBuffer, DefaultTickBuffer)
	}
	if cfg.Watch.ExecTimeout != DefaultExecTimeout {
		t.Errorf("Watch.ExecTimeout = %v, want default %v", cfg.Watch.ExecTimeout, DefaultExecTimeout)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
}

func TestValidate(t *testing.T) {
	valid := SentinelConfig{
		Instance: InstanceConfig{ID: "test"},
		Database: DatabaseConfig{
			Postgres: DBConfig{Host: "localhost", Port: 5432, Name: "db", User: "user", Password: "pass"},
		},
		Telegram: TelegramConfig{BotToken: "tok"},
		Watch:    WatchConfig{TickBuffer: 256},
		Metrics:  MetricsConfig{Port: 9090, Path: "/metrics"},
	}

	tests := []struct {
		name    string
		mutate  func(*SentinelConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *SentinelConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *SentinelConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing postgres host",
			mutate:  func(c *SentinelConfig) { c.Database.Postgres.Host = "" },
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "missing bot token",
			mutate:  func(c *SentinelConfig) { c.Telegram.BotToken = "" },
			wantErr: "telegram.bot_token is required",
		},
		{
			name:    "zero tick buffer",
			mutate:  func(c *SentinelConfig) { c.Watch.TickBuffer = 0 },
			wantErr: "watch.tick_buffer must be >= 1",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *SentinelConfig) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be in 1-65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
