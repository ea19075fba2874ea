package config

import "time"

// SentinelConfig is the root configuration for a sentinel instance.
type SentinelConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Watch    WatchConfig    `yaml:"watch"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this sentinel.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds Kalshi API settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// DatabaseConfig holds the PostgreSQL connection for the watch journal and
// credential store.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// TelegramConfig holds the chat bot settings.
type TelegramConfig struct {
	BotToken     string   `yaml:"bot_token"`
	AllowedUsers []string `yaml:"allowed_users"`
}

// WatchConfig holds watcher engine settings.
type WatchConfig struct {
	SubscribeTimeout time.Duration `yaml:"subscribe_timeout"`
	TickBuffer       int           `yaml:"tick_buffer"`
	ExecTimeout      time.Duration `yaml:"exec_timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
