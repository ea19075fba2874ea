package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL          = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultWSURL            = "wss://api.elections.kalshi.com/trade-api/ws/v2"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultSubscribeTimeout = 10 * time.Second
	DefaultTickBuffer       = 256
	DefaultExecTimeout      = 30 * time.Second
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
)

func (c *SentinelConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Watch defaults
	if c.Watch.SubscribeTimeout == 0 {
		c.Watch.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if c.Watch.TickBuffer == 0 {
		c.Watch.TickBuffer = DefaultTickBuffer
	}
	if c.Watch.ExecTimeout == 0 {
		c.Watch.ExecTimeout = DefaultExecTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
