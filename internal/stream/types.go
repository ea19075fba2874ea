package stream

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Errors
var (
	ErrSubscribeTimeout = errors.New("subscribe timeout")
	ErrSessionClosed    = errors.New("session closed")
)

// Command is a WebSocket command to send to the server.
type Command struct {
	ID     int64       `json:"id"`
	Cmd    string      `json:"cmd"`
	Params interface{} `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels     []string `json:"channels"`
	MarketTicker string   `json:"market_ticker,omitempty"`
}

// envelope is the minimal shape shared by every server message; it is
// used to dispatch on type before decoding the payload.
type envelope struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// errorMsg is the payload of an "error" response.
type errorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// tickerData is the payload of a "market_ticker" update. Prices are
// fractional dollars; an absent side decodes as zero and is ignored
// downstream.
type tickerData struct {
	MarketTicker string          `json:"market_ticker"`
	YesPrice     decimal.Decimal `json:"yes_price"`
	NoPrice      decimal.Decimal `json:"no_price"`
}

// Config configures stream sessions.
type Config struct {
	URL              string        // WebSocket URL (e.g. wss://api.elections.kalshi.com/trade-api/ws/v2)
	HandshakeTimeout time.Duration // Dial handshake deadline
	SubscribeTimeout time.Duration // Max wait for the subscribe acknowledgment
	WriteTimeout     time.Duration // Write deadline for sends
	TickBuffer       int           // Tick channel buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		SubscribeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		TickBuffer:       256,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.SubscribeTimeout == 0 {
		c.SubscribeTimeout = def.SubscribeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.TickBuffer == 0 {
		c.TickBuffer = def.TickBuffer
	}
}
