package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Nith567/Kalshi-Sentinel/internal/auth"
	"github.com/Nith567/Kalshi-Sentinel/internal/metrics"
	"github.com/Nith567/Kalshi-Sentinel/internal/watch"
)

// Dialer opens one WebSocket session per watcher, subscribed to a single
// market's ticker channel. It implements watch.Dialer.
type Dialer struct {
	cfg    Config
	logger *slog.Logger
}

// NewDialer creates a stream dialer.
func NewDialer(cfg Config, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &Dialer{
		cfg:    cfg,
		logger: logger,
	}
}

// Dial connects, subscribes to the market_ticker channel for one ticker,
// and returns once the subscription is acknowledged. The returned stream
// delivers ticks until the session ends; there is no reconnection, a
// dropped connection simply ends the watcher.
func (d *Dialer) Dial(ctx context.Context, creds *auth.Credentials, ticker string) (watch.Stream, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	if creds != nil {
		signed, err := creds.SignWebSocket()
		if err != nil {
			return nil, fmt.Errorf("sign websocket request: %w", err)
		}
		for k, v := range signed {
			header.Set(k, v)
		}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, d.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	s := &session{
		conn:       conn,
		ticker:     ticker,
		cfg:        d.cfg,
		logger:     d.logger.With("ticker", ticker),
		ticks:      make(chan watch.Tick, d.cfg.TickBuffer),
		done:       make(chan struct{}),
		subscribed: make(chan struct{}),
		subErr:     make(chan error, 1),
	}

	// Server pings keep the connection alive; no staleness timeout is
	// enforced on our side.
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	go s.readLoop()

	cmd := Command{
		ID:  1,
		Cmd: "subscribe",
		Params: SubscribeParams{
			Channels:     []string{"market_ticker"},
			MarketTicker: ticker,
		},
	}
	data, _ := json.Marshal(cmd)
	if err := s.send(data); err != nil {
		s.Close()
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	select {
	case <-s.subscribed:
	case err := <-s.subErr:
		s.Close()
		return nil, fmt.Errorf("subscribe rejected: %w", err)
	case <-s.done:
		err := s.Err()
		s.Close()
		if err == nil {
			err = ErrSessionClosed
		}
		return nil, fmt.Errorf("session ended before subscribe ack: %w", err)
	case <-time.After(d.cfg.SubscribeTimeout):
		s.Close()
		return nil, ErrSubscribeTimeout
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}

	metrics.StreamsOpened.Inc()
	d.logger.Debug("price stream subscribed", "ticker", ticker)
	return s, nil
}

// session is one live subscription. It implements watch.Stream.
type session struct {
	conn   *websocket.Conn
	ticker string
	cfg    Config
	logger *slog.Logger

	ticks      chan watch.Tick
	done       chan struct{}
	subscribed chan struct{}
	subErr     chan error
	subOnce    sync.Once

	// Write serialization
	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
	err    error
}

// Ticks returns the channel of normalized price updates.
func (s *session) Ticks() <-chan watch.Tick {
	return s.ticks
}

// Done is closed when the session ends for any reason.
func (s *session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session ended; nil after a local Close.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the session. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return s.conn.Close()
}

// send writes raw bytes to the connection.
func (s *session) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads until the connection ends. Read errors after a local
// Close are expected and not recorded.
func (s *session) readLoop() {
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.err = err
			}
			s.mu.Unlock()
			return
		}

		s.handleMessage(data, receivedAt)
	}
}

// handleMessage decodes one raw frame. Malformed payloads are dropped,
// never propagated.
func (s *session) handleMessage(data []byte, receivedAt time.Time) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		metrics.ParseErrors.Inc()
		s.logger.Debug("dropping malformed message", "error", err)
		return
	}

	switch env.Type {
	case "subscribed":
		s.subOnce.Do(func() { close(s.subscribed) })

	case "error":
		var em errorMsg
		json.Unmarshal(env.Msg, &em)
		select {
		case s.subErr <- fmt.Errorf("%s: %s", em.Code, em.Message):
		default:
		}

	case "market_ticker":
		s.handleTicker(env.Data, receivedAt)

	default:
		// Other channel traffic on a shared connection; not ours.
	}
}

func (s *session) handleTicker(data []byte, receivedAt time.Time) {
	var td tickerData
	if err := json.Unmarshal(data, &td); err != nil {
		metrics.ParseErrors.Inc()
		s.logger.Debug("dropping malformed ticker update", "error", err)
		return
	}
	if td.MarketTicker != s.ticker {
		// A shared channel may deliver updates for other markets.
		return
	}

	tick := watch.Tick{
		Ticker:   td.MarketTicker,
		YesPrice: td.YesPrice,
		NoPrice:  td.NoPrice,
		At:       receivedAt,
	}

	select {
	case s.ticks <- tick:
	default:
		s.logger.Warn("tick buffer full, dropping update")
	}
}
