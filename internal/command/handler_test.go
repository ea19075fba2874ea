package command

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Nith567/Kalshi-Sentinel/internal/api"
	"github.com/Nith567/Kalshi-Sentinel/internal/auth"
	"github.com/Nith567/Kalshi-Sentinel/internal/store"
	"github.com/Nith567/Kalshi-Sentinel/internal/watch"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		text     string
		wantName string
		wantArgs []string
		wantErr  bool
	}{
		{"/watches", "watches", nil, false},
		{"/watch INXD yes 10 0.40", "watch", []string{"INXD", "yes", "10", "0.40"}, false},
		{"/Watch INXD yes 10 0.40", "watch", []string{"INXD", "yes", "10", "0.40"}, false},
		{"/watches@sentinel_bot", "watches", nil, false},
		{"  /help  ", "help", nil, false},
		{"hello there", "", nil, true},
		{"/", "", nil, true},
		{"", "", nil, true},
	}

	for _, tt := range tests {
		name, args, err := splitCommand(tt.text)
		if tt.wantErr {
			if err == nil {
				t.Errorf("splitCommand(%q) = %q, want error", tt.text, name)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitCommand(%q) error: %v", tt.text, err)
			continue
		}
		if name != tt.wantName {
			t.Errorf("splitCommand(%q) name = %q, want %q", tt.text, name, tt.wantName)
		}
		if len(args) != len(tt.wantArgs) {
			t.Errorf("splitCommand(%q) args = %v, want %v", tt.text, args, tt.wantArgs)
		}
	}
}

func TestParseWatchArgs(t *testing.T) {
	ticker, side, pct, base, err := parseWatchArgs([]string{"inxd-26aug29", "yes", "10", "0.40"})
	if err != nil {
		t.Fatalf("parseWatchArgs: %v", err)
	}
	if ticker != "INXD-26AUG29" {
		t.Errorf("ticker = %q, want upper-cased", ticker)
	}
	if side != watch.SideYes {
		t.Errorf("side = %q", side)
	}
	if !pct.Equal(decimal.RequireFromString("10")) {
		t.Errorf("pct = %s", pct)
	}
	if !base.Equal(decimal.RequireFromString("0.40")) {
		t.Errorf("base = %s", base)
	}

	bad := [][]string{
		{"T", "yes", "10"},
		{"T", "maybe", "10", "0.40"},
		{"T", "yes", "ten", "0.40"},
		{"T", "yes", "10", "cheap"},
	}
	for _, args := range bad {
		if _, _, _, _, err := parseWatchArgs(args); err == nil {
			t.Errorf("parseWatchArgs(%v) accepted bad input", args)
		}
	}
}

type stubDialer struct{}

func (stubDialer) Dial(ctx context.Context, creds *auth.Credentials, ticker string) (watch.Stream, error) {
	return &stubStream{
		ticks: make(chan watch.Tick),
		done:  make(chan struct{}),
	}, nil
}

type stubStream struct {
	ticks chan watch.Tick
	done  chan struct{}
	once  sync.Once
}

func (s *stubStream) Ticks() <-chan watch.Tick { return s.ticks }
func (s *stubStream) Done() <-chan struct{}    { return s.done }
func (s *stubStream) Err() error               { return nil }

func (s *stubStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type stubTrader struct{}

func (stubTrader) PositionFor(ctx context.Context, creds *auth.Credentials, ticker string) (watch.Position, error) {
	return watch.Position{}, watch.ErrNoPosition
}

func (stubTrader) SellMarket(ctx context.Context, creds *auth.Credentials, ticker string, side watch.Side, quantity int64) (watch.Order, error) {
	return watch.Order{}, nil
}

type stubNotifier struct{}

func (stubNotifier) Notify(ctx context.Context, userID, text string) {}

type stubUserStore struct {
	creds   *auth.Credentials
	chatIDs map[string]int64
}

func (s *stubUserStore) Credentials(ctx context.Context, userID string) (*auth.Credentials, error) {
	if s.creds == nil {
		return nil, store.ErrNoCredentials
	}
	return s.creds, nil
}

func (s *stubUserStore) SetCredentials(ctx context.Context, userID, keyID string, pem []byte) error {
	return nil
}

func (s *stubUserStore) SetUserChatID(ctx context.Context, userID string, chatID int64) error {
	if s.chatIDs == nil {
		s.chatIDs = make(map[string]int64)
	}
	s.chatIDs[userID] = chatID
	return nil
}

type stubMarkets struct {
	err error
}

func (s stubMarkets) GetMarket(ctx context.Context, ticker string) (*api.Market, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &api.Market{
		Ticker:    ticker,
		Title:     "Test market",
		Status:    "active",
		LastPrice: decimal.RequireFromString("0.42"),
	}, nil
}

func testHandler(t *testing.T, users *stubUserStore, markets stubMarkets) (*Handler, *watch.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := watch.NewRegistry(stubDialer{}, stubTrader{}, stubNotifier{}, logger)
	t.Cleanup(registry.Close)
	h := New(registry, markets, users, []string{"alice"}, logger)
	return h, registry
}

func testCreds(t *testing.T) *auth.Credentials {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &auth.Credentials{KeyID: "k", PrivateKey: key}
}

func TestRespondWatchLifecycle(t *testing.T) {
	users := &stubUserStore{creds: testCreds(t)}
	h, registry := testHandler(t, users, stubMarkets{})
	ctx := context.Background()

	reply := h.respond(ctx, "alice", "/watch INXD-26AUG29 yes 10 0.40")
	if !strings.Contains(reply, "INXD-26AUG29") || !strings.Contains(reply, "Test market") {
		t.Errorf("watch reply = %q", reply)
	}
	if registry.Count() != 1 {
		t.Fatalf("Count = %d after /watch, want 1", registry.Count())
	}

	reply = h.respond(ctx, "alice", "/watches")
	if !strings.Contains(reply, "INXD-26AUG29 yes") {
		t.Errorf("watches reply = %q", reply)
	}

	reply = h.respond(ctx, "alice", "/unwatch INXD-26AUG29 yes")
	if !strings.Contains(reply, "Stopped watching") {
		t.Errorf("unwatch reply = %q", reply)
	}
	if registry.Count() != 0 {
		t.Errorf("Count = %d after /unwatch, want 0", registry.Count())
	}

	reply = h.respond(ctx, "alice", "/unwatch INXD-26AUG29 yes")
	if !strings.Contains(reply, "No active watch") {
		t.Errorf("repeat unwatch reply = %q", reply)
	}
}

func TestRespondRequiresCredentials(t *testing.T) {
	users := &stubUserStore{} // no keys on file
	h, _ := testHandler(t, users, stubMarkets{})

	reply := h.respond(context.Background(), "alice", "/stoploss INXD yes 10 0.50")
	if !strings.Contains(reply, "/setkeys") {
		t.Errorf("reply = %q, want pointer to /setkeys", reply)
	}
}

func TestRespondMarketLookupFailure(t *testing.T) {
	users := &stubUserStore{creds: testCreds(t)}
	h, registry := testHandler(t, users, stubMarkets{err: errors.New("api: 404")})

	reply := h.respond(context.Background(), "alice", "/watch NOPE yes 10 0.40")
	if !strings.Contains(reply, "could not look up market") {
		t.Errorf("reply = %q", reply)
	}
	if registry.Count() != 0 {
		t.Errorf("watch started despite failed market lookup")
	}
}

func TestRespondUnknownCommand(t *testing.T) {
	h, _ := testHandler(t, &stubUserStore{}, stubMarkets{})

	reply := h.respond(context.Background(), "alice", "/frobnicate")
	if !strings.Contains(reply, "Unknown command") {
		t.Errorf("reply = %q", reply)
	}

	// Plain chat text gets no reply at all.
	if reply := h.respond(context.Background(), "alice", "hello"); reply != "" {
		t.Errorf("non-command reply = %q, want empty", reply)
	}
}

func TestRespondSetKeysRejectsBadBase64(t *testing.T) {
	h, _ := testHandler(t, &stubUserStore{}, stubMarkets{})

	reply := h.respond(context.Background(), "alice", "/setkeys k1 not-base64!!!")
	if !strings.Contains(reply, "base64") {
		t.Errorf("reply = %q", reply)
	}
}
