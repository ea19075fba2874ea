package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nith567/Kalshi-Sentinel/internal/auth"
	"github.com/Nith567/Kalshi-Sentinel/internal/watch"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testCredentials(t *testing.T) *auth.Credentials {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate test key: %v", err)
		}
		testKey = key
	})
	return &auth.Credentials{KeyID: "test-key", PrivateKey: testKey}
}

func testClient(serverURL string, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRetries(3, time.Millisecond),
	}
	return NewClient(serverURL, append(base, opts...)...)
}

func TestGetMarket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/INXD-26AUG29" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"market":{"ticker":"INXD-26AUG29","title":"S&P close above?","status":"active","yes_price":0.44,"no_price":0.56,"last_price":0.44,"volume":1200}}`))
	}))
	defer server.Close()

	c := testClient(server.URL)

	market, err := c.GetMarket(context.Background(), "INXD-26AUG29")
	if err != nil {
		t.Fatalf("GetMarket failed: %v", err)
	}
	if market.Ticker != "INXD-26AUG29" {
		t.Errorf("Ticker = %q", market.Ticker)
	}
	if want := decimal.RequireFromString("0.44"); !market.LastPrice.Equal(want) {
		t.Errorf("LastPrice = %s, want %s", market.LastPrice, want)
	}
	if market.Volume != 1200 {
		t.Errorf("Volume = %d, want 1200", market.Volume)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()

		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"market":{"ticker":"T1"}}`))
	}))
	defer server.Close()

	c := testClient(server.URL)

	if _, err := c.GetMarket(context.Background(), "T1"); err != nil {
		t.Fatalf("GetMarket failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(server.URL)

	_, err := c.GetMarket(context.Background(), "MISSING")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("error = %v, want APIError 404", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestPositionForSignsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range []string{"KALSHI-ACCESS-KEY", "KALSHI-ACCESS-TIMESTAMP", "KALSHI-ACCESS-SIGNATURE"} {
			if r.Header.Get(h) == "" {
				t.Errorf("missing header %s", h)
			}
		}
		if got := r.URL.Query().Get("ticker"); got != "T1" {
			t.Errorf("ticker query = %q", got)
		}
		w.Write([]byte(`{"market_positions":[{"ticker":"T1","position":5}]}`))
	}))
	defer server.Close()

	c := testClient(server.URL)

	pos, err := c.PositionFor(context.Background(), testCredentials(t), "T1")
	if err != nil {
		t.Fatalf("PositionFor failed: %v", err)
	}
	if pos.Side != watch.SideYes || pos.Quantity != 5 {
		t.Errorf("position = %+v, want yes/5", pos)
	}
}

func TestPositionForSides(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantSide watch.Side
		wantQty  int64
		wantErr  error
	}{
		{"positive is yes", `{"market_positions":[{"ticker":"T1","position":7}]}`, watch.SideYes, 7, nil},
		{"negative is no", `{"market_positions":[{"ticker":"T1","position":-3}]}`, watch.SideNo, 3, nil},
		{"zero is no position", `{"market_positions":[{"ticker":"T1","position":0}]}`, "", 0, watch.ErrNoPosition},
		{"absent is no position", `{"market_positions":[]}`, "", 0, watch.ErrNoPosition},
		{"other market ignored", `{"market_positions":[{"ticker":"OTHER","position":9}]}`, "", 0, watch.ErrNoPosition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := testClient(server.URL)
			pos, err := c.PositionFor(context.Background(), testCredentials(t), "T1")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("PositionFor failed: %v", err)
			}
			if pos.Side != tt.wantSide || pos.Quantity != tt.wantQty {
				t.Errorf("position = %+v, want %s/%d", pos, tt.wantSide, tt.wantQty)
			}
		})
	}
}

func TestSellMarket(t *testing.T) {
	var gotReq OrderRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("%s %s, want POST /orders", r.Method, r.URL.Path)
		}
		if r.Header.Get("KALSHI-ACCESS-SIGNATURE") == "" {
			t.Error("order request not signed")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode order body: %v", err)
		}
		w.Write([]byte(`{"order":{"order_id":"O123","status":"executed"}}`))
	}))
	defer server.Close()

	c := testClient(server.URL)

	order, err := c.SellMarket(context.Background(), testCredentials(t), "T1", watch.SideYes, 5)
	if err != nil {
		t.Fatalf("SellMarket failed: %v", err)
	}
	if order.ID != "O123" || order.Status != "executed" || order.Quantity != 5 {
		t.Errorf("order = %+v", order)
	}

	if gotReq.Action != "sell" || gotReq.Type != "market" {
		t.Errorf("order request = %+v, want market sell", gotReq)
	}
	if gotReq.Side != "yes" || gotReq.Count != 5 || gotReq.Ticker != "T1" {
		t.Errorf("order request = %+v", gotReq)
	}
	if gotReq.ClientOrderID == "" {
		t.Error("client_order_id is empty")
	}
}

func TestSellMarketNeverRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := testClient(server.URL)

	_, err := c.SellMarket(context.Background(), testCredentials(t), "T1", watch.SideYes, 5)
	if err == nil {
		t.Fatal("expected error for 500")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want exactly 1", attempts)
	}
}
