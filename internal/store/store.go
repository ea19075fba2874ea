package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Nith567/Kalshi-Sentinel/internal/auth"
	"github.com/Nith567/Kalshi-Sentinel/internal/watch"
)

// ErrNoCredentials is returned when a user has no stored API credentials.
var ErrNoCredentials = errors.New("no stored credentials")

const schema = `
CREATE TABLE IF NOT EXISTS user_credentials (
	user_id         TEXT PRIMARY KEY,
	api_key_id      TEXT NOT NULL,
	private_key_pem BYTEA NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_chats (
	user_id    TEXT PRIMARY KEY,
	chat_id    BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS watch_journal (
	id            BIGSERIAL PRIMARY KEY,
	user_id       TEXT NOT NULL,
	ticker        TEXT NOT NULL,
	side          TEXT NOT NULL,
	event         TEXT NOT NULL,
	mode          TEXT,
	base_price    NUMERIC,
	threshold_pct NUMERIC,
	price         NUMERIC,
	outcome       TEXT,
	status        TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS watch_journal_user_idx ON watch_journal (user_id, created_at);
`

// Store persists user credentials, chat routing, and the watch journal.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store on an existing pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: logger,
	}
}

// EnsureSchema creates the sentinel tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Credentials returns the user's decrypted API credentials, or
// ErrNoCredentials if none are stored. Each call parses a fresh copy so
// every watcher can discard its own.
func (s *Store) Credentials(ctx context.Context, userID string) (*auth.Credentials, error) {
	var keyID string
	var pemBytes []byte

	err := s.pool.QueryRow(ctx,
		`SELECT api_key_id, private_key_pem FROM user_credentials WHERE user_id = $1`,
		userID,
	).Scan(&keyID, &pemBytes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}

	creds, err := auth.NewCredentials(keyID, pemBytes)
	if err != nil {
		return nil, fmt.Errorf("stored credentials for %s: %w", userID, err)
	}
	return creds, nil
}

// SetCredentials stores or replaces a user's API credentials.
func (s *Store) SetCredentials(ctx context.Context, userID, keyID string, privateKeyPEM []byte) error {
	// Validate before persisting so a bad key is rejected up front.
	if _, err := auth.NewCredentials(keyID, privateKeyPEM); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_credentials (user_id, api_key_id, private_key_pem, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET api_key_id = EXCLUDED.api_key_id,
		    private_key_pem = EXCLUDED.private_key_pem,
		    updated_at = now()`,
		userID, keyID, privateKeyPEM,
	)
	if err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}

// UserChatID returns the chat id for direct messages to a user.
func (s *Store) UserChatID(ctx context.Context, userID string) (int64, error) {
	var chatID int64
	err := s.pool.QueryRow(ctx,
		`SELECT chat_id FROM user_chats WHERE user_id = $1`,
		userID,
	).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("no chat id for user %s", userID)
	}
	if err != nil {
		return 0, fmt.Errorf("query chat id: %w", err)
	}
	return chatID, nil
}

// SetUserChatID records the chat id learned from an incoming message.
func (s *Store) SetUserChatID(ctx context.Context, userID string, chatID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_chats (user_id, chat_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET chat_id = EXCLUDED.chat_id, updated_at = now()`,
		userID, chatID,
	)
	if err != nil {
		return fmt.Errorf("store chat id: %w", err)
	}
	return nil
}

// WatchStarted records a watcher registration. Implements watch.Journal.
func (s *Store) WatchStarted(ctx context.Context, key watch.Key, mode watch.Mode, basePrice, thresholdPercent decimal.Decimal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watch_journal (user_id, ticker, side, event, mode, base_price, threshold_pct)
		VALUES ($1, $2, $3, 'started', $4, $5, $6)`,
		key.UserID, key.Ticker, string(key.Side), string(mode), basePrice, thresholdPercent,
	)
	return err
}

// WatchTriggered records a fired trigger and its outcome. Implements
// watch.Journal.
func (s *Store) WatchTriggered(ctx context.Context, key watch.Key, mode watch.Mode, price decimal.Decimal, outcome string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watch_journal (user_id, ticker, side, event, mode, price, outcome)
		VALUES ($1, $2, $3, 'triggered', $4, $5, $6)`,
		key.UserID, key.Ticker, string(key.Side), string(mode), price, outcome,
	)
	return err
}

// WatchClosed records a watcher that ended without triggering. Implements
// watch.Journal.
func (s *Store) WatchClosed(ctx context.Context, key watch.Key, status watch.Status) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watch_journal (user_id, ticker, side, event, status)
		VALUES ($1, $2, $3, 'closed', $4)`,
		key.UserID, key.Ticker, string(key.Side), string(status),
	)
	return err
}
