package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nith567/Kalshi-Sentinel/internal/auth"
)

// Errors
var (
	ErrRegistryClosed = errors.New("registry closed")
	ErrNoPosition     = errors.New("no open position")
)

// Side identifies which side of a binary market a watcher observes.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ParseSide converts user input into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideYes, SideNo:
		return Side(s), nil
	}
	return "", fmt.Errorf("invalid side %q (want yes or no)", s)
}

// Mode selects the trigger policy and the action taken on trigger.
type Mode string

const (
	// ModeAlert fires on a rising move and only notifies.
	ModeAlert Mode = "alert"

	// ModeStopLoss fires on a falling move, sells the full open position,
	// then notifies.
	ModeStopLoss Mode = "stop_loss"
)

// Status is the lifecycle state of a watcher.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusActive     Status = "active"
	StatusTriggered  Status = "triggered"
	StatusClosed     Status = "closed"
	StatusError      Status = "error"
)

// Key uniquely identifies a watcher. At most one watcher per key is ever
// active; starting a second one supersedes the first.
type Key struct {
	UserID string
	Ticker string
	Side   Side
}

func (k Key) String() string {
	return k.UserID + "/" + k.Ticker + "/" + string(k.Side)
}

// Config is the immutable configuration of one watcher.
type Config struct {
	UserID string
	Ticker string
	Side   Side
	Mode   Mode

	// BasePrice is the reference price as a fraction of $1 (0 < p <= 1).
	// It must be supplied explicitly; there is no default.
	BasePrice decimal.Decimal

	// ThresholdPercent is the percent move that arms the trigger
	// (10 means a 10% move from BasePrice).
	ThresholdPercent decimal.Decimal

	// Credentials are held for this watcher's lifetime only and are
	// zeroed when the watcher ends.
	Credentials *auth.Credentials
}

// Key returns the watcher's identity.
func (c Config) Key() Key {
	return Key{UserID: c.UserID, Ticker: c.Ticker, Side: c.Side}
}

// Validate checks that the configuration is complete.
func (c Config) Validate() error {
	if c.UserID == "" {
		return errors.New("user id is required")
	}
	if c.Ticker == "" {
		return errors.New("market ticker is required")
	}
	if c.Side != SideYes && c.Side != SideNo {
		return fmt.Errorf("invalid side %q", c.Side)
	}
	if c.Mode != ModeAlert && c.Mode != ModeStopLoss {
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.BasePrice.Sign() <= 0 || c.BasePrice.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("base price must be in (0, 1], got %s", c.BasePrice)
	}
	if c.ThresholdPercent.Sign() <= 0 {
		return fmt.Errorf("threshold percent must be positive, got %s", c.ThresholdPercent)
	}
	if c.Credentials == nil {
		return errors.New("credentials are required")
	}
	return nil
}

// Tick is one normalized price update from the stream. Prices are fractions
// of $1; a zero price means the side had no usable quote in this update.
type Tick struct {
	Ticker   string
	YesPrice decimal.Decimal
	NoPrice  decimal.Decimal
	At       time.Time
}

// SidePrice returns the price for the given side.
func (t Tick) SidePrice(s Side) decimal.Decimal {
	if s == SideNo {
		return t.NoPrice
	}
	return t.YesPrice
}

// Decision is the evaluator's verdict for one tick.
type Decision struct {
	Armed bool

	// Price is the observed side price that armed the trigger.
	Price decimal.Decimal

	// MovePercent is the signed percent move from the base price.
	MovePercent decimal.Decimal
}

// Position is an open position as reported by the trading venue.
type Position struct {
	Ticker   string
	Side     Side
	Quantity int64
}

// Order is a submitted exit order.
type Order struct {
	ID       string
	Status   string
	Quantity int64
}

// Stream is one live subscription to a market's price channel. A Stream
// delivers ticks strictly in arrival order and ends exactly once.
type Stream interface {
	// Ticks returns the channel of normalized price updates.
	Ticks() <-chan Tick

	// Done is closed when the session ends for any reason.
	Done() <-chan struct{}

	// Err reports why the session ended; nil for a clean close. Valid
	// only after Done is closed.
	Err() error

	// Close ends the session. Idempotent.
	Close() error
}

// Dialer opens price streams. Implemented by internal/stream.
type Dialer interface {
	Dial(ctx context.Context, creds *auth.Credentials, ticker string) (Stream, error)
}

// Trader performs signed calls against the trading venue. Implemented by
// internal/api.
type Trader interface {
	// PositionFor returns the user's open position in the given market,
	// or ErrNoPosition if there is none.
	PositionFor(ctx context.Context, creds *auth.Credentials, ticker string) (Position, error)

	// SellMarket submits a market sell order for quantity contracts on
	// the given side.
	SellMarket(ctx context.Context, creds *auth.Credentials, ticker string, side Side, quantity int64) (Order, error)
}

// Notifier delivers a direct message to a user. Delivery is best-effort:
// implementations log failures and never propagate them.
type Notifier interface {
	Notify(ctx context.Context, userID, text string)
}

// Journal records watcher lifecycle transitions for auditing. Calls are
// best-effort; the registry logs and ignores journal errors.
type Journal interface {
	WatchStarted(ctx context.Context, key Key, mode Mode, basePrice, thresholdPercent decimal.Decimal) error
	WatchTriggered(ctx context.Context, key Key, mode Mode, price decimal.Decimal, outcome string) error
	WatchClosed(ctx context.Context, key Key, status Status) error
}
