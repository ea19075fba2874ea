package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nith567/Kalshi-Sentinel/internal/metrics"
)

// Registry owns the set of active watchers. It is the only component that
// creates, replaces, and removes price streams; all mutation of the key to
// watcher map goes through its methods.
type Registry struct {
	dialer   Dialer
	trader   Trader
	notifier Notifier
	journal  Journal // optional
	logger   *slog.Logger

	execTimeout time.Duration

	mu       sync.Mutex
	watchers map[Key]*watcher
	closed   bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithJournal records watcher lifecycle transitions to the given journal.
func WithJournal(j Journal) RegistryOption {
	return func(r *Registry) { r.journal = j }
}

// WithExecTimeout bounds each execution pipeline step.
func WithExecTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.execTimeout = d }
}

// NewRegistry creates a watcher registry.
func NewRegistry(dialer Dialer, trader Trader, notifier Notifier, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		dialer:      dialer,
		trader:      trader,
		notifier:    notifier,
		logger:      logger,
		execTimeout: 30 * time.Second,
		watchers:    make(map[Key]*watcher),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start registers a new watcher and opens its price stream. If a watcher
// already exists for the same key it is closed and removed first; the two
// are never live at the same time.
func (r *Registry) Start(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid watch config: %w", err)
	}
	key := cfg.Key()

	// Supersede: the prior stream must be fully closed before the new
	// session is dialed.
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	prev, ok := r.watchers[key]
	if ok {
		delete(r.watchers, key)
	}
	r.mu.Unlock()

	if prev != nil {
		// Already deleted from the map, so the run loop's removeEntry
		// no-ops; account for the displacement here.
		prev.stop()
		metrics.WatchersActive.Dec()
		r.logger.Info("superseded watcher", "key", key.String())
	}

	w := newWatcher(cfg)

	st, err := r.dialer.Dial(ctx, cfg.Credentials, cfg.Ticker)
	if err != nil {
		w.setStatus(StatusError)
		return fmt.Errorf("open price stream: %w", err)
	}
	w.stream = st

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		w.stop()
		return ErrRegistryClosed
	}
	// A concurrent Start on the same key may have registered while we were
	// dialing; the newcomer wins and the raced entry is stopped below.
	raced := r.watchers[key]
	r.watchers[key] = w
	r.mu.Unlock()

	if raced != nil {
		raced.stop()
		metrics.WatchersActive.Dec()
	}

	r.recordStarted(cfg)
	metrics.WatchersActive.Inc()

	go r.run(w)

	r.logger.Info("watcher started",
		"key", key.String(),
		"mode", string(cfg.Mode),
		"base_price", cfg.BasePrice.String(),
		"threshold_pct", cfg.ThresholdPercent.String(),
	)
	return nil
}

// Stop closes a watcher's stream and removes it. It reports whether a
// watcher was present; stopping an absent key is a no-op, not an error.
func (r *Registry) Stop(key Key) bool {
	r.mu.Lock()
	w, ok := r.watchers[key]
	r.mu.Unlock()
	if !ok {
		return false
	}

	// Close the network resource first, then remove the entry. The run
	// loop's own removal is identity-checked, so both paths are safe.
	w.stop()
	r.removeEntry(w)

	r.logger.Info("watcher stopped", "key", key.String())
	return true
}

// StopAll stops every watcher belonging to a user and returns how many
// were stopped.
func (r *Registry) StopAll(userID string) int {
	r.mu.Lock()
	var targets []*watcher
	for _, w := range r.watchers {
		if w.key.UserID == userID {
			targets = append(targets, w)
		}
	}
	r.mu.Unlock()

	for _, w := range targets {
		w.stop()
		r.removeEntry(w)
	}
	return len(targets)
}

// List returns the keys of a user's active watchers, sorted.
func (r *Registry) List(userID string) []Key {
	r.mu.Lock()
	var keys []Key
	for k := range r.watchers {
		if k.UserID == userID {
			keys = append(keys, k)
		}
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Ticker != keys[j].Ticker {
			return keys[i].Ticker < keys[j].Ticker
		}
		return keys[i].Side < keys[j].Side
	})
	return keys
}

// Count returns the number of active watchers across all users.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchers)
}

// Close stops all watchers and rejects further starts. Called once at
// process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	var all []*watcher
	for _, w := range r.watchers {
		all = append(all, w)
	}
	r.watchers = make(map[Key]*watcher)
	r.mu.Unlock()

	for _, w := range all {
		w.stop()
		metrics.WatchersActive.Dec()
	}
	r.logger.Info("registry closed", "stopped", len(all))
}

// removeEntry deletes a watcher's map entry if it is still the registered
// one. Identity-checked so a superseding watcher is never removed by its
// predecessor's teardown.
func (r *Registry) removeEntry(w *watcher) {
	r.mu.Lock()
	cur, ok := r.watchers[w.key]
	if ok && cur == w {
		delete(r.watchers, w.key)
		r.mu.Unlock()
		metrics.WatchersActive.Dec()
		return
	}
	r.mu.Unlock()
}

// run consumes one watcher's ticks until the stream ends or the trigger
// fires. It is the single writer of the watcher's state.
func (r *Registry) run(w *watcher) {
	defer r.removeEntry(w)
	defer w.discardCredentials()

	w.setStatus(StatusActive)

	for {
		select {
		case <-w.stream.Done():
			r.finishClosed(w)
			return

		case tick, ok := <-w.stream.Ticks():
			if !ok {
				r.finishClosed(w)
				return
			}
			if tick.Ticker != w.key.Ticker {
				continue
			}
			metrics.TicksEvaluated.WithLabelValues(string(w.cfg.Mode)).Inc()

			dec := Evaluate(w.cfg, tick)
			if !dec.Armed {
				continue
			}

			// At most one trigger per watcher. arm fails if a
			// concurrent stop won the race.
			if !w.arm() {
				return
			}

			// Close the stream before any side effect so no further
			// tick can ever be evaluated.
			w.stream.Close()
			r.fire(w, dec)
			return
		}
	}
}

// finishClosed handles a stream that ended without triggering. The watcher
// dies silently: connection drops produce no notification.
func (r *Registry) finishClosed(w *watcher) {
	status := StatusClosed
	if err := w.stream.Err(); err != nil && !w.stopRequested() {
		status = StatusError
		r.logger.Warn("price stream ended with error",
			"key", w.key.String(),
			"error", err,
		)
	}
	w.setStatus(status)
	r.recordClosed(w.key, status)
}

// fire runs the on-trigger action and delivers exactly one notification
// for whichever terminal state is reached.
func (r *Registry) fire(w *watcher, dec Decision) {
	w.setStatus(StatusTriggered)
	metrics.TriggersFired.WithLabelValues(string(w.cfg.Mode)).Inc()

	r.logger.Info("trigger fired",
		"key", w.key.String(),
		"mode", string(w.cfg.Mode),
		"price", dec.Price.String(),
		"move_pct", dec.MovePercent.StringFixed(2),
	)

	ctx, cancel := context.WithTimeout(context.Background(), r.execTimeout)
	defer cancel()

	var text, outcome string
	switch w.cfg.Mode {
	case ModeAlert:
		text = formatAlert(w.cfg, dec)
		outcome = "alerted"

	case ModeStopLoss:
		out := r.execute(ctx, w)
		if out.State == execCancelled {
			r.recordTriggered(w.key, w.cfg.Mode, dec.Price, string(out.State))
			return
		}
		text = formatStopLoss(w.cfg, dec, out)
		outcome = string(out.State)
	}

	r.notifier.Notify(ctx, w.key.UserID, text)
	r.recordTriggered(w.key, w.cfg.Mode, dec.Price, outcome)
}

func (r *Registry) recordStarted(cfg Config) {
	if r.journal == nil {
		return
	}
	ctx, cancel := journalCtx()
	defer cancel()
	if err := r.journal.WatchStarted(ctx, cfg.Key(), cfg.Mode, cfg.BasePrice, cfg.ThresholdPercent); err != nil {
		r.logger.Warn("journal write failed", "event", "started", "error", err)
	}
}

func (r *Registry) recordTriggered(key Key, mode Mode, price decimal.Decimal, outcome string) {
	if r.journal == nil {
		return
	}
	ctx, cancel := journalCtx()
	defer cancel()
	if err := r.journal.WatchTriggered(ctx, key, mode, price, outcome); err != nil {
		r.logger.Warn("journal write failed", "event", "triggered", "error", err)
	}
}

func (r *Registry) recordClosed(key Key, status Status) {
	if r.journal == nil {
		return
	}
	ctx, cancel := journalCtx()
	defer cancel()
	if err := r.journal.WatchClosed(ctx, key, status); err != nil {
		r.logger.Warn("journal write failed", "event", "closed", "error", err)
	}
}

func journalCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
