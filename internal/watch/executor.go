package watch

import (
	"context"
	"errors"

	"github.com/Nith567/Kalshi-Sentinel/internal/metrics"
)

// execState is a terminal state of the stop-loss execution pipeline.
type execState string

const (
	execFilled      execState = "filled"
	execNoPosition  execState = "no_position"
	execFetchFailed execState = "fetch_failed"
	execOrderFailed execState = "order_failed"

	// execCancelled means a user stop arrived mid-pipeline; no order was
	// submitted and no notification is owed.
	execCancelled execState = "cancelled"
)

// outcome is the result of one pipeline run. Exactly one is produced per
// watcher lifetime.
type outcome struct {
	State execState
	Order Order
	Err   error
}

// execute runs the fetch-position, place-order sequence for a fired
// stop-loss watcher. The stop flag is checked before every side-effecting
// step so a concurrent user stop prevents a post-stop order submission; a
// request already in flight is never aborted. Order submission happens at
// most once, with no retry on failure.
func (r *Registry) execute(ctx context.Context, w *watcher) outcome {
	if w.stopRequested() {
		return outcome{State: execCancelled}
	}

	pos, err := r.trader.PositionFor(ctx, w.cfg.Credentials, w.key.Ticker)
	if err != nil {
		if errors.Is(err, ErrNoPosition) {
			return r.finish(outcome{State: execNoPosition})
		}
		r.logger.Warn("position fetch failed",
			"key", w.key.String(),
			"error", err,
		)
		return r.finish(outcome{State: execFetchFailed, Err: err})
	}
	if pos.Quantity <= 0 {
		return r.finish(outcome{State: execNoPosition})
	}

	if w.stopRequested() {
		return outcome{State: execCancelled}
	}

	// Full exit: sell the entire held position on its held side.
	order, err := r.trader.SellMarket(ctx, w.cfg.Credentials, w.key.Ticker, pos.Side, pos.Quantity)
	if err != nil {
		r.logger.Warn("exit order failed",
			"key", w.key.String(),
			"quantity", pos.Quantity,
			"error", err,
		)
		return r.finish(outcome{State: execOrderFailed, Err: err})
	}

	r.logger.Info("exit order placed",
		"key", w.key.String(),
		"order_id", order.ID,
		"quantity", order.Quantity,
		"status", order.Status,
	)
	return r.finish(outcome{State: execFilled, Order: order})
}

func (r *Registry) finish(out outcome) outcome {
	metrics.ExecutionOutcomes.WithLabelValues(string(out.State)).Inc()
	return out
}
