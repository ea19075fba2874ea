package watch

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// dollars renders a fractional price as a four-decimal dollar amount,
// e.g. "$0.4400".
func dollars(p decimal.Decimal) string {
	return "$" + p.StringFixed(4)
}

// formatAlert builds the direct-message text for a fired price alert.
func formatAlert(cfg Config, dec Decision) string {
	return fmt.Sprintf(
		"Price alert: %s %s hit %s (entry %s, threshold %s%%, move %s%%)",
		cfg.Ticker,
		strings.ToUpper(string(cfg.Side)),
		dollars(dec.Price),
		dollars(cfg.BasePrice),
		cfg.ThresholdPercent.String(),
		dec.MovePercent.StringFixed(2),
	)
}

// formatStopLoss builds the direct-message text for a fired stop-loss,
// including the execution result.
func formatStopLoss(cfg Config, dec Decision, out outcome) string {
	head := fmt.Sprintf(
		"Stop loss: %s %s fell to %s (entry %s, drop threshold %s%%)",
		cfg.Ticker,
		strings.ToUpper(string(cfg.Side)),
		dollars(dec.Price),
		dollars(cfg.BasePrice),
		cfg.ThresholdPercent.String(),
	)

	switch out.State {
	case execFilled:
		return fmt.Sprintf("%s. Sold %d contracts, order %s (status %s).",
			head, out.Order.Quantity, out.Order.ID, out.Order.Status)
	case execNoPosition:
		return head + ". Position not found, no order placed."
	case execFetchFailed:
		return fmt.Sprintf("%s. Could not fetch position: %v. No order placed.", head, out.Err)
	case execOrderFailed:
		return fmt.Sprintf("%s. Sell order failed: %v. Manual action required.", head, out.Err)
	}
	return head
}
