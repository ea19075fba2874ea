package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/Nith567/Kalshi-Sentinel/internal/auth"
	"github.com/Nith567/Kalshi-Sentinel/internal/watch"
)

// PositionFor returns the user's open position in the given market, or
// watch.ErrNoPosition when there is none. Implements part of watch.Trader.
func (c *Client) PositionFor(ctx context.Context, creds *auth.Credentials, ticker string) (watch.Position, error) {
	query := url.Values{}
	query.Set("ticker", ticker)

	var resp positionsResponse
	if err := c.get(ctx, "/positions", query, creds, &resp); err != nil {
		return watch.Position{}, fmt.Errorf("get positions: %w", err)
	}

	for _, p := range resp.MarketPositions {
		if p.Ticker != ticker || p.Position == 0 {
			continue
		}
		side := watch.SideYes
		qty := p.Position
		if qty < 0 {
			side = watch.SideNo
			qty = -qty
		}
		return watch.Position{
			Ticker:   p.Ticker,
			Side:     side,
			Quantity: qty,
		}, nil
	}

	return watch.Position{}, watch.ErrNoPosition
}

// SellMarket submits a market sell order for the full quantity on the held
// side. The order is submitted exactly once. Implements part of
// watch.Trader.
func (c *Client) SellMarket(ctx context.Context, creds *auth.Credentials, ticker string, side watch.Side, quantity int64) (watch.Order, error) {
	req := OrderRequest{
		Ticker:        ticker,
		ClientOrderID: uuid.NewString(),
		Side:          string(side),
		Action:        "sell",
		Type:          "market",
		Count:         quantity,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return watch.Order{}, fmt.Errorf("marshal order: %w", err)
	}

	var resp orderResponse
	if err := c.postOnce(ctx, "/orders", body, creds, &resp); err != nil {
		return watch.Order{}, fmt.Errorf("create order: %w", err)
	}

	c.logger.Info("order submitted",
		"ticker", ticker,
		"side", string(side),
		"count", quantity,
		"order_id", resp.Order.OrderID,
		"status", resp.Order.Status,
	)

	return watch.Order{
		ID:       resp.Order.OrderID,
		Status:   resp.Order.Status,
		Quantity: quantity,
	}, nil
}
