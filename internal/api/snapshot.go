package api

import (
	"context"
	"fmt"
)

// GetMarket fetches the current metadata snapshot for a single market.
func (c *Client) GetMarket(ctx context.Context, ticker string) (*Market, error) {
	var resp singleMarketResponse
	if err := c.get(ctx, "/markets/"+ticker, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get market %s: %w", ticker, err)
	}
	return &resp.Market, nil
}
