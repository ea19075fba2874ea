package api

import "github.com/shopspring/decimal"

// Market is the metadata snapshot for one tradeable market. Prices are
// fractional dollars.
type Market struct {
	Ticker    string          `json:"ticker"`
	Title     string          `json:"title"`
	Status    string          `json:"status"`
	YesPrice  decimal.Decimal `json:"yes_price"`
	NoPrice   decimal.Decimal `json:"no_price"`
	LastPrice decimal.Decimal `json:"last_price"`
	Volume    int64           `json:"volume"`
}

// singleMarketResponse wraps the GET /markets/{ticker} response.
type singleMarketResponse struct {
	Market Market `json:"market"`
}

// marketPosition is one entry of the GET /positions response. Position is
// signed: positive counts are YES contracts, negative are NO.
type marketPosition struct {
	Ticker   string `json:"ticker"`
	Position int64  `json:"position"`
}

// positionsResponse wraps the GET /positions response.
type positionsResponse struct {
	MarketPositions []marketPosition `json:"market_positions"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Type          string `json:"type"`
	Count         int64  `json:"count"`
}

// orderResponse wraps the POST /orders response.
type orderResponse struct {
	Order struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	} `json:"order"`
}
