// Package stream connects to the Kalshi market data WebSocket.
//
// Each watcher gets its own WebSocket session:
//   - Signed handshake, then a subscribe command scoped to one ticker
//   - Normalized ticks delivered in arrival order on a buffered channel
//   - Updates for other tickers and unknown message types are filtered
//   - No reconnection: a dropped connection ends the watcher
package stream
