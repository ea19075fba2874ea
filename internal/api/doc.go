// Package api provides the Kalshi REST API client.
//
// It covers the read and trade surface the sentinel needs:
//   - Market metadata snapshots (unauthenticated)
//   - Position lookup and market order submission (signed per request)
//
// Idempotent reads retry with jittered exponential backoff; order
// submission is attempted exactly once.
package api
