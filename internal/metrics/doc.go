// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Active watcher count and tick evaluation rates
//   - Trigger and execution pipeline outcomes
//   - Stream parse errors and notification delivery failures
package metrics
