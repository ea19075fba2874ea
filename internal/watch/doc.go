// Package watch implements the watcher engine.
//
// The Registry:
//   - Owns the map of active watchers keyed by (user, market, side)
//   - Opens one price stream per watcher and supersedes duplicates
//   - Evaluates every tick and fires each watcher at most once
//   - Runs the stop-loss execution pipeline and delivers notifications
package watch
