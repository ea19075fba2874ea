// Package store provides PostgreSQL persistence for the sentinel.
//
// It holds three small tables:
//   - user_credentials: per-user Kalshi API key material
//   - user_chats: chat ids for direct-message delivery
//   - watch_journal: append-only watcher lifecycle audit rows
package store
