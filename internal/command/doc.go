// Package command is the Telegram front end.
//
// It maps chat commands onto registry operations:
//
//   - /setkeys stores a user's Kalshi API credentials
//   - /watch and /stoploss start price watches
//   - /unwatch, /unwatchall and /watches manage them
//
// Only whitelisted Telegram usernames are served. The chat id of every
// accepted message is recorded so notifications can be delivered later.
package command
