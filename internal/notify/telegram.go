// Package notify delivers direct messages to users over Telegram.
//
// Delivery is best-effort: a user with no known chat, a blocked bot, or a
// transport failure is logged and counted, never surfaced to the caller.
package notify

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"

	"github.com/Nith567/Kalshi-Sentinel/internal/metrics"
)

// ChatDirectory resolves a user id to the chat for direct messages.
// Implemented by the store, which learns chat ids from incoming messages.
type ChatDirectory interface {
	UserChatID(ctx context.Context, userID string) (int64, error)
}

// Telegram sends direct messages through a Telegram bot. It implements
// watch.Notifier.
type Telegram struct {
	bot    *bot.Bot
	chats  ChatDirectory
	logger *slog.Logger
}

// NewTelegram creates a Telegram notifier on an existing bot.
func NewTelegram(b *bot.Bot, chats ChatDirectory, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		bot:    b,
		chats:  chats,
		logger: logger,
	}
}

// Notify delivers one direct message. Failures are logged and swallowed.
func (t *Telegram) Notify(ctx context.Context, userID, text string) {
	chatID, err := t.chats.UserChatID(ctx, userID)
	if err != nil {
		metrics.NotifyFailures.Inc()
		t.logger.Warn("notification dropped, no chat for user",
			"user", userID,
			"error", err,
		)
		return
	}

	_, err = t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		metrics.NotifyFailures.Inc()
		t.logger.Warn("notification delivery failed (ignored)",
			"user", userID,
			"error", err,
		)
		return
	}

	t.logger.Info("notification delivered", "user", userID)
}
