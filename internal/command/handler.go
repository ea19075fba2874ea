package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	"github.com/Nith567/Kalshi-Sentinel/internal/api"
	"github.com/Nith567/Kalshi-Sentinel/internal/auth"
	"github.com/Nith567/Kalshi-Sentinel/internal/watch"
)

// UserStore holds per-user API credentials and chat ids.
// Implemented by store.Store.
type UserStore interface {
	Credentials(ctx context.Context, userID string) (*auth.Credentials, error)
	SetCredentials(ctx context.Context, userID, keyID string, privateKeyPEM []byte) error
	SetUserChatID(ctx context.Context, userID string, chatID int64) error
}

// MarketLookup fetches a market snapshot for command acknowledgements.
type MarketLookup interface {
	GetMarket(ctx context.Context, ticker string) (*api.Market, error)
}

type cmdFunc func(ctx context.Context, userID string, args []string) (string, error)

type cmdEntry struct {
	purpose string
	handler cmdFunc
}

// Handler turns Telegram messages into watch operations. Register it as the
// bot's default handler.
type Handler struct {
	registry *watch.Registry
	markets  MarketLookup
	users    UserStore
	allowed  map[string]struct{}
	logger   *slog.Logger

	commands map[string]cmdEntry
}

// New creates a command handler. allowedUsers is a whitelist of Telegram
// usernames; if empty, every sender is rejected.
func New(registry *watch.Registry, markets MarketLookup, users UserStore, allowedUsers []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		registry: registry,
		markets:  markets,
		users:    users,
		allowed:  make(map[string]struct{}, len(allowedUsers)),
		logger:   logger,
	}
	for _, u := range allowedUsers {
		h.allowed[strings.TrimPrefix(u, "@")] = struct{}{}
	}
	h.commands = map[string]cmdEntry{
		"setkeys": {
			purpose: "Store Kalshi API credentials: /setkeys KEY_ID BASE64_PEM",
			handler: h.setKeys,
		},
		"watch": {
			purpose: "Alert when a price rises: /watch TICKER SIDE THRESHOLD_PCT BASE_PRICE",
			handler: h.watchAlert,
		},
		"stoploss": {
			purpose: "Sell when a price falls: /stoploss TICKER SIDE DROP_PCT BASE_PRICE",
			handler: h.watchStopLoss,
		},
		"unwatch": {
			purpose: "Cancel one watch: /unwatch TICKER SIDE",
			handler: h.unwatch,
		},
		"unwatchall": {
			purpose: "Cancel all of your watches",
			handler: h.unwatchAll,
		},
		"watches": {
			purpose: "List your active watches",
			handler: h.listWatches,
		},
		"help": {
			purpose: "Show available commands",
			handler: h.help,
		},
	}
	return h
}

// BotCommands returns the command menu for bot.SetMyCommands.
func (h *Handler) BotCommands() *bot.SetMyCommandsParams {
	var cmds []models.BotCommand
	for name, entry := range h.commands {
		cmds = append(cmds, models.BotCommand{
			Command:     name,
			Description: entry.purpose,
		})
	}
	return &bot.SetMyCommandsParams{Commands: cmds}
}

// Handle processes one update. It is the bot.WithDefaultHandler callback.
func (h *Handler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	sender := update.Message.From.Username
	if _, ok := h.allowed[sender]; !ok {
		h.logger.Warn("message from unauthorized user (ignored)",
			"sender", sender, "message", update.Message.Text)
		return
	}

	if err := h.users.SetUserChatID(ctx, sender, update.Message.Chat.ID); err != nil {
		h.logger.Warn("could not record chat id (ignored)", "user", sender, "error", err)
	}

	reply := h.respond(ctx, sender, update.Message.Text)
	if reply == "" {
		return
	}
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   reply,
		ReplyParameters: &models.ReplyParameters{
			MessageID: update.Message.ID,
		},
	})
	if err != nil {
		h.logger.Error("could not reply to user command (ignored)",
			"user", sender, "error", err)
	}
}

func (h *Handler) respond(ctx context.Context, userID, text string) string {
	name, args, err := splitCommand(text)
	if err != nil {
		return ""
	}
	entry, ok := h.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command /%s. Try /help.", name)
	}
	reply, err := entry.handler(ctx, userID, args)
	if err != nil {
		h.logger.Error("user command failed",
			"cmd", name, "user", userID, "error", err)
		return err.Error()
	}
	return reply
}

// splitCommand parses "/name arg arg" into its parts. Non-command text
// returns os.ErrInvalid.
func splitCommand(text string) (string, []string, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, os.ErrInvalid
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, os.ErrInvalid
	}
	name := fields[0]
	// Group chats address commands as /name@botname.
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), fields[1:], nil
}

// parseWatchArgs parses the shared TICKER SIDE PCT BASE argument list.
func parseWatchArgs(args []string) (ticker string, side watch.Side, pct, base decimal.Decimal, err error) {
	if len(args) != 4 {
		err = errors.New("expected TICKER SIDE THRESHOLD_PCT BASE_PRICE")
		return
	}
	ticker = strings.ToUpper(args[0])
	side, err = watch.ParseSide(args[1])
	if err != nil {
		return
	}
	pct, err = decimal.NewFromString(args[2])
	if err != nil {
		err = fmt.Errorf("bad threshold %q: %w", args[2], err)
		return
	}
	base, err = decimal.NewFromString(args[3])
	if err != nil {
		err = fmt.Errorf("bad base price %q: %w", args[3], err)
		return
	}
	return
}
