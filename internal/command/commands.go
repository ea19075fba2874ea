package command

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Nith567/Kalshi-Sentinel/internal/store"
	"github.com/Nith567/Kalshi-Sentinel/internal/watch"
)

func (h *Handler) setKeys(ctx context.Context, userID string, args []string) (string, error) {
	if len(args) != 2 {
		return "", errors.New("expected KEY_ID BASE64_PEM")
	}
	pem, err := base64.StdEncoding.DecodeString(args[1])
	if err != nil {
		return "", fmt.Errorf("key material is not valid base64: %w", err)
	}
	if err := h.users.SetCredentials(ctx, userID, args[0], pem); err != nil {
		return "", err
	}
	return "Credentials stored.", nil
}

func (h *Handler) watchAlert(ctx context.Context, userID string, args []string) (string, error) {
	return h.startWatch(ctx, userID, watch.ModeAlert, args)
}

func (h *Handler) watchStopLoss(ctx context.Context, userID string, args []string) (string, error) {
	return h.startWatch(ctx, userID, watch.ModeStopLoss, args)
}

func (h *Handler) startWatch(ctx context.Context, userID string, mode watch.Mode, args []string) (string, error) {
	ticker, side, pct, base, err := parseWatchArgs(args)
	if err != nil {
		return "", err
	}

	creds, err := h.users.Credentials(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNoCredentials) {
			return "", errors.New("no API credentials on file, use /setkeys first")
		}
		return "", err
	}

	market, err := h.markets.GetMarket(ctx, ticker)
	if err != nil {
		return "", fmt.Errorf("could not look up market %s: %w", ticker, err)
	}

	cfg := watch.Config{
		UserID:           userID,
		Ticker:           ticker,
		Side:             side,
		Mode:             mode,
		BasePrice:        base,
		ThresholdPercent: pct,
		Credentials:      creds,
	}
	if err := h.registry.Start(ctx, cfg); err != nil {
		return "", err
	}

	verb := "Alerting"
	if mode == watch.ModeStopLoss {
		verb = "Stop-loss armed"
	}
	return fmt.Sprintf("%s on %s %s at %s%% from $%s (market %q, last $%s).",
		verb, ticker, side, pct.String(), base.StringFixed(4),
		market.Title, market.LastPrice.StringFixed(4)), nil
}

func (h *Handler) unwatch(ctx context.Context, userID string, args []string) (string, error) {
	if len(args) != 2 {
		return "", errors.New("expected TICKER SIDE")
	}
	side, err := watch.ParseSide(args[1])
	if err != nil {
		return "", err
	}
	key := watch.Key{
		UserID: userID,
		Ticker: strings.ToUpper(args[0]),
		Side:   side,
	}
	if !h.registry.Stop(key) {
		return fmt.Sprintf("No active watch on %s %s.", key.Ticker, key.Side), nil
	}
	return fmt.Sprintf("Stopped watching %s %s.", key.Ticker, key.Side), nil
}

func (h *Handler) unwatchAll(ctx context.Context, userID string, args []string) (string, error) {
	n := h.registry.StopAll(userID)
	if n == 0 {
		return "You have no active watches.", nil
	}
	return fmt.Sprintf("Stopped %d watches.", n), nil
}

func (h *Handler) listWatches(ctx context.Context, userID string, args []string) (string, error) {
	keys := h.registry.List(userID)
	if len(keys) == 0 {
		return "You have no active watches.", nil
	}
	var sb strings.Builder
	sb.WriteString("Active watches:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s %s\n", k.Ticker, k.Side)
	}
	return sb.String(), nil
}

func (h *Handler) help(ctx context.Context, userID string, args []string) (string, error) {
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "/%s  %s\n", name, h.commands[name].purpose)
	}
	return sb.String(), nil
}
