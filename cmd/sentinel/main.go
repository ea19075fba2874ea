package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Nith567/Kalshi-Sentinel/internal/api"
	"github.com/Nith567/Kalshi-Sentinel/internal/command"
	"github.com/Nith567/Kalshi-Sentinel/internal/config"
	"github.com/Nith567/Kalshi-Sentinel/internal/notify"
	"github.com/Nith567/Kalshi-Sentinel/internal/store"
	"github.com/Nith567/Kalshi-Sentinel/internal/stream"
	"github.com/Nith567/Kalshi-Sentinel/internal/version"
	"github.com/Nith567/Kalshi-Sentinel/internal/watch"
)

func main() {
	configPath := flag.String("config", "configs/sentinel.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting sentinel",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
		"ws_url", cfg.API.WSURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)

	pool, err := store.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool, logger)
	if err := st.EnsureSchema(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	logger.Info("database connected")

	// Create API client
	apiClient := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Create stream dialer
	streamCfg := stream.DefaultConfig()
	streamCfg.URL = cfg.API.WSURL
	streamCfg.SubscribeTimeout = cfg.Watch.SubscribeTimeout
	streamCfg.TickBuffer = cfg.Watch.TickBuffer
	dialer := stream.NewDialer(streamCfg, logger)

	// Create Telegram bot with the command handler attached
	var handler *command.Handler
	b, err := bot.New(cfg.Telegram.BotToken,
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			handler.Handle(ctx, b, update)
		}),
	)
	if err != nil {
		logger.Error("failed to create telegram bot", "error", err)
		os.Exit(1)
	}

	notifier := notify.NewTelegram(b, st, logger)

	registry := watch.NewRegistry(dialer, apiClient, notifier, logger,
		watch.WithJournal(st),
		watch.WithExecTimeout(cfg.Watch.ExecTimeout),
	)
	defer registry.Close()

	handler = command.New(registry, apiClient, st, cfg.Telegram.AllowedUsers, logger)

	if ok, err := b.SetMyCommands(ctx, handler.BotCommands()); err != nil {
		logger.Error("failed to set bot commands", "error", err)
		os.Exit(1)
	} else if !ok {
		logger.Error("bot rejected command menu")
		os.Exit(1)
	}

	// Metrics and health server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHTTPHandler(cfg, pool, registry),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting telegram bot")
		b.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	logger.Info("sentinel running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("sentinel exited with error", "error", err)
		registry.Close()
		os.Exit(1)
	}

	logger.Info("shutting down...")
	registry.Close()
	logger.Info("sentinel stopped")
}

// createHTTPHandler serves Prometheus metrics and a JSON health check.
func createHTTPHandler(cfg *config.SentinelConfig, pool *pgxpool.Pool, registry *watch.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(cfg.Metrics.Path, promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check database
		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		health.Components["watchers"] = map[string]interface{}{
			"active": registry.Count(),
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
