package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/ashureev/threadrelay/internal/api"
	"github.com/ashureev/threadrelay/internal/assistant"
	"github.com/ashureev/threadrelay/internal/config"
	"github.com/ashureev/threadrelay/internal/conversation"
	"github.com/ashureev/threadrelay/internal/dedupe"
	"github.com/ashureev/threadrelay/internal/store"
	"github.com/ashureev/threadrelay/internal/telegram"
	"github.com/ashureev/threadrelay/internal/transcript"
)

const (
	webhookPath     = "/telegram/webhook"
	dedupeMaxSize   = 10000
	shutdownTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Receive Telegram updates and answer them with the assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}
	logger := newLogger(cfg.LogLevel)

	logger.Info("Starting threadrelay",
		"port", cfg.Port,
		"mode", cfg.Telegram.Mode,
		"session_store", cfg.Store.Backend,
	)

	bindings, err := store.Open(cfg.Store.Options())
	if err != nil {
		logger.Error("Failed to initialize session store", "error", err)
		return err
	}
	defer func() {
		if closeErr := bindings.Close(); closeErr != nil {
			logger.Error("Failed to close session store", "error", closeErr)
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(parent, 5*time.Second)
	if err := bindings.Ping(pingCtx); err != nil {
		// Lookups fail open, so an unreachable store degrades to fresh threads.
		logger.Warn("Session store health check failed", "error", err)
	}
	cancelPing()

	bot, err := telegram.NewBot(cfg.Telegram.Token, logger)
	if err != nil {
		logger.Error("Failed to initialize Telegram bot", "error", err)
		return err
	}
	bot.Debug = cfg.Telegram.Debug

	client := assistant.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	threads := assistant.NewThreads(client, logger)
	driver := assistant.NewRunDriver(client, cfg.OpenAI.AssistantID,
		assistant.WithPollPolicy(assistant.PollPolicy{
			MaxAttempts: cfg.Poll.Attempts,
			Interval:    cfg.Poll.Interval,
		}),
		assistant.WithLogger(logger),
	)
	relay := telegram.NewRelay(bot)
	handler := conversation.NewHandler(bindings, threads, driver, relay, logger)

	turnLog, err := transcript.New(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize conversation transcript", "error", err)
		return err
	}
	defer turnLog.Close()
	handler.SetTranscript(turnLog)
	dispatcher := telegram.NewDispatcher(handler, dedupe.New(cfg.DedupeTTL, dedupeMaxSize), logger)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	api.RegisterFallbacks(r)
	api.NewHealthHandler(bindings, 0).RegisterHealth(r)
	if cfg.Telegram.Mode == config.ModeWebhook {
		api.RegisterWebhook(r, webhookPath, cfg.Telegram.WebhookSecret,
			telegram.WebhookHandler(ctx, dispatcher, logger))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 3)

	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.GRPCHealthAddr != "" {
		grpcHealth := api.NewGRPCHealth(bindings, 0, logger)
		go func() {
			if err := grpcHealth.Serve(ctx, cfg.GRPCHealthAddr); err != nil {
				errCh <- err
			}
		}()
	}

	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		if err := telegram.RegisterWebhook(bot, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.Error("Failed to register webhook", "error", err)
			stop()
			shutdownHTTP(srv, logger)
			return err
		}
		logger.Info("Webhook registered", "url", cfg.Telegram.WebhookURL)
	default:
		go func() {
			if err := telegram.Poll(ctx, bot, dispatcher, logger); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("Component failed", "error", runErr)
	}
	stop()

	logger.Info("Shutting down gracefully...")
	shutdownHTTP(srv, logger)
	logger.Info("Waiting for in-flight turns")
	dispatcher.Wait()

	logger.Info("Server stopped successfully")
	return runErr
}

func shutdownHTTP(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
}
