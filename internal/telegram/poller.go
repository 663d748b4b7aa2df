package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pollTimeoutSeconds = 30

// Poll receives updates by long polling until ctx is done. Any registered
// webhook is removed first, since Telegram refuses getUpdates while one is set.
func Poll(ctx context.Context, api API, dispatcher *Dispatcher, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := api.GetUpdatesChan(cfg)
	logger.Info("Long polling started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Long polling stopping", "reason", ctx.Err())
			api.StopReceivingUpdates()
			// Drain so the library's polling goroutine can exit.
			for range updates {
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				logger.Info("Updates channel closed")
				return nil
			}
			dispatcher.Dispatch(ctx, update)
		}
	}
}
