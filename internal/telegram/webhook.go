package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxUpdateBodySize = 1 << 20 // 1MB

// RegisterWebhook points Telegram at url. A non-empty secret is echoed by
// Telegram in the X-Telegram-Bot-Api-Secret-Token header of every request.
func RegisterWebhook(api API, url, secret string) error {
	params := tgbotapi.Params{}
	params.AddNonEmpty("url", url)
	params.AddNonEmpty("secret_token", secret)
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// WebhookHandler accepts update POSTs from Telegram. The request is
// acknowledged as soon as the update is decoded; the turn runs on baseCtx.
func WebhookHandler(baseCtx context.Context, dispatcher *Dispatcher, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBodySize))
		if err := dec.Decode(&update); err != nil {
			logger.Warn("Failed to decode webhook update", "error", err)
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}
		dispatcher.Dispatch(baseCtx, update)
		w.WriteHeader(http.StatusOK)
	}
}
