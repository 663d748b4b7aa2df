// Package telegram connects threadrelay to the Telegram Bot API: it turns
// updates into inbound messages and relays replies back to chats.
package telegram

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the subset of *tgbotapi.BotAPI used by this package.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ API = (*tgbotapi.BotAPI)(nil)

// NewBot authenticates with Telegram and routes the library's logging
// through logger.
func NewBot(token string, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	if logger == nil {
		logger = slog.Default()
	}
	_ = tgbotapi.SetLogger(&slogBotLogger{log: logger.With("component", "telegram-bot-api")})

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	logger.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return bot, nil
}

// slogBotLogger adapts slog to tgbotapi.BotLogger.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(fmt.Sprint(v...))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}
