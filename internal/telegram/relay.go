package telegram

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ashureev/threadrelay/internal/domain"
)

const maxMessageLength = 4096

// Relay sends replies to Telegram chats.
type Relay struct {
	api API
}

// NewRelay creates a relay over the given bot.
func NewRelay(api API) *Relay {
	return &Relay{api: api}
}

// SendText sends text as a plain message to chatID.
func (r *Relay) SendText(_ context.Context, chatID domain.ChatID, text string) error {
	id, err := chatID.Int64()
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}
	msg := tgbotapi.NewMessage(id, truncateText(sanitizeText(text)))
	if _, err := r.api.Send(msg); err != nil {
		return fmt.Errorf("send message to %s: %w", chatID, err)
	}
	return nil
}

// SendTyping shows the "typing" chat action.
func (r *Relay) SendTyping(_ context.Context, chatID domain.ChatID) error {
	id, err := chatID.Int64()
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}
	if _, err := r.api.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("send typing to %s: %w", chatID, err)
	}
	return nil
}

// sanitizeText drops invalid UTF-8, which the Bot API rejects.
func sanitizeText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateText cuts text to the Bot API limit on a rune boundary.
func truncateText(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	const suffix = "..."
	limit := maxMessageLength - len(suffix)
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + suffix
}
