package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ashureev/threadrelay/internal/dedupe"
	"github.com/ashureev/threadrelay/internal/domain"
)

// TurnHandler processes one inbound message.
type TurnHandler interface {
	Handle(ctx context.Context, msg domain.InboundMessage)
}

// ToInbound converts an update into an inbound message. Updates without a
// message (edits, callbacks, channel posts) are skipped. A message without
// text yields empty Text.
func ToInbound(update tgbotapi.Update) (domain.InboundMessage, bool) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return domain.InboundMessage{}, false
	}
	msg := domain.InboundMessage{
		UpdateID:   update.UpdateID,
		MessageID:  m.MessageID,
		ChatID:     domain.ChatIDFromInt(m.Chat.ID),
		Text:       m.Text,
		ReceivedAt: time.Unix(int64(m.Date), 0).UTC(),
	}
	if m.From != nil {
		msg.SenderID = strconv.FormatInt(m.From.ID, 10)
		msg.Username = m.From.UserName
	}
	return msg, true
}

// Dispatcher hands each new update to the turn handler on its own goroutine.
// A started turn is never cancelled from outside: it keeps the values of the
// context it was dispatched with but not its cancellation, so neither a
// webhook acknowledgement nor shutdown cuts a poll short. Wait drains them.
type Dispatcher struct {
	handler TurnHandler
	seen    *dedupe.Cache
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. seen may be nil to disable redelivery
// suppression.
func NewDispatcher(handler TurnHandler, seen *dedupe.Cache, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handler: handler,
		seen:    seen,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Dispatch starts a turn for update and reports whether one was started.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) bool {
	msg, ok := ToInbound(update)
	if !ok {
		return false
	}
	if d.seen != nil && d.seen.CheckAndMark(strconv.Itoa(update.UpdateID)) {
		d.logger.Info("Dropping redelivered update", "update_id", update.UpdateID, "chat_id", msg.ChatID)
		return false
	}

	turnCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handler.Handle(turnCtx, msg)
	}()
	return true
}

// Wait blocks until all dispatched turns have returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
