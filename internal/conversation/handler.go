// Package conversation turns inbound chat messages into assistant runs and
// relays the outcome back to the chat.
package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/threadrelay/internal/domain"
	"github.com/ashureev/threadrelay/internal/store"
	"github.com/ashureev/threadrelay/internal/transcript"
)

// Fixed replies for command and failure turns.
const (
	ReplyGreeting = "Hello, I am ready!"
	ReplyReset    = "Great! Lets start a new conversation."
	ReplyError    = "Sorry, something went wrong. Please try again later."
)

const defaultTypingEvery = 4 * time.Second

// Relay delivers text to a chat.
type Relay interface {
	SendText(ctx context.Context, chatID domain.ChatID, text string) error
}

// Typer is implemented by relays that can show a "typing" indicator.
type Typer interface {
	SendTyping(ctx context.Context, chatID domain.ChatID) error
}

// ThreadManager creates and deletes remote threads.
type ThreadManager interface {
	Create(ctx context.Context) (string, error)
	Delete(ctx context.Context, threadID string)
}

// Runner drives one user message to a run outcome.
type Runner interface {
	Drive(ctx context.Context, threadID, text string) (domain.RunOutcome, error)
}

// Handler orchestrates one conversation turn per inbound message.
// It holds no per-chat state; the binding store is the source of truth.
type Handler struct {
	store      store.BindingStore
	threads    ThreadManager
	runner     Runner
	relay      Relay
	transcript transcript.Logger
	logger     *slog.Logger
	turnID     func() string

	typingEvery time.Duration
}

// NewHandler creates a conversation handler.
func NewHandler(bindings store.BindingStore, threads ThreadManager, runner Runner, relay Relay, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:      bindings,
		threads:    threads,
		runner:     runner,
		relay:      relay,
		transcript: transcript.Noop{},
		logger:     logger.With("component", "conversation"),
		turnID:     uuid.NewString,

		typingEvery: defaultTypingEvery,
	}
}

// SetTranscript records every turn to t.
func (h *Handler) SetTranscript(t transcript.Logger) {
	if t == nil {
		t = transcript.Noop{}
	}
	h.transcript = t
}

// turn carries the identifiers of one inbound message through its handling.
type turn struct {
	id       string
	chatID   domain.ChatID
	threadID string
	log      *slog.Logger
}

// Handle runs one turn. Every failure is resolved inside the turn, either
// as a logged no-op or as a reply to the chat.
func (h *Handler) Handle(ctx context.Context, msg domain.InboundMessage) {
	t := &turn{id: h.turnID(), chatID: msg.ChatID}
	t.log = h.logger.With("turn_id", t.id, "chat_id", msg.ChatID)
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("Turn panicked", "panic", r)
			h.reply(ctx, t, transcript.EventError, "", ReplyError)
		}
	}()

	t.log.Info("Inbound message",
		"update_id", msg.UpdateID,
		"message_id", msg.MessageID,
		"sender_id", msg.SenderID,
		"username", msg.Username,
		"text_len", len(msg.Text))
	h.transcript.Log(transcript.Event{
		Time:      msg.ReceivedAt,
		TurnID:    t.id,
		ChatID:    t.chatID.String(),
		MessageID: msg.MessageID,
		SenderID:  msg.SenderID,
		Direction: transcript.DirectionInbound,
		EventType: transcript.EventUserMessage,
		Content:   msg.Text,
	})

	if msg.Text == domain.CommandStart {
		h.reply(ctx, t, transcript.EventGreeting, "", ReplyGreeting)
		return
	}

	lookup := h.store.Get(ctx, msg.ChatID)
	switch lookup.State {
	case store.LookupFound:
		if msg.Text == domain.CommandRestart {
			h.reset(ctx, t, lookup.ThreadID)
			return
		}
		t.threadID = lookup.ThreadID
	default:
		if lookup.State == store.LookupTransportError {
			t.log.Warn("Session store lookup failed, starting a new thread", "error", lookup.Err)
		}
		newID, err := h.threads.Create(ctx)
		if err != nil {
			t.log.Error("Failed to create thread", "error", err)
			h.reply(ctx, t, transcript.EventError, "", ReplyError)
			return
		}
		if err := h.store.Put(ctx, msg.ChatID, newID); err != nil {
			t.log.Warn("Failed to save thread binding", "thread_id", newID, "error", err)
		}
		t.threadID = newID
	}
	t.log = t.log.With("thread_id", t.threadID)
	t.log.Info("Thread resolved", "lookup", lookup.State.String())

	stopTyping := h.keepTyping(ctx, t)
	outcome, err := h.runner.Drive(ctx, t.threadID, msg.Text)
	stopTyping()
	if err != nil {
		t.log.Error("Run failed", "error", err)
		h.reply(ctx, t, transcript.EventError, "", ReplyError)
		return
	}
	h.reply(ctx, t, transcript.EventReply, outcome.Kind.String(), outcome.Reply())
}

// reset tears down the chat's thread and binding. Both deletions are
// best-effort and no run is executed.
func (h *Handler) reset(ctx context.Context, t *turn, threadID string) {
	h.threads.Delete(ctx, threadID)
	if err := h.store.Delete(ctx, t.chatID); err != nil {
		t.log.Warn("Failed to delete thread binding", "thread_id", threadID, "error", err)
	}
	t.log.Info("Conversation reset", "thread_id", threadID)
	t.threadID = threadID
	h.reply(ctx, t, transcript.EventReset, "", ReplyReset)
}

func (h *Handler) reply(ctx context.Context, t *turn, eventType, outcome, text string) {
	h.transcript.Log(transcript.Event{
		TurnID:    t.id,
		ChatID:    t.chatID.String(),
		ThreadID:  t.threadID,
		Direction: transcript.DirectionOutbound,
		EventType: eventType,
		Outcome:   outcome,
		Content:   text,
	})
	if err := h.relay.SendText(ctx, t.chatID, text); err != nil {
		t.log.Warn("Failed to relay reply", "error", err)
	}
}

// keepTyping shows the typing indicator until stop is called. Telegram
// clears a chat action after about five seconds, so it is resent every
// typingEvery while the run is being driven.
func (h *Handler) keepTyping(ctx context.Context, t *turn) (stop func()) {
	typer, ok := h.relay.(Typer)
	if !ok {
		return func() {}
	}
	send := func() {
		if err := typer.SendTyping(ctx, t.chatID); err != nil {
			t.log.Debug("Failed to send typing indicator", "error", err)
		}
	}
	send()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(h.typingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				send()
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
