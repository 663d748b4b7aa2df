// Package transcript writes per-chat NDJSON logs of conversation turns.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Event types.
const (
	EventUserMessage = "user_message"
	EventGreeting    = "greeting"
	EventReset       = "reset"
	EventReply       = "reply"
	EventError       = "error"
)

// Event is one line of a chat transcript.
type Event struct {
	Time      time.Time `json:"time"`
	TurnID    string    `json:"turn_id"`
	ChatID    string    `json:"chat_id"`
	MessageID int       `json:"message_id,omitempty"`
	SenderID  string    `json:"sender_id,omitempty"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Direction string    `json:"direction"`
	EventType string    `json:"event_type"`
	Outcome   string    `json:"outcome,omitempty"`
	Content   string    `json:"content"`
}

// Logger records transcript events. Log must not block the caller.
type Logger interface {
	Log(event Event)
	Close() error
}

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Noop discards every event.
type Noop struct{}

// Log implements Logger.
func (Noop) Log(Event) {}

// Close implements Logger.
func (Noop) Close() error { return nil }

// FileLogger appends events to <Dir>/<chat_id>.ndjson from a single writer
// goroutine. Events are dropped when the queue is full.
type FileLogger struct {
	dir    string
	queue  chan Event
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
	mu        sync.Mutex
	closed    bool
}

// New returns a FileLogger, or Noop when logging is disabled.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("transcript directory is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	l := &FileLogger{
		dir:    cfg.Dir,
		queue:  make(chan Event, cfg.QueueSize),
		logger: logger.With("component", "transcript"),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues event.
func (l *FileLogger) Log(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("Transcript queue full, dropping event", "chat_id", event.ChatID, "event_type", event.EventType)
	}
}

// Close flushes queued events and stops the writer.
func (l *FileLogger) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
		<-l.done
	})
	return nil
}

func (l *FileLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("Failed to write transcript event", "chat_id", event.ChatID, "error", err)
		}
	}
}

func (l *FileLogger) write(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	path := filepath.Join(l.dir, fileName(event.ChatID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

// fileName maps a chat id to a file name that cannot escape the directory.
func fileName(chatID string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, chatID)
	if clean == "" {
		clean = "unknown"
	}
	return clean + ".ndjson"
}
