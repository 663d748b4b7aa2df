// Package assistant drives conversations on a remote assistant service:
// thread lifecycle and run submission/polling.
package assistant

import (
	"context"
	"strings"

	"github.com/ashureev/threadrelay/internal/domain"
)

// Client defines the remote assistant service operations threadrelay consumes.
// This interface is implemented by the OpenAI client.
type Client interface {
	// CreateThread allocates a new conversation thread.
	CreateThread(ctx context.Context) (string, error)

	// DeleteThread removes a conversation thread.
	DeleteThread(ctx context.Context, threadID string) error

	// AppendMessage adds a user message to a thread.
	AppendMessage(ctx context.Context, threadID, text string) error

	// CreateRun starts a run of the given assistant on a thread.
	CreateRun(ctx context.Context, threadID, assistantID string) (string, error)

	// GetRun returns the current status of a run.
	GetRun(ctx context.Context, threadID, runID string) (domain.RunStatus, error)

	// LatestMessage returns the most recent message on a thread, or nil if
	// the thread has none.
	LatestMessage(ctx context.Context, threadID string) (*Message, error)
}

// ContentTypeText marks a text content segment.
const ContentTypeText = "text"

// Message is a thread message as returned by the assistant service.
type Message struct {
	ID      string
	Role    string
	Content []ContentSegment
}

// ContentSegment is one part of a message. Text is only set for text segments.
type ContentSegment struct {
	Type string
	Text string
}

// PlainText concatenates all text segments in order. Non-text segments are
// skipped, so a message without text yields "".
func (m *Message) PlainText() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	for _, seg := range m.Content {
		if seg.Type == ContentTypeText {
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// Ensure OpenAIClient implements Client.
var _ Client = (*OpenAIClient)(nil)
