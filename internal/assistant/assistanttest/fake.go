// Package assistanttest provides an in-memory assistant.Client for tests.
package assistanttest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ashureev/threadrelay/internal/assistant"
	"github.com/ashureev/threadrelay/internal/domain"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected failure")

// Client is a scriptable fake of the remote assistant service.
// Statuses are returned from the Statuses script in order; once exhausted
// the last status repeats. Reply is returned by LatestMessage.
type Client struct {
	mu sync.Mutex

	Statuses []domain.RunStatus
	Reply    *assistant.Message

	FailCreateThread bool
	FailDeleteThread bool
	FailAppend       bool
	FailCreateRun    bool
	FailGetRun       bool
	FailList         bool

	threadSeq int
	runSeq    int
	statusPos int

	CreatedThreads []string
	DeletedThreads []string
	Appended       []AppendCall
	Runs           []RunCall
	GetRunCalls    int
	ListCalls      int
}

// AppendCall records one AppendMessage.
type AppendCall struct {
	ThreadID string
	Text     string
}

// RunCall records one CreateRun.
type RunCall struct {
	ThreadID    string
	AssistantID string
	RunID       string
}

// NewClient returns a fake whose runs complete on the first check with the
// given reply text.
func NewClient(reply string) *Client {
	return &Client{
		Statuses: []domain.RunStatus{domain.RunStatusCompleted},
		Reply: &assistant.Message{
			ID:      "msg_1",
			Role:    "assistant",
			Content: []assistant.ContentSegment{{Type: assistant.ContentTypeText, Text: reply}},
		},
	}
}

// CreateThread implements assistant.Client.
func (c *Client) CreateThread(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCreateThread {
		return "", ErrInjected
	}
	c.threadSeq++
	id := fmt.Sprintf("thread_%d", c.threadSeq)
	c.CreatedThreads = append(c.CreatedThreads, id)
	return id, nil
}

// DeleteThread implements assistant.Client.
func (c *Client) DeleteThread(_ context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DeletedThreads = append(c.DeletedThreads, threadID)
	if c.FailDeleteThread {
		return ErrInjected
	}
	return nil
}

// AppendMessage implements assistant.Client.
func (c *Client) AppendMessage(_ context.Context, threadID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailAppend {
		return ErrInjected
	}
	c.Appended = append(c.Appended, AppendCall{ThreadID: threadID, Text: text})
	return nil
}

// CreateRun implements assistant.Client.
func (c *Client) CreateRun(_ context.Context, threadID, assistantID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCreateRun {
		return "", ErrInjected
	}
	c.runSeq++
	id := fmt.Sprintf("run_%d", c.runSeq)
	c.Runs = append(c.Runs, RunCall{ThreadID: threadID, AssistantID: assistantID, RunID: id})
	return id, nil
}

// GetRun implements assistant.Client.
func (c *Client) GetRun(_ context.Context, _, _ string) (domain.RunStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetRunCalls++
	if c.FailGetRun {
		return "", ErrInjected
	}
	if len(c.Statuses) == 0 {
		return domain.RunStatusCompleted, nil
	}
	status := c.Statuses[c.statusPos]
	if c.statusPos < len(c.Statuses)-1 {
		c.statusPos++
	}
	return status, nil
}

// LatestMessage implements assistant.Client.
func (c *Client) LatestMessage(_ context.Context, _ string) (*assistant.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ListCalls++
	if c.FailList {
		return nil, ErrInjected
	}
	return c.Reply, nil
}

// Counts returns a snapshot of call counters.
func (c *Client) Counts() (created, deleted, appended, runs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.CreatedThreads), len(c.DeletedThreads), len(c.Appended), len(c.Runs)
}

var _ assistant.Client = (*Client)(nil)
