package assistant

import (
	"context"
	"fmt"
	"log/slog"
)

// Threads manages the lifecycle of remote conversation threads.
type Threads struct {
	client Client
	logger *slog.Logger
}

// NewThreads creates a thread lifecycle manager.
func NewThreads(client Client, logger *slog.Logger) *Threads {
	if logger == nil {
		logger = slog.Default()
	}
	return &Threads{
		client: client,
		logger: logger.With("component", "threads"),
	}
}

// Create allocates a new remote thread. The turn cannot proceed without
// one, so the error is returned to the caller.
func (t *Threads) Create(ctx context.Context) (string, error) {
	threadID, err := t.client.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	t.logger.Info("New thread created", "thread_id", threadID)
	return threadID, nil
}

// Delete removes a remote thread. Failures are logged and swallowed because
// the local binding is removed regardless.
func (t *Threads) Delete(ctx context.Context, threadID string) {
	if err := t.client.DeleteThread(ctx, threadID); err != nil {
		t.logger.Error("Failed to delete thread", "thread_id", threadID, "error", err)
		return
	}
	t.logger.Info("Old thread deleted", "thread_id", threadID)
}
