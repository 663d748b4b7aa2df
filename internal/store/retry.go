package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/threadrelay/internal/domain"
)

const (
	busyMaxRetries = 3
	busyBaseDelay  = 100 * time.Millisecond
)

// isSQLiteConflict reports whether err is a SQLITE_BUSY or
// "database is locked" error. Both are worth retrying.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withBusyRetry runs fn, retrying SQLite lock conflicts with exponential
// backoff (100ms, 200ms). Other errors are returned immediately.
func withBusyRetry(ctx context.Context, op string, chatID domain.ChatID, fn func() error) error {
	var err error
	for i := 0; i < busyMaxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isSQLiteConflict(err) || i == busyMaxRetries-1 {
			break
		}

		delay := busyBaseDelay * time.Duration(1<<i)
		slog.Debug("SQLite busy, retrying",
			"op", op,
			"chat_id", chatID,
			"attempt", i+1,
			"delay", delay)

		select {
		case <-ctx.Done():
			return unavailable(op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return unavailable(fmt.Sprintf("%s for %s", op, chatID), err)
}
