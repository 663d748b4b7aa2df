package transcript

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerWritesPerChatNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 16}, slog.Default())
	require.NoError(t, err)

	logger.Log(Event{TurnID: "t1", ChatID: "42", Direction: DirectionInbound, EventType: EventUserMessage, Content: "hello"})
	logger.Log(Event{TurnID: "t1", ChatID: "42", ThreadID: "thread_1", Direction: DirectionOutbound, EventType: EventReply, Outcome: "completed", Content: "hi"})
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "42.ndjson"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "hi", got.Content)
	assert.Equal(t, "thread_1", got.ThreadID)
	assert.Equal(t, "completed", got.Outcome)
	assert.False(t, got.Time.IsZero())
}

func TestLogAfterCloseIsIgnored(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Enabled: true, Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	assert.NotPanics(t, func() { logger.Log(Event{ChatID: "1"}) })
}

func TestDisabledIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, logger)
}

func TestFileNameCannotEscapeDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-100123.ndjson", fileName("-100123"))
	assert.Equal(t, "___etc_passwd.ndjson", fileName("../etc/passwd"))
	assert.Equal(t, "unknown.ndjson", fileName(""))
}
