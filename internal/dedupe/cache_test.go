package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark(t *testing.T) {
	t.Parallel()
	c := New(time.Minute, 10)

	assert.False(t, c.CheckAndMark("1"))
	assert.True(t, c.CheckAndMark("1"))
	assert.False(t, c.CheckAndMark("2"))
	assert.Equal(t, 2, c.Len())
}

func TestEntriesExpire(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	c := New(time.Minute, 10)
	c.now = func() time.Time { return now }

	assert.False(t, c.CheckAndMark("1"))
	now = now.Add(2 * time.Minute)
	assert.False(t, c.CheckAndMark("1"))
	assert.Equal(t, 1, c.Len())
}

func TestOldestEvictedAtCapacity(t *testing.T) {
	t.Parallel()
	c := New(time.Hour, 2)

	c.CheckAndMark("a")
	c.CheckAndMark("b")
	c.CheckAndMark("c")

	assert.Equal(t, 2, c.Len())
	assert.False(t, c.CheckAndMark("a"), "a should have been evicted")
}
