package store

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/containerd/errdefs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/threadrelay/internal/domain"
)

// deadAddr returns an address nothing is listening on.
func deadAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func TestRedisKeyPrefix(t *testing.T) {
	t.Parallel()

	s := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "")
	t.Cleanup(func() { _ = s.Close() })
	assert.Equal(t, DefaultRedisKeyPrefix+"42", s.key(domain.ChatID("42")))

	custom := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "bot:")
	t.Cleanup(func() { _ = custom.Close() })
	assert.Equal(t, "bot:-100", custom.key(domain.ChatID("-100")))
}

func TestRedisUnreachableIsTransportError(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        deadAddr(t),
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	s := NewRedisWithClient(client, "")
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	lookup := s.Get(ctx, domain.ChatID("1"))
	assert.Equal(t, LookupTransportError, lookup.State)
	assert.True(t, errdefs.IsUnavailable(lookup.Err))

	assert.True(t, errdefs.IsUnavailable(s.Put(ctx, domain.ChatID("1"), "thread_1")))
	assert.True(t, errdefs.IsUnavailable(s.Delete(ctx, domain.ChatID("1"))))
	assert.True(t, errdefs.IsUnavailable(s.Ping(ctx)))
}

func TestNewRedisRequiresAddr(t *testing.T) {
	t.Parallel()
	_, err := NewRedis(RedisConfig{})
	assert.Error(t, err)
}

func newMiniRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedis(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisPutGetDelete(t *testing.T) {
	t.Parallel()
	s, mr := newMiniRedisStore(t)
	ctx := context.Background()
	chat := domain.ChatID("42")

	lookup := s.Get(ctx, chat)
	assert.Equal(t, LookupAbsent, lookup.State)
	assert.NoError(t, lookup.Err)

	require.NoError(t, s.Put(ctx, chat, "thread_1"))
	lookup = s.Get(ctx, chat)
	assert.Equal(t, LookupFound, lookup.State)
	assert.Equal(t, "thread_1", lookup.ThreadID)

	raw, err := mr.Get(DefaultRedisKeyPrefix + "42")
	require.NoError(t, err)
	assert.Equal(t, "thread_1", raw)
	assert.Zero(t, mr.TTL(DefaultRedisKeyPrefix+"42"))

	require.NoError(t, s.Put(ctx, chat, "thread_2"))
	assert.Equal(t, "thread_2", s.Get(ctx, chat).ThreadID)

	require.NoError(t, s.Delete(ctx, chat))
	assert.Equal(t, LookupAbsent, s.Get(ctx, chat).State)
	assert.False(t, mr.Exists(DefaultRedisKeyPrefix+"42"))

	require.NoError(t, s.Delete(ctx, chat))
	require.NoError(t, s.Ping(ctx))
}

func TestRedisServerGoingAwayIsTransportError(t *testing.T) {
	t.Parallel()
	s, mr := newMiniRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, domain.ChatID("1"), "thread_1"))

	mr.Close()

	lookup := s.Get(ctx, domain.ChatID("1"))
	assert.Equal(t, LookupTransportError, lookup.State)
	assert.True(t, errdefs.IsUnavailable(lookup.Err))
}
