package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/threadrelay/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces binding keys in a shared Redis.
const DefaultRedisKeyPrefix = "threadrelay:binding:"

// RedisConfig configures the Redis binding store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore implements BindingStore on top of Redis string keys.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed binding store.
func NewRedis(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(chatID domain.ChatID) string {
	return s.prefix + string(chatID)
}

// Get returns the thread bound to chatID.
func (s *RedisStore) Get(ctx context.Context, chatID domain.ChatID) ThreadLookup {
	threadID, err := s.client.Get(ctx, s.key(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return classify("", ErrBindingNotFound)
	}
	if err != nil {
		return classify("", unavailable("redis get", err))
	}
	return classify(threadID, nil)
}

// Put stores the binding without expiry.
func (s *RedisStore) Put(ctx context.Context, chatID domain.ChatID, threadID string) error {
	if err := s.client.Set(ctx, s.key(chatID), threadID, 0).Err(); err != nil {
		return unavailable("redis set", err)
	}
	return nil
}

// Delete removes the binding key.
func (s *RedisStore) Delete(ctx context.Context, chatID domain.ChatID) error {
	if err := s.client.Del(ctx, s.key(chatID)).Err(); err != nil {
		return unavailable("redis del", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("redis ping", err)
	}
	return nil
}

// Close closes the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ BindingStore = (*RedisStore)(nil)
