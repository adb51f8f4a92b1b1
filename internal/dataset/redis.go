package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps encoded tables in Redis so several server processes share one
// derivation per content key.
type RedisStore struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: client, Prefix: "triplebillion:table:", TTL: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Table, bool, error) {
	b, err := s.Client.Get(ctx, s.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	t, err := DecodeTable(b)
	if err != nil {
		return nil, false, err
	}
	if t.Key() != key {
		return nil, false, fmt.Errorf("redis get: key mismatch for %s", key)
	}
	return t, true, nil
}

func (s *RedisStore) Put(ctx context.Context, t *Table) error {
	b, err := EncodeTable(t)
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, s.Prefix+t.Key(), b, s.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
