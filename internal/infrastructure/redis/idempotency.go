package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyStore marks request keys in Redis so duplicate submissions of
// the same operation are rejected while the key lives.
type IdempotencyStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(addr string, ttl time.Duration) *IdempotencyStore {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Begin claims the key. It returns false when the key was already claimed.
func (s *IdempotencyStore) Begin(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, "idem:"+key, "1", s.ttl).Result()
}

// Release frees the key early, allowing the operation to be retried before
// the TTL expires.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, "idem:"+key).Err()
}

func (s *IdempotencyStore) Close() error {
	return s.client.Close()
}
