package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps pending reconciliations in Redis so they survive a
// process restart and expire natively via key TTLs.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed pending store and verifies the
// connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: "pending:", ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Put stores a pending reconciliation under the store's TTL.
func (s *RedisStore) Put(ctx context.Context, id string, p Pending) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending reconciliation: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save pending reconciliation: %w", err)
	}
	return nil
}

// Take atomically removes and returns the entry. Unknown, consumed, and
// expired ids all map to ErrNotFound.
func (s *RedisStore) Take(ctx context.Context, id string) (Pending, error) {
	raw, err := s.client.GetDel(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return Pending{}, ErrNotFound
	}
	if err != nil {
		return Pending{}, fmt.Errorf("take pending reconciliation: %w", err)
	}
	var p Pending
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Pending{}, fmt.Errorf("unmarshal pending reconciliation: %w", err)
	}
	return p, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
