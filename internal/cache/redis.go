package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyGrace keeps entries around past their logical expiry so Status can
// still report an expired entry before Redis reaps the key.
const redisKeyGrace = time.Minute

// RedisBackend stores cache entries in Redis so several dashboard processes
// can share one result cache. The entry's own ExpiresAt stays authoritative;
// the Redis key TTL is only a janitor.
type RedisBackend struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisBackend creates a Redis-backed cache store.
func NewRedisBackend(client redis.Cmdable) (*RedisBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &RedisBackend{client: client, now: time.Now}, nil
}

// Set stores an entry as a JSON envelope.
func (r *RedisBackend) Set(ctx context.Context, key string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	ttl := entry.ExpiresAt.Sub(r.now()) + redisKeyGrace
	if ttl <= 0 {
		ttl = redisKeyGrace
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

// Get retrieves an entry. A missing key is a miss, not an error.
func (r *RedisBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get from redis: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &entry, true, nil
}

// Delete removes a key.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// DeleteByPrefix removes all keys starting with the prefix.
func (r *RedisBackend) DeleteByPrefix(ctx context.Context, prefix string) error {
	keys, err := r.client.Keys(ctx, prefix+"*").Result()
	if err != nil {
		return fmt.Errorf("failed to list redis keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
