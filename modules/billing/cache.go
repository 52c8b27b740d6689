package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StatusCache stores recently computed subscription status. A cache miss is
// reported as (nil, nil): the caller falls through to the provider.
type StatusCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*StatusInfo, error)
	Set(ctx context.Context, userID uuid.UUID, info StatusInfo) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// RedisStatusCache caches status lookups in Redis so the hot path of the
// route guard does not hit the billing provider on every page load.
type RedisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatusCache creates a Redis-backed status cache.
func NewRedisStatusCache(client *redis.Client, ttl time.Duration) *RedisStatusCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStatusCache{client: client, ttl: ttl}
}

func statusKey(userID uuid.UUID) string {
	return "billing:status:" + userID.String()
}

func (c *RedisStatusCache) Get(ctx context.Context, userID uuid.UUID) (*StatusInfo, error) {
	data, err := c.client.Get(ctx, statusKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read status cache: %w", err)
	}

	var info StatusInfo
	if err := json.Unmarshal(data, &info); err != nil {
		// Treat a corrupt entry as a miss; it will be overwritten.
		return nil, nil
	}
	return &info, nil
}

func (c *RedisStatusCache) Set(ctx context.Context, userID uuid.UUID, info StatusInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := c.client.Set(ctx, statusKey(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write status cache: %w", err)
	}
	return nil
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, statusKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate status cache: %w", err)
	}
	return nil
}

// NoopStatusCache disables caching. Every status read goes to the provider.
type NoopStatusCache struct{}

func (NoopStatusCache) Get(context.Context, uuid.UUID) (*StatusInfo, error) { return nil, nil }
func (NoopStatusCache) Set(context.Context, uuid.UUID, StatusInfo) error    { return nil }
func (NoopStatusCache) Invalidate(context.Context, uuid.UUID) error         { return nil }
