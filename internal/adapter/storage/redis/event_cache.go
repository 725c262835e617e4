package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// AppliedEventCache implements ports.AppliedEventCache.
// It only short-circuits repeat deliveries; the stripe_events ledger stays authoritative.
type AppliedEventCache struct {
	client *goredis.Client
	prefix string
}

// NewAppliedEventCache creates a new Redis-backed event cache.
func NewAppliedEventCache(client *goredis.Client) *AppliedEventCache {
	return &AppliedEventCache{
		client: client,
		prefix: "stripe_event:",
	}
}

// WasHandled reports whether the event id was marked handled and has not expired.
func (c *AppliedEventCache) WasHandled(ctx context.Context, eventID string) (bool, error) {
	_, err := c.client.Get(ctx, c.prefix+eventID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis event cache get: %w", err)
	}
	return true, nil
}

// MarkHandled records the event id with a TTL.
func (c *AppliedEventCache) MarkHandled(ctx context.Context, eventID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+eventID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis event cache set: %w", err)
	}
	return nil
}
