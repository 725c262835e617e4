package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TokenDenylist implements ports.TokenDenylist using Redis SET NX.
type TokenDenylist struct {
	client *goredis.Client
	prefix string
}

// NewTokenDenylist creates a new Redis-backed token denylist.
func NewTokenDenylist(client *goredis.Client) *TokenDenylist {
	return &TokenDenylist{
		client: client,
		prefix: "revoked_token:",
	}
}

// Revoke denies a token id until ttl elapses. Revoking twice is a no-op.
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	err := d.client.SetArgs(ctx, d.prefix+tokenID, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis token revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id is denied.
func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis token lookup: %w", err)
	}
	return n > 0, nil
}
