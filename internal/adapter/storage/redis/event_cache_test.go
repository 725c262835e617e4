package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppliedEventCache_MarkAndCheck(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewAppliedEventCache(client)
	ctx := context.Background()

	handled, err := cache.WasHandled(ctx, "evt_123")
	require.NoError(t, err)
	assert.False(t, handled)

	require.NoError(t, cache.MarkHandled(ctx, "evt_123", 72*time.Hour))

	handled, err = cache.WasHandled(ctx, "evt_123")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, s.Exists("stripe_event:evt_123"))
}

func TestAppliedEventCache_TTLExpiry(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewAppliedEventCache(client)
	ctx := context.Background()

	require.NoError(t, cache.MarkHandled(ctx, "evt_456", time.Second))

	s.FastForward(2 * time.Second)

	handled, err := cache.WasHandled(ctx, "evt_456")
	require.NoError(t, err)
	assert.False(t, handled, "expired entry should not short-circuit")
}

func TestAppliedEventCache_Unavailable(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewAppliedEventCache(client)
	s.Close()

	_, err := cache.WasHandled(context.Background(), "evt_789")
	assert.Error(t, err)
	assert.Error(t, cache.MarkHandled(context.Background(), "evt_789", time.Minute))
}
