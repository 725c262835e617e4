package redis

import (
	"context"
	"strconv"
	"testing"

	"donation-payments/config"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	host, port := s.Host(), mustPort(t, s)

	client, err := NewClient(context.Background(), config.RedisConfig{Host: host, Port: port}, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	host, port := s.Host(), mustPort(t, s)
	s.Close()

	_, err := NewClient(context.Background(), config.RedisConfig{Host: host, Port: port}, zerolog.Nop())
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	s, client := newTestClient(t)
	hc := NewHealthCheck(client)

	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))

	s.Close()
	assert.Error(t, hc.Ping(context.Background()))
}

func mustPort(t *testing.T, s *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	return port
}
