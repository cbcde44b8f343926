package cache

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects to the test database and skips when Redis is unavailable.
func setupTestRedis(t *testing.T) *RedisStore {
	client := goredis.NewClient(&goredis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("redis unavailable, skipping")
	}
	client.FlushDB(ctx)

	s := NewRedisStoreFromClient(client)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_GetSet(t *testing.T) {
	s := setupTestRedis(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "pdf:missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "pdf:abc", []byte(`{"summary":"ok"}`), time.Hour))
	got, err := s.Get(ctx, "pdf:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"ok"}`, string(got))

	ttl, err := s.Client().TTL(ctx, "pdf:abc").Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)
}

func TestRedisStore_Unreachable(t *testing.T) {
	s := NewRedisStoreFromClient(goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}))
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	_, err := s.Get(ctx, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
	assert.Error(t, s.Ping(ctx))
}
