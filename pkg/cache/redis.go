package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	redisopts "github.com/kart-io/medreport/pkg/options/redis"
)

// RedisStore is the production Store.
type RedisStore struct {
	client *goredis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis. An unreachable server is logged, not
// returned: the pipeline treats every cache failure as a miss, and go-redis
// reconnects on its own once the server is back.
func NewRedisStore(ctx context.Context, opts *redisopts.Options) (*RedisStore, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warnw("redis unreachable at startup", "addr", opts.Addr(), "error", err.Error())
	} else {
		logger.Infow("redis connected", "addr", opts.Addr(), "database", opts.Database)
	}

	return NewRedisStoreFromClient(rdb), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Close() error { return s.client.Close() }

// Client returns the underlying go-redis client.
func (s *RedisStore) Client() *goredis.Client { return s.client }
