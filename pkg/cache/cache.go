// Package cache provides the key-value stores behind the result and pattern
// caches. Values are opaque bytes; callers own serialization.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"

	cacheopts "github.com/kart-io/medreport/pkg/options/cache"
)

var (
	// ErrMiss is returned by Get when the key does not exist or has expired.
	ErrMiss = errors.New("cache: miss")

	// ErrDisabled is returned by Ping on a disabled store.
	ErrDisabled = errors.New("cache: disabled")
)

// Store is a network- or memory-backed key-value store with expiry.
type Store interface {
	// Get returns the value of key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key for ttl. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	// Name identifies the backend in logs and probes.
	Name() string
	// Close releases the underlying connections.
	Close() error
}

// New builds the store selected by opts.
func New(ctx context.Context, opts *cacheopts.Options) (Store, error) {
	if opts == nil || !opts.Enabled {
		logger.Infow("cache disabled, every lookup will miss")
		return Disabled{}, nil
	}

	switch opts.Backend {
	case cacheopts.BackendMemory:
		s := NewMemoryStore()
		s.StartSweeper(opts.SweepInterval)
		return s, nil
	case cacheopts.BackendRedis, "":
		return NewRedisStore(ctx, opts.Redis)
	default:
		return nil, errors.New("cache: unknown backend " + opts.Backend)
	}
}

// Disabled is the store used when caching is turned off.
type Disabled struct{}

var _ Store = Disabled{}

func (Disabled) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (Disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Disabled) Ping(context.Context) error { return ErrDisabled }

func (Disabled) Name() string { return "disabled" }

func (Disabled) Close() error { return nil }

// IsDisabled reports whether s is the disabled store.
func IsDisabled(s Store) bool {
	_, ok := s.(Disabled)
	return ok
}
