package cache

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, "pdf:", o.ResultPrefix)
	assert.Equal(t, "pattern:", o.PatternPrefix)
	assert.Equal(t, time.Hour, o.ResultTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"max ttl", func(o *Options) { o.ResultTTL = 168 * time.Hour }, false},
		{"ttl too short", func(o *Options) { o.ResultTTL = 30 * time.Minute }, true},
		{"ttl too long", func(o *Options) { o.ResultTTL = 169 * time.Hour }, true},
		{"unknown backend", func(o *Options) { o.Backend = "memcached" }, true},
		{"memory backend", func(o *Options) { o.Backend = BackendMemory; o.Redis.Host = "" }, false},
		{"equal prefixes", func(o *Options) { o.PatternPrefix = "pdf:" }, true},
		{"negative sweep interval", func(o *Options) { o.SweepInterval = -time.Second }, true},
		{"bad redis port", func(o *Options) { o.Redis.Port = 0 }, true},
		{"disabled skips checks", func(o *Options) { o.Enabled = false; o.ResultTTL = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			if tt.wantErr {
				assert.NotEmpty(t, o.Validate())
			} else {
				assert.Empty(t, o.Validate())
			}
		})
	}
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--cache.backend=memory", "--cache.result-ttl=24h", "--redis.port=6380"}))
	assert.Equal(t, BackendMemory, o.Backend)
	assert.Equal(t, 24*time.Hour, o.ResultTTL)
	assert.Equal(t, 6380, o.Redis.Port)
}

func TestCompleteReadsRedisPassword(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "s3cret")
	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "s3cret", o.Redis.Password)
	assert.NotContains(t, o.Redis.String(), "s3cret")
}
