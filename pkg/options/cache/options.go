// Package cache provides result and pattern cache options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/medreport/pkg/options"
	redisopts "github.com/kart-io/medreport/pkg/options/redis"
	"github.com/kart-io/medreport/pkg/validator"
)

var _ options.IOptions = (*Options)(nil)

const (
	// BackendRedis 生产环境使用的 Redis 存储。
	BackendRedis = "redis"
	// BackendMemory 单实例进程内存储，用于开发和测试。
	BackendMemory = "memory"
)

// Options 结果缓存与模式缓存配置。
type Options struct {
	// Enabled 是否启用缓存。关闭后查询总是未命中，写入为空操作。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Backend 存储后端（redis|memory）。
	Backend string `json:"backend" mapstructure:"backend" validate:"oneof=redis memory"`

	// ResultTTL 分析结果的过期时间。
	ResultTTL time.Duration `json:"result-ttl" mapstructure:"result-ttl" validate:"gte=1h,lte=168h"`

	// PatternTTL 提取模式的过期时间。
	PatternTTL time.Duration `json:"pattern-ttl" mapstructure:"pattern-ttl" validate:"gt=0"`

	// ResultPrefix 分析结果键前缀。
	ResultPrefix string `json:"result-prefix" mapstructure:"result-prefix" validate:"required"`

	// PatternPrefix 提取模式键前缀。
	PatternPrefix string `json:"pattern-prefix" mapstructure:"pattern-prefix" validate:"required"`

	// SweepInterval memory 后端清理过期条目的周期，0 表示只在访问时清理。
	SweepInterval time.Duration `json:"sweep-interval" mapstructure:"sweep-interval" validate:"gte=0"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis" validate:"-"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		Enabled:       true,
		Backend:       BackendRedis,
		ResultTTL:     time.Hour,
		PatternTTL:    time.Hour,
		ResultPrefix:  "pdf:",
		PatternPrefix: "pattern:",
		SweepInterval: 5 * time.Minute,
		Redis:         redisopts.NewOptions(),
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable the result and pattern cache.")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Cache backend (redis|memory).")
	fs.DurationVar(&o.ResultTTL, p+"result-ttl", o.ResultTTL, "TTL of cached analysis results, between 1h and 168h.")
	fs.DurationVar(&o.PatternTTL, p+"pattern-ttl", o.PatternTTL, "TTL of cached extraction patterns.")
	fs.StringVar(&o.ResultPrefix, p+"result-prefix", o.ResultPrefix, "Key prefix of cached analysis results.")
	fs.StringVar(&o.PatternPrefix, p+"pattern-prefix", o.PatternPrefix, "Key prefix of cached extraction patterns.")
	fs.DurationVar(&o.SweepInterval, p+"sweep-interval", o.SweepInterval, "How often the memory backend drops expired entries, 0 disables the sweeper.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, prefixes...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	errs := validator.Struct(o, "cache.")
	if o.ResultPrefix != "" && o.ResultPrefix == o.PatternPrefix {
		errs = append(errs, fmt.Errorf("cache.result-prefix and cache.pattern-prefix must differ, both are %q", o.ResultPrefix))
	}
	if o.Backend == BackendRedis && o.Redis != nil {
		errs = append(errs, o.Redis.Validate()...)
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
