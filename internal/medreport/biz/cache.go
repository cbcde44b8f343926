package biz

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/medreport/pkg/cache"
	"github.com/kart-io/medreport/pkg/utils/json"
)

// ResultCacheConfig 缓存配置。
type ResultCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// ResultTTL 最终结果过期时间。
	ResultTTL time.Duration
	// PatternTTL 提取模式过期时间。
	PatternTTL time.Duration
	// ResultPrefix 最终结果键前缀。
	ResultPrefix string
	// PatternPrefix 提取模式键前缀。
	PatternPrefix string
}

// DefaultResultCacheConfig 返回默认缓存配置。
func DefaultResultCacheConfig() *ResultCacheConfig {
	return &ResultCacheConfig{
		Enabled:       true,
		ResultTTL:     time.Hour,
		PatternTTL:    time.Hour,
		ResultPrefix:  "pdf:",
		PatternPrefix: "pattern:",
	}
}

// ResultCache 内容寻址缓存，按用途分为结果与模式两个命名空间。
// 条目只创建或过期，从不原地更新。
type ResultCache struct {
	store  cache.Store
	config *ResultCacheConfig
}

// NewResultCache 创建缓存实例。store 为 nil 或配置禁用时所有读取都未命中。
func NewResultCache(store cache.Store, config *ResultCacheConfig) *ResultCache {
	if config == nil {
		config = DefaultResultCacheConfig()
	}
	if store == nil || !config.Enabled {
		store = cache.Disabled{}
	}
	return &ResultCache{store: store, config: config}
}

// Enabled 报告缓存是否实际生效。
func (c *ResultCache) Enabled() bool {
	return !cache.IsDisabled(c.store)
}

// Store 返回底层存储。
func (c *ResultCache) Store() cache.Store {
	return c.store
}

// ResultKey 返回结果命名空间下的键。
func (c *ResultCache) ResultKey(hash string) string {
	return c.config.ResultPrefix + hash
}

// PatternKey 返回模式命名空间下的键。
func (c *ResultCache) PatternKey(hash string) string {
	return c.config.PatternPrefix + hash
}

// GetResult 读取缓存的解读结果。未命中返回 (nil, nil)。
func (c *ResultCache) GetResult(ctx context.Context, hash string) (*AnalysisResult, error) {
	var result AnalysisResult
	ok, err := c.get(ctx, c.ResultKey(hash), &result)
	if !ok || err != nil {
		return nil, err
	}
	result.ensureLists()
	return &result, nil
}

// SetResult 写入解读结果。降级结果不会写入。
func (c *ResultCache) SetResult(ctx context.Context, hash string, result *AnalysisResult) error {
	if result == nil || result.Degraded() {
		return nil
	}
	return c.set(ctx, c.ResultKey(hash), result, c.config.ResultTTL)
}

// GetPattern 读取缓存的提取模式。未命中返回 (nil, nil)。
func (c *ResultCache) GetPattern(ctx context.Context, hash string) (*ExtractionPattern, error) {
	var p ExtractionPattern
	ok, err := c.get(ctx, c.PatternKey(hash), &p)
	if !ok || err != nil {
		return nil, err
	}
	if p.IsZero() {
		return nil, nil
	}
	return &p, nil
}

// SetPattern 写入提取模式。
func (c *ResultCache) SetPattern(ctx context.Context, hash string, p ExtractionPattern) error {
	if p.IsZero() {
		return nil
	}
	return c.set(ctx, c.PatternKey(hash), p, c.config.PatternTTL)
}

func (c *ResultCache) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			logger.Debugw("cache miss", "key", shortKey(key))
			return false, nil
		}
		logger.Warnw("failed to get from cache", "error", err.Error(), "key", shortKey(key), "stage", "cache")
		return false, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		// 损坏的条目按未命中处理，等待自然过期
		logger.Warnw("failed to unmarshal cached value", "error", err.Error(), "key", shortKey(key), "stage", "cache")
		return false, nil
	}

	logger.Infow("cache hit", "key", shortKey(key), "size", len(data))
	return true, nil
}

func (c *ResultCache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warnw("failed to marshal value for caching", "error", err.Error(), "stage", "cache")
		return err
	}

	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		logger.Warnw("failed to set cache", "error", err.Error(), "key", shortKey(key), "stage", "cache")
		return err
	}

	logger.Infow("cached value", "key", shortKey(key), "ttl", ttl.String())
	return nil
}

// shortKey 日志中只保留前缀和哈希的前 12 位。
func shortKey(key string) string {
	const keep = 12
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			if len(key)-i-1 > keep {
				return key[:i+1+keep]
			}
			return key
		}
	}
	return key
}
