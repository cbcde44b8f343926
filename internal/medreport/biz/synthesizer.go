package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/medreport/pkg/llm"
	"github.com/kart-io/medreport/pkg/llm/llmjson"
)

// PatternSynthesizerConfig 模式生成配置。
type PatternSynthesizerConfig struct {
	// Temperature 采样温度，nil 表示使用供应商默认值。
	Temperature *float64
	// MaxTokens 最大生成 token 数，0 表示不限制。
	MaxTokens int
}

// PatternSynthesizer 根据样本块生成可复用的提取模式。
type PatternSynthesizer struct {
	provider llm.ChatProvider
	cache    *ResultCache
	config   *PatternSynthesizerConfig
}

// NewPatternSynthesizer 创建模式生成器。provider 为 nil 时总是返回降级模式。
func NewPatternSynthesizer(provider llm.ChatProvider, cache *ResultCache, config *PatternSynthesizerConfig) *PatternSynthesizer {
	if config == nil {
		config = &PatternSynthesizerConfig{}
	}
	if cache == nil {
		cache = NewResultCache(nil, nil)
	}
	return &PatternSynthesizer{provider: provider, cache: cache, config: config}
}

// Synthesize 返回样本块对应的提取模式及其来源。
// 先查 pattern: 缓存；未命中时调用 LLM，成功结果写入缓存；
// 任何失败都返回 FallbackPattern 且不写缓存。
func (s *PatternSynthesizer) Synthesize(ctx context.Context, sample string) (ExtractionPattern, PatternSource) {
	hash := HashText(sample)

	cached, err := s.cache.GetPattern(ctx, hash)
	if err == nil && cached != nil {
		logger.Infow("using cached extraction pattern", "sample_hash", hash[:12])
		return *cached, PatternSourceCache
	}

	p, err := s.generate(ctx, sample)
	if err != nil {
		logger.Warnw("pattern synthesis failed, using fallback pattern",
			"error", err.Error(),
			"stage", "synthesis",
			"sample_length", len(sample),
		)
		return FallbackPattern(), PatternSourceFallback
	}

	_ = detached(ctx, func(ctx context.Context) error {
		return s.cache.SetPattern(ctx, hash, p)
	})
	return p, PatternSourceLLM
}

func (s *PatternSynthesizer) generate(ctx context.Context, sample string) (ExtractionPattern, error) {
	if s.provider == nil {
		return ExtractionPattern{}, fmt.Errorf("no pattern provider configured")
	}

	opts := []llm.GenerateOption{llm.WithJSONMode()}
	if s.config.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*s.config.Temperature))
	}
	if s.config.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(s.config.MaxTokens))
	}

	start := time.Now()
	resp, err := s.provider.Generate(ctx, patternPrompt(sample), "", opts...)
	if err != nil {
		return ExtractionPattern{}, err
	}
	logger.Debugw("pattern generated", "provider", s.provider.Name(), "elapsed", time.Since(start).String())

	var p ExtractionPattern
	if err := llmjson.Decode(resp.Content, &p); err != nil {
		return ExtractionPattern{}, err
	}
	if p.IsZero() {
		return ExtractionPattern{}, fmt.Errorf("pattern has no regex, rules or format")
	}
	return p, nil
}

// cacheWriteTimeout 缓存写入的独立超时，不受请求截止时间影响。
const cacheWriteTimeout = 2 * time.Second

// detached 在不随请求取消的短超时上下文中执行 fn，供缓存写入使用。
func detached(ctx context.Context, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	return fn(c)
}
