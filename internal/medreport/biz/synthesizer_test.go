package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternSynthesizer_GeneratesAndCaches(t *testing.T) {
	c, store := newMemoryCache()
	provider := replyWith("```json\n{\"regex\": \"([A-Z]+):\\\\s*(\\\\d+)\"}\n```", nil)
	s := NewPatternSynthesizer(provider, c, nil)
	ctx := context.Background()

	p, source := s.Synthesize(ctx, blockB1)
	assert.Equal(t, PatternSourceLLM, source)
	assert.Equal(t, `([A-Z]+):\s*(\d+)`, p.Regex)
	assert.Equal(t, []string{"pattern:" + HashText(blockB1)}, store.Keys())

	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], blockB1)
	assert.Contains(t, provider.prompts[0], `"EXAME: valor"`)
	assert.True(t, provider.LastOptions().JSONMode)

	// 第二次命中缓存，不再调用 LLM
	p2, source := s.Synthesize(ctx, blockB1)
	assert.Equal(t, PatternSourceCache, source)
	assert.Equal(t, p, p2)
	assert.Equal(t, 1, provider.Calls())
}

func TestPatternSynthesizer_ReasoningWrappedReply(t *testing.T) {
	c, _ := newMemoryCache()
	provider := replyWith("<think>look at the units</think>\nHere it is: {\"rules\": [\"name before colon\"], \"format\": \"NAME: value\"} done", nil)

	p, source := NewPatternSynthesizer(provider, c, nil).Synthesize(context.Background(), blockB2)
	assert.Equal(t, PatternSourceLLM, source)
	assert.Equal(t, []string{"name before colon"}, p.Rules)
	assert.Equal(t, "NAME: value", p.Format)
}

func TestPatternSynthesizer_FailuresUseFallbackAndAreNotCached(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
	}{
		{"transport error", replyWith("", errors.New("ollama: status 502"))},
		{"not json", replyWith("I cannot help with that.", nil)},
		{"empty object", replyWith("{}", nil)},
		{"wrong shape", replyWith(`{"rules": "not a list"}`, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newMemoryCache()
			s := NewPatternSynthesizer(tt.provider, c, nil)

			p, source := s.Synthesize(context.Background(), blockB1)
			assert.Equal(t, PatternSourceFallback, source)
			assert.Equal(t, FallbackPattern(), p)
			assert.Zero(t, store.Len())

			// 未缓存失败结果，下一次会重新尝试
			_, _ = s.Synthesize(context.Background(), blockB1)
			assert.Equal(t, 2, tt.provider.Calls())
		})
	}
}

func TestPatternSynthesizer_CacheErrorStillSynthesizes(t *testing.T) {
	provider := replyWith(`{"regex": "(\\w+)"}`, nil)
	s := NewPatternSynthesizer(provider, NewResultCache(failingStore{}, DefaultResultCacheConfig()), nil)

	p, source := s.Synthesize(context.Background(), blockB1)
	assert.Equal(t, PatternSourceLLM, source)
	assert.Equal(t, `(\w+)`, p.Regex)
}

func TestPatternSynthesizer_NoProvider(t *testing.T) {
	p, source := NewPatternSynthesizer(nil, nil, nil).Synthesize(context.Background(), blockB1)
	assert.Equal(t, PatternSourceFallback, source)
	assert.Equal(t, FallbackRegex, p.Regex)
}

func TestPatternSynthesizer_Options(t *testing.T) {
	temp := 0.2
	provider := replyWith(`{"regex": "x"}`, nil)
	NewPatternSynthesizer(provider, nil, &PatternSynthesizerConfig{Temperature: &temp, MaxTokens: 300}).
		Synthesize(context.Background(), blockB1)

	o := provider.LastOptions()
	require.NotNil(t, o.Temperature)
	assert.InDelta(t, 0.2, *o.Temperature, 1e-9)
	assert.Equal(t, 300, o.MaxTokens)
}
