package biz

import (
	"context"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/medreport/pkg/llm"
)

// maxSafetyInput 送检文本的最大字符数。
const maxSafetyInput = 3000

// SafetyVerdict 内容安全检查结果。
type SafetyVerdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

// SafetyConfig 安全检查调用配置。
type SafetyConfig struct {
	Temperature float64
	MaxTokens   int
}

// DefaultSafetyConfig 返回默认安全检查配置。
func DefaultSafetyConfig() *SafetyConfig {
	return &SafetyConfig{Temperature: 0.1, MaxTokens: 100}
}

// SafetyClassifier 基于 Llama Guard 类模型的内容安全检查。
// 调用失败或回复无法识别时一律放行。
type SafetyClassifier struct {
	provider llm.ChatProvider
	config   *SafetyConfig
}

// NewSafetyClassifier 创建安全检查器。
func NewSafetyClassifier(provider llm.ChatProvider, config *SafetyConfig) *SafetyClassifier {
	if config == nil {
		config = DefaultSafetyConfig()
	}
	return &SafetyClassifier{provider: provider, config: config}
}

// Classify 检查文本是否安全。
func (c *SafetyClassifier) Classify(ctx context.Context, text string, opts ...llm.GenerateOption) SafetyVerdict {
	if c == nil || c.provider == nil {
		return SafetyVerdict{Safe: true}
	}

	callOpts := []llm.GenerateOption{
		llm.WithTemperature(c.config.Temperature),
		llm.WithMaxTokens(c.config.MaxTokens),
	}
	callOpts = append(callOpts, opts...)

	resp, err := c.provider.Generate(ctx, safetyPromptPrefix+truncateRunes(text, maxSafetyInput), safetySystemPrompt, callOpts...)
	if err != nil {
		logger.Warnw("safety check failed, failing open", "error", err.Error(), "stage", "safety")
		return SafetyVerdict{Safe: true}
	}

	return parseVerdict(resp.Content)
}

func parseVerdict(content string) SafetyVerdict {
	reply := strings.ToUpper(strings.TrimSpace(content))
	switch {
	case strings.HasPrefix(reply, "UNSAFE"):
		reason := strings.TrimSpace(strings.TrimLeft(strings.TrimPrefix(reply, "UNSAFE"), " :-\n\t"))
		logger.Infow("safety check blocked content", "reason", reason, "stage", "safety")
		return SafetyVerdict{Safe: false, Reason: reason}
	case strings.HasPrefix(reply, "SAFE"):
		return SafetyVerdict{Safe: true}
	default:
		logger.Warnw("safety check returned an unexpected reply, failing open", "reply_length", len(reply), "stage", "safety")
		return SafetyVerdict{Safe: true}
	}
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
