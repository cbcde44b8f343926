// Package llm 提供统一的 LLM 供应商抽象层。
// 供应商在启动时按名称从注册表创建，运行期间不再切换。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行多轮对话。
	Chat(ctx context.Context, messages []Message, opts ...GenerateOption) (*GenerateResponse, error)

	// Generate 根据提示生成文本（单轮）。
	Generate(ctx context.Context, prompt string, systemPrompt string, opts ...GenerateOption) (*GenerateResponse, error)

	// Name 返回供应商名称。
	Name() string
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// GenerateResponse 生成结果。
type GenerateResponse struct {
	Content    string     `json:"content"`
	Model      string     `json:"model,omitempty"`
	TokenUsage TokenUsage `json:"token_usage"`
}

// TokenUsage token 用量统计。
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateOptions 单次调用的生成参数。零值表示使用供应商默认值。
type GenerateOptions struct {
	Temperature *float64
	MaxTokens   int
	JSONMode    bool
	Model       string
	// Headers 额外的请求头（如网关追踪头），仅 HTTP 类供应商使用。
	Headers map[string]string
}

// GenerateOption 配置 GenerateOptions。
type GenerateOption func(*GenerateOptions)

// WithTemperature 设置采样温度。
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = &t }
}

// WithMaxTokens 设置最大生成 token 数。
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = n }
}

// WithJSONMode 要求供应商返回 JSON 对象。
func WithJSONMode() GenerateOption {
	return func(o *GenerateOptions) { o.JSONMode = true }
}

// WithModel 覆盖本次调用使用的模型。
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) { o.Model = model }
}

// WithHeader 为本次调用追加请求头。
func WithHeader(key, value string) GenerateOption {
	return func(o *GenerateOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		o.Headers[key] = value
	}
}

// ApplyOptions 合并生成参数。
func ApplyOptions(opts ...GenerateOption) GenerateOptions {
	var o GenerateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ChatProviderFactory Chat 供应商工厂函数类型。
type ChatProviderFactory func(config map[string]any) (ChatProvider, error)

var registry = &providerRegistry{
	chatProviders: make(map[string]ChatProviderFactory),
}

type providerRegistry struct {
	mu            sync.RWMutex
	chatProviders map[string]ChatProviderFactory
}

// RegisterChatProvider 注册 Chat 供应商工厂。
func RegisterChatProvider(name string, factory ChatProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.chatProviders[name] = factory
}

// NewChatProvider 根据名称创建 Chat 供应商实例。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.chatProviders[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown chat provider: %s", name)
	}
	return factory(config)
}

// ListProviders 列出所有已注册的供应商名称（已排序）。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.chatProviders))
	for name := range registry.chatProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
