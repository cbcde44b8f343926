// Package openai 提供 OpenAI 兼容 API 的 LLM 供应商实现。
// 同时以 "together" 名称注册 Together AI 预设，可选经由 Helicone 网关转发。
//
// 基本用法示例：
//
//	import _ "github.com/kart-io/medreport/pkg/llm/openai"
//
//	provider, err := llm.NewChatProvider("together", map[string]any{
//	    "api_key":          "your-api-key",
//	    "helicone_api_key": "optional-gateway-key",
//	})
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/medreport/pkg/llm"
	"github.com/kart-io/medreport/pkg/utils/httpclient"
)

const (
	// ProviderName 是 OpenAI 供应商的名称标识符
	ProviderName = "openai"
	// TogetherProviderName Together AI 预设名称
	TogetherProviderName = "together"

	togetherBaseURL = "https://api.together.xyz/v1"
	togetherModel   = "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free"
	heliconeBaseURL = "https://together.helicone.ai/v1"
)

func init() {
	llm.RegisterChatProvider(ProviderName, NewProvider)
	llm.RegisterChatProvider(TogetherProviderName, NewTogetherProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	// BaseURL API 基础地址，可设置为兼容 API 地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`

	// Organization 组织 ID（可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// HeliconeAPIKey 网关密钥，非空时每个请求附带 Helicone-Auth 头。
	HeliconeAPIKey string `json:"helicone_api_key" mapstructure:"helicone_api_key"`

	// Name 供应商名称，预设会覆盖为自己的名称。
	Name string `json:"-" mapstructure:"-"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		ChatModel:  "gpt-4o-mini",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
		Name:       ProviderName,
	}
}

// TogetherConfig 返回 Together AI 预设配置。
func TogetherConfig() *Config {
	cfg := DefaultConfig()
	cfg.BaseURL = togetherBaseURL
	cfg.ChatModel = togetherModel
	cfg.Name = TogetherProviderName
	return cfg
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

var _ llm.ChatProvider = (*Provider)(nil)

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.ChatProvider, error) {
	return newFromMap(DefaultConfig(), configMap)
}

// NewTogetherProvider 从配置 map 创建 Together AI 供应商。
// 配置了 helicone_api_key 而未显式指定 base_url 时，请求经由 Helicone 网关发送。
func NewTogetherProvider(configMap map[string]any) (llm.ChatProvider, error) {
	cfg := TogetherConfig()
	if v, ok := configMap["helicone_api_key"].(string); ok && v != "" {
		if u, _ := configMap["base_url"].(string); u == "" {
			cfg.BaseURL = heliconeBaseURL
		}
	}
	return newFromMap(cfg, configMap)
}

func newFromMap(cfg *Config, configMap map[string]any) (llm.ChatProvider, error) {
	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}
	if v, ok := configMap["helicone_api_key"].(string); ok && v != "" {
		cfg.HeliconeAPIKey = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api_key 是必需的", cfg.Name)
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = ProviderName
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return p.config.Name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatRequest OpenAI Chat Completions 请求体。
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatResponse OpenAI Chat Completions 响应体。
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	o := llm.ApplyOptions(opts...)

	reqBody := chatRequest{
		Model:       p.config.ChatModel,
		Messages:    make([]chatMessage, len(messages)),
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}
	if o.Model != "" {
		reqBody.Model = o.Model
	}
	if o.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	for i, msg := range messages {
		reqBody.Messages[i] = chatMessage{Role: string(msg.Role), Content: msg.Content}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	p.setHeaders(req, o.Headers)

	var chatResp chatResponse
	if err := p.client.PostJSON(req, reqBody, &chatResp); err != nil {
		return nil, fmt.Errorf("%s chat: %w", p.config.Name, err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%s chat: 响应中没有 choices", p.config.Name)
	}

	return &llm.GenerateResponse{
		Content: chatResp.Choices[0].Message.Content,
		Model:   chatResp.Model,
		TokenUsage: llm.TokenUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return p.Chat(ctx, messages, opts...)
}

func (p *Provider) setHeaders(req *http.Request, extra map[string]string) {
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if p.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", p.config.Organization)
	}
	if p.config.HeliconeAPIKey != "" {
		req.Header.Set("Helicone-Auth", "Bearer "+p.config.HeliconeAPIKey)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
}
