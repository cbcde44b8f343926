// Package gemini 提供基于 Google Generative AI SDK 的 Gemini 供应商实现。
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kart-io/medreport/pkg/llm"
)

const ProviderName = "gemini"

func init() {
	llm.RegisterChatProvider(ProviderName, NewProvider)
}

// Config Gemini 供应商配置。
type Config struct {
	// APIKey Google AI API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`
	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`
	// Endpoint 自定义 API 地址（可选）。
	Endpoint string `json:"base_url" mapstructure:"base_url"`
	// Timeout 单次请求超时，0 表示只受调用方 ctx 约束。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		ChatModel: "gemini-1.5-flash",
		Timeout:   60 * time.Second,
	}
}

// Provider Gemini 供应商实现。
type Provider struct {
	config *Config
	client *genai.Client
}

var _ llm.ChatProvider = (*Provider)(nil)

// NewProvider 从配置 map 创建 Gemini 供应商。
func NewProvider(configMap map[string]any) (llm.ChatProvider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.Endpoint = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api_key 是必需的")
	}

	return NewProviderWithConfig(context.Background(), cfg)
}

// NewProviderWithConfig 使用结构化配置创建 Gemini 供应商。
func NewProviderWithConfig(ctx context.Context, cfg *Config) (*Provider, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}

	return &Provider{config: cfg, client: client}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Close 释放底层客户端。
func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.config.Timeout)
}

func (p *Provider) model(o llm.GenerateOptions, systemPrompt string) (*genai.GenerativeModel, string) {
	name := p.config.ChatModel
	if o.Model != "" {
		name = o.Model
	}

	model := p.client.GenerativeModel(name)
	if o.Temperature != nil {
		model.SetTemperature(float32(*o.Temperature))
	}
	if o.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(o.MaxTokens))
	}
	if o.JSONMode {
		model.ResponseMIMEType = "application/json"
	}
	if systemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}
	return model, name
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	o := llm.ApplyOptions(opts...)
	model, name := p.model(o, systemPrompt)

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return toResponse(resp, name)
}

// Chat 进行多轮对话。系统消息合并为 SystemInstruction，最后一条消息作为本轮输入。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	system, history, last := splitMessages(messages)
	if last == nil {
		return nil, fmt.Errorf("gemini chat: 没有可发送的消息")
	}

	o := llm.ApplyOptions(opts...)
	model, name := p.model(o, system)

	cs := model.StartChat()
	cs.History = history

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini chat: %w", err)
	}
	return toResponse(resp, name)
}

// splitMessages 将通用消息拆分为系统提示、历史记录和最后一条输入。
func splitMessages(messages []llm.Message) (string, []*genai.Content, *genai.Content) {
	var system []string
	var contents []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}

	if len(contents) == 0 {
		return strings.Join(system, "\n\n"), nil, nil
	}
	return strings.Join(system, "\n\n"), contents[:len(contents)-1], contents[len(contents)-1]
}

func toResponse(resp *genai.GenerateContentResponse, model string) (*llm.GenerateResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: 响应中没有候选结果")
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}

	out := &llm.GenerateResponse{Content: sb.String(), Model: model}
	if resp.UsageMetadata != nil {
		out.TokenUsage = llm.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}
