// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/medreport/pkg/options"
	"github.com/kart-io/medreport/pkg/validator"
)

var _ options.IOptions = (*ProviderOptions)(nil)

const ollamaBaseURL = "http://localhost:11434"

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（ollama, openai, together, gemini）。
	Provider string `json:"provider" mapstructure:"provider" validate:"oneof=ollama openai together gemini"`

	// BaseURL API 基础地址，留空时使用供应商默认地址。
	BaseURL string `json:"base-url" mapstructure:"base-url" validate:"omitempty,url"`

	// APIKey API 密钥（ollama 以外的供应商需要）。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model" validate:"required"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries" validate:"gte=0"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// HeliconeAPIKey Helicone 网关密钥（together 可选）。
	HeliconeAPIKey string `json:"-" mapstructure:"helicone-api-key"`

	// Temperature 采样温度。
	Temperature float64 `json:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`

	// MaxTokens 最大生成 token 数，0 表示由供应商决定。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens" validate:"gte=0"`
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    ollamaBaseURL,
		Timeout:    120 * time.Second,
		MaxRetries: 2,
	}
}

// NewPatternOptions 创建模式生成阶段的默认配置。
func NewPatternOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "qwen2.5:72b"
	opts.Timeout = 60 * time.Second
	return opts
}

// NewAnalysisOptions 创建报告分析阶段的默认配置。
func NewAnalysisOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "mistral"
	opts.Temperature = 0.7
	opts.MaxTokens = 2000
	return opts
}

// NewSafetyOptions 创建内容安全分类的默认配置（Together 上的 Llama Guard）。
func NewSafetyOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Provider = "together"
	opts.BaseURL = ""
	opts.Model = "meta-llama/Meta-Llama-Guard-3-8B"
	opts.Timeout = 30 * time.Second
	opts.Temperature = 0.1
	opts.MaxTokens = 100
	return opts
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":         o.BaseURL,
		"api_key":          o.APIKey,
		"chat_model":       o.Model,
		"timeout":          o.Timeout,
		"max_retries":      o.MaxRetries,
		"organization":     o.Organization,
		"helicone_api_key": o.HeliconeAPIKey,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "llm."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (ollama, openai, together, gemini).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL, empty for the provider default.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "LLM maximum number of retries.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
	fs.StringVar(&o.HeliconeAPIKey, p+"helicone-api-key", o.HeliconeAPIKey, "Helicone gateway key (together only).")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum number of generated tokens.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := validator.Struct(o, "llm.")
	if o.Provider != "ollama" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm.api-key is required for provider %s", o.Provider))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
// 切换到远程供应商但保留本地 ollama 默认地址时，清空地址以使用供应商默认值。
func (o *ProviderOptions) Complete() error {
	if o.Provider != "ollama" && o.BaseURL == ollamaBaseURL {
		o.BaseURL = ""
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return nil
}
