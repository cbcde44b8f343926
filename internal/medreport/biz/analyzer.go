package biz

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kart-io/medreport/pkg/llm"
	"github.com/kart-io/medreport/pkg/llm/llmjson"
	"github.com/kart-io/medreport/pkg/utils/json"
)

// ErrNothingToAnalyze 精简后的文本为空。
var ErrNothingToAnalyze = errors.New("no report text left to analyze")

// analysisSchema 只约束结构，不约束医学内容。
const analysisSchema = `{
  "type": "object",
  "required": ["summary"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "normalFindings": {"type": "array"},
    "abnormalFindings": {"type": "array", "items": {"type": "object"}},
    "redFlags": {"type": "array"},
    "nextSteps": {"type": "array"},
    "questionsForDoctor": {"type": "array"}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	errSchema      error
)

func resultSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("analysis.json", strings.NewReader(analysisSchema)); err != nil {
			errSchema = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, errSchema = compiler.Compile("analysis.json")
	})
	return compiledSchema, errSchema
}

// AnalyzerConfig 分析调用配置。
type AnalyzerConfig struct {
	// Temperature 采样温度。
	Temperature float64
	// MaxTokens 最大生成 token 数。
	MaxTokens int
}

// DefaultAnalyzerConfig 返回默认分析配置。
func DefaultAnalyzerConfig() *AnalyzerConfig {
	return &AnalyzerConfig{Temperature: 0.7, MaxTokens: 2000}
}

// Analyzer 调用 LLM 生成结构化解读。
type Analyzer struct {
	provider llm.ChatProvider
	config   *AnalyzerConfig
	policy   *bluemonday.Policy
}

// NewAnalyzer 创建分析器。
func NewAnalyzer(provider llm.ChatProvider, config *AnalyzerConfig) *Analyzer {
	if config == nil {
		config = DefaultAnalyzerConfig()
	}
	return &Analyzer{
		provider: provider,
		config:   config,
		policy:   bluemonday.StrictPolicy(),
	}
}

// Analyze 分析精简后的报告文本。任何失败都返回错误，由调用方决定降级。
func (a *Analyzer) Analyze(ctx context.Context, report string, opts ...llm.GenerateOption) (*AnalysisResult, error) {
	if strings.TrimSpace(report) == "" {
		return nil, ErrNothingToAnalyze
	}
	if a.provider == nil {
		return nil, fmt.Errorf("no analysis provider configured")
	}

	callOpts := []llm.GenerateOption{
		llm.WithTemperature(a.config.Temperature),
		llm.WithJSONMode(),
	}
	if a.config.MaxTokens > 0 {
		callOpts = append(callOpts, llm.WithMaxTokens(a.config.MaxTokens))
	}
	callOpts = append(callOpts, opts...)

	resp, err := a.provider.Generate(ctx, analysisPrompt(report), analysisSystemPrompt, callOpts...)
	if err != nil {
		return nil, err
	}
	return a.Parse(resp.Content)
}

// Parse 把 LLM 原始回复解析为 AnalysisResult：
// 提取 JSON、按结构校验、规范化枚举值并清理字符串中的标记。
func (a *Analyzer) Parse(raw string) (*AnalysisResult, error) {
	obj, err := llmjson.Extract(raw)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return nil, &llmjson.ParseFailure{Step: llmjson.StepDecode, Err: err}
	}

	schema, err := resultSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("analysis does not match schema: %w", err)
	}

	result := &AnalysisResult{
		Summary:            a.clean(asString(doc["summary"])),
		NormalFindings:     a.stringList(doc["normalFindings"]),
		AbnormalFindings:   a.findings(doc["abnormalFindings"]),
		RedFlags:           a.stringList(doc["redFlags"]),
		NextSteps:          a.stringList(doc["nextSteps"]),
		QuestionsForDoctor: a.stringList(doc["questionsForDoctor"]),
	}
	if result.Summary == "" {
		return nil, fmt.Errorf("analysis summary is empty")
	}
	result.ensureLists()
	return result, nil
}

// clean 去掉 HTML 标记，保留纯文本（含 <、& 等字符）。
func (a *Analyzer) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(a.policy.Sanitize(s)))
}

func (a *Analyzer) stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := a.clean(asString(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (a *Analyzer) findings(v any) []AbnormalFinding {
	items, _ := v.([]any)
	out := make([]AbnormalFinding, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		f := AbnormalFinding{
			Test:        a.clean(asString(m["test"])),
			Value:       a.clean(asString(m["value"])),
			Status:      normalizeStatus(a.clean(asString(m["status"]))),
			Explanation: a.clean(asString(m["explanation"])),
			Urgency:     normalizeUrgency(a.clean(asString(m["urgency"]))),
		}
		if f.Test == "" && f.Value == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		// {"test": "...", "value": "..."} 形式的发现项
		name, _ := t["test"].(string)
		if name == "" {
			return ""
		}
		if value := asString(t["value"]); value != "" {
			return name + ": " + value
		}
		return name
	default:
		return ""
	}
}

func normalizeStatus(s string) string {
	switch strings.ToLower(s) {
	case "high", "elevated", "above normal", "increased", "alto", "elevado":
		return StatusHigh
	case "low", "below normal", "decreased", "reduced", "baixo":
		return StatusLow
	default:
		return s
	}
}

func normalizeUrgency(s string) string {
	switch strings.ToLower(s) {
	case "low", "baixa", "routine":
		return UrgencyLow
	case "moderate", "medium", "moderada":
		return UrgencyModerate
	case "high", "urgent", "critical", "alta":
		return UrgencyHigh
	default:
		return strings.ToLower(s)
	}
}
