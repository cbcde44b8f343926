package biz

// ExtractionPattern 提取模式，Regex、Rules、Format 至少一项非空。
// 创建后不再修改。
type ExtractionPattern struct {
	Regex  string   `json:"regex,omitempty"`
	Rules  []string `json:"rules,omitempty"`
	Format string   `json:"format,omitempty"`
}

// IsZero 判断模式是否为空。
func (p ExtractionPattern) IsZero() bool {
	return p.Regex == "" && len(p.Rules) == 0 && p.Format == ""
}

// FallbackRegex 模式生成失败时使用的固定正则："大写名称: 数值单位"。
const FallbackRegex = `([A-Z\s]{3,}):\s*([\d,.]+\s*[a-zA-Z/%]+)`

// FallbackPattern 返回固定的降级模式。
func FallbackPattern() ExtractionPattern {
	return ExtractionPattern{Regex: FallbackRegex}
}

// PatternSource 描述精简文本所用模式的来源。
type PatternSource string

const (
	// PatternSourceLLM 本次由 LLM 生成
	PatternSourceLLM PatternSource = "llm"
	// PatternSourceCache 命中 pattern: 缓存
	PatternSourceCache PatternSource = "cache"
	// PatternSourceFallback 生成失败，使用固定正则
	PatternSourceFallback PatternSource = "fallback"
	// PatternSourceKeyword 未使用模式，直接关键字行过滤
	PatternSourceKeyword PatternSource = "keyword"
)
