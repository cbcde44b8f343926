package biz

import (
	"context"
	"sync"

	"github.com/kart-io/medreport/pkg/llm"
)

// fakeProvider 记录调用并按 reply 函数返回结果。
type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	systems []string
	options []llm.GenerateOptions
	reply   func(prompt string) (string, error)
}

func replyWith(content string, err error) *fakeProvider {
	return &fakeProvider{reply: func(string) (string, error) { return content, err }}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, prompt, systemPrompt string, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, systemPrompt)
	f.options = append(f.options, llm.ApplyOptions(opts...))
	reply := f.reply
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := reply(prompt)
	if err != nil {
		return nil, err
	}
	return &llm.GenerateResponse{Content: content}, nil
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	var system, prompt string
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			system = m.Content
		} else {
			prompt = m.Content
		}
	}
	return f.Generate(ctx, prompt, system, opts...)
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) LastOptions() llm.GenerateOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.options) == 0 {
		return llm.GenerateOptions{}
	}
	return f.options[len(f.options)-1]
}

// extractorFunc 把函数适配为 pdftext.Extractor。
type extractorFunc func(ctx context.Context, data []byte) (string, error)

func (f extractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

// passthrough 直接把字节当作提取出的文本。
var passthrough = extractorFunc(func(_ context.Context, data []byte) (string, error) {
	return string(data), nil
})

const validAnalysis = `{
  "summary": "Most values are within range.",
  "normalFindings": ["Hemoglobin 13.5 g/dL - normal"],
  "abnormalFindings": [{"test": "Glucose", "value": "110 mg/dL", "status": "high", "explanation": "Above range.", "urgency": "Moderate"}],
  "redFlags": [],
  "nextSteps": ["Repeat the test in 2 weeks."],
  "questionsForDoctor": ["Should I change my diet?"]
}`

// sampleReport 第一页含一个合格的样本块。
const sampleReport = "HEMOGRAMA COMPLETO\n" +
	"RESULTADO: Hemoglobina 13.5 g/dL\n" +
	"VALORES DE REFERENCIA: 12.0 a 16.0 g/dL\f" +
	"GLICOSE: 110 mg/dL\n" +
	"Page 2 of 2"
