// Package pipeline provides report pipeline options.
package pipeline

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/medreport/pkg/options"
	"github.com/kart-io/medreport/pkg/pdftext"
	"github.com/kart-io/medreport/pkg/validator"
)

var _ options.IOptions = (*Options)(nil)

const (
	// ModeFull 两阶段流水线：样本块定位、模式生成、模式应用。
	ModeFull = "full"
	// ModeSimple 降级模式：只做关键字行过滤。
	ModeSimple = "simple"

	// MB 兆字节。
	MB = 1 << 20
)

// Options 流水线配置。
type Options struct {
	// Mode 运行模式（full|simple）。
	Mode string `json:"mode" mapstructure:"mode" validate:"oneof=full simple"`

	// RequestTimeout 单次分析请求的总时限。
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout" validate:"gt=0"`

	// MaxUploadSize 分析接口允许的最大文件字节数。
	MaxUploadSize int64 `json:"max-upload-size" mapstructure:"max-upload-size" validate:"gt=0"`

	// MaxWorkers 并发执行流水线的最大数量。
	MaxWorkers int `json:"max-workers" mapstructure:"max-workers" validate:"gt=0"`

	// Extractor PDF 文本提取引擎。
	Extractor string `json:"extractor" mapstructure:"extractor"`
}

// NewOptions 创建默认流水线配置。
func NewOptions() *Options {
	return &Options{
		Mode:           ModeFull,
		RequestTimeout: 120 * time.Second,
		MaxUploadSize:  50 * MB,
		MaxWorkers:     64,
		Extractor:      pdftext.EngineLedongthuc,
	}
}

// AddFlags adds flags for pipeline options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pipeline."
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Pipeline mode (full|simple). simple skips pattern synthesis.")
	fs.DurationVar(&o.RequestTimeout, p+"request-timeout", o.RequestTimeout, "Deadline of a single analyze request.")
	fs.Int64Var(&o.MaxUploadSize, p+"max-upload-size", o.MaxUploadSize, "Maximum PDF size in bytes accepted by the analyze endpoint.")
	fs.IntVar(&o.MaxWorkers, p+"max-workers", o.MaxWorkers, "Maximum number of concurrently running pipelines.")
	fs.StringVar(&o.Extractor, p+"extractor", o.Extractor, fmt.Sprintf("PDF text engine %v.", pdftext.Engines()))
}

// Validate validates the pipeline options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	errs := validator.Struct(o, "pipeline.")
	if _, err := pdftext.New(o.Extractor); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.extractor: %w", err))
	}
	return errs
}

// Complete completes the pipeline options with defaults.
func (o *Options) Complete() error {
	if o.Extractor == "" {
		o.Extractor = pdftext.EngineLedongthuc
	}
	return nil
}

// SafetyOptions 内容安全分类开关。
type SafetyOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// NewSafetyOptions 创建默认配置，默认关闭。
func NewSafetyOptions() *SafetyOptions {
	return &SafetyOptions{}
}

// AddFlags adds flags for safety options to the specified FlagSet.
func (o *SafetyOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, options.Join(prefixes...)+"safety.enabled", o.Enabled, "Classify report text with the safety LLM before analysis.")
}

// Validate validates the safety options.
func (o *SafetyOptions) Validate() []error { return nil }

// Complete completes the safety options.
func (o *SafetyOptions) Complete() error { return nil }
