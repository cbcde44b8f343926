package biz

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kart-io/medreport/internal/medreport/metrics"
	infralog "github.com/kart-io/medreport/pkg/infra/logger"
	"github.com/kart-io/medreport/pkg/infra/pool"
	"github.com/kart-io/medreport/pkg/llm"
	"github.com/kart-io/medreport/pkg/pdftext"
	apierrors "github.com/kart-io/medreport/pkg/utils/errors"
)

// 流水线模式。
const (
	// ModeFull 样本块定位、模式生成与应用后再分析
	ModeFull = "full"
	// ModeSimple 只做关键字行过滤后分析
	ModeSimple = "simple"
)

// AnalysisSource 描述 analyzedData 的来源。
type AnalysisSource string

const (
	AnalysisSourceLLM      AnalysisSource = "llm"
	AnalysisSourceCache    AnalysisSource = "cache"
	AnalysisSourceFallback AnalysisSource = "fallback"
	AnalysisSourceBlocked  AnalysisSource = "blocked"
)

// Service 定义报告解析服务接口。
type Service interface {
	// Process 对一份 PDF 执行完整流水线。
	Process(ctx context.Context, req *Request) (*Report, error)
	// Ready 检查依赖是否可用。
	Ready(ctx context.Context) error
}

// Request 一次解析请求。
type Request struct {
	// Data PDF 原始字节。
	Data []byte
	// RequesterID 调用方标识，用于网关追踪头。
	RequesterID string
}

// PipelineInfo 流水线执行情况。
type PipelineInfo struct {
	CacheHit      bool           `json:"cacheHit"`
	Mode          string         `json:"mode"`
	SampleFound   bool           `json:"sampleFound"`
	PatternSource PatternSource  `json:"patternSource,omitempty"`
	Analysis      AnalysisSource `json:"analysis"`
	Degraded      bool           `json:"degraded"`
	ReducedLength int            `json:"reducedLength"`
}

// Report 流水线输出。
type Report struct {
	ExtractedText string
	Analysis      *AnalysisResult
	Pipeline      PipelineInfo
}

// ServiceConfig 服务配置。
type ServiceConfig struct {
	// Mode 流水线模式：full 或 simple。
	Mode string
	// RequestTimeout 单次流水线的截止时间，0 表示不限制。
	RequestTimeout time.Duration
}

// ReportService 编排提取、缓存、模式与分析各阶段。
type ReportService struct {
	extractor   pdftext.Extractor
	cache       *ResultCache
	synthesizer *PatternSynthesizer
	analyzer    *Analyzer
	safety      *SafetyClassifier
	pool        *pool.Pool
	metrics     *metrics.ReportMetrics
	config      *ServiceConfig
}

var _ Service = (*ReportService)(nil)

// Dependencies 服务依赖。Safety 与 Pool 可为空。
type Dependencies struct {
	Extractor   pdftext.Extractor
	Cache       *ResultCache
	Synthesizer *PatternSynthesizer
	Analyzer    *Analyzer
	Safety      *SafetyClassifier
	Pool        *pool.Pool
	Metrics     *metrics.ReportMetrics
}

// NewReportService 创建报告解析服务。
func NewReportService(deps Dependencies, config *ServiceConfig) *ReportService {
	if config == nil {
		config = &ServiceConfig{Mode: ModeFull}
	}
	if config.Mode == "" {
		config.Mode = ModeFull
	}
	if deps.Cache == nil {
		deps.Cache = NewResultCache(nil, nil)
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = NewPatternSynthesizer(nil, deps.Cache, nil)
	}
	if deps.Analyzer == nil {
		deps.Analyzer = NewAnalyzer(nil, nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	return &ReportService{
		extractor:   deps.Extractor,
		cache:       deps.Cache,
		synthesizer: deps.Synthesizer,
		analyzer:    deps.Analyzer,
		safety:      deps.Safety,
		pool:        deps.Pool,
		metrics:     deps.Metrics,
		config:      config,
	}
}

// Metrics 返回指标收集器。
func (s *ReportService) Metrics() *metrics.ReportMetrics {
	return s.metrics
}

// Ready 检查缓存存储是否可用。禁用的缓存视为可用。
func (s *ReportService) Ready(ctx context.Context) error {
	if !s.cache.Enabled() {
		return nil
	}
	return s.cache.Store().Ping(ctx)
}

// Process 执行流水线。只有上传内容不可读、提取阶段超时和工作池饱和会返回错误，
// AI 相关失败都降级为安全默认结果。
func (s *ReportService) Process(ctx context.Context, req *Request) (*Report, error) {
	s.metrics.RecordRequest()

	runCtx := ctx
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	if s.pool == nil {
		return s.run(runCtx, req)
	}

	// 等待使用外层 ctx：超时由各阶段自行降级，run 总会返回结果
	report, err := pool.Do(ctx, s.pool, func(context.Context) (*Report, error) {
		return s.run(runCtx, req)
	})
	if err != nil {
		switch {
		case errors.Is(err, pool.ErrPoolOverload), errors.Is(err, pool.ErrPoolClosed):
			s.metrics.RecordRejected()
			infralog.FromContext(ctx).Warnw("pipeline rejected", "error", err.Error(), "stage", "pool")
			return nil, apierrors.ErrReportBusy.WithCause(err)
		case errors.As(err, new(*apierrors.Errno)):
			return nil, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, apierrors.ErrReportTimeout.WithCause(err)
		default:
			return nil, apierrors.ErrReportPipeline.WithCause(err)
		}
	}
	return report, nil
}

func (s *ReportService) run(ctx context.Context, req *Request) (*Report, error) {
	// 1. 提取文本
	start := time.Now()
	text, err := s.extractor.Extract(ctx, req.Data)
	s.metrics.ObserveStage(metrics.StageExtract, time.Since(start))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.metrics.RecordTimeout()
			return nil, apierrors.ErrReportTimeout.WithCause(ctxErr)
		}
		s.metrics.RecordUnreadable()
		infralog.FromContext(ctx).Warnw("pdf extraction failed", "error", err.Error(), "stage", "extract", "size", len(req.Data))
		return nil, apierrors.ErrReportUnreadable.WithCause(err).WithDetails("PDF parsing failed")
	}

	report := &Report{
		ExtractedText: text,
		Pipeline:      PipelineInfo{Mode: s.config.Mode},
	}

	// 2. 查询结果缓存，失败按未命中处理
	hash := HashText(text)
	start = time.Now()
	cached, err := s.cache.GetResult(ctx, hash)
	s.metrics.ObserveStage(metrics.StageCache, time.Since(start))
	s.metrics.RecordCacheLookup(cached != nil, err)
	if cached != nil {
		report.Analysis = cached
		report.Pipeline.CacheHit = true
		report.Pipeline.Analysis = AnalysisSourceCache
		infralog.FromContext(ctx).Infow("cache hit, returning cached analysis", "hash", hash[:12])
		return report, nil
	}

	// 3. 精简文本
	reduced := s.reduce(ctx, text, &report.Pipeline)
	report.Pipeline.ReducedLength = len(reduced)

	// 4. 安全检查与分析
	opts := trackingHeaders(req.RequesterID)
	if s.safety != nil {
		start = time.Now()
		safetyOpts := append([]llm.GenerateOption{llm.WithHeader("Helicone-Property-Model", "llama-guard")}, opts...)
		verdict := s.safety.Classify(ctx, reduced, safetyOpts...)
		s.metrics.ObserveStage(metrics.StageSafety, time.Since(start))
		if !verdict.Safe {
			s.metrics.RecordSafetyBlock()
			report.Analysis = SafeDefault()
			report.Pipeline.Analysis = AnalysisSourceBlocked
			report.Pipeline.Degraded = true
			return report, nil
		}
	}

	start = time.Now()
	result, err := s.analyzer.Analyze(ctx, reduced, opts...)
	s.metrics.ObserveStage(metrics.StageAnalyze, time.Since(start))
	s.metrics.RecordAnalysis(err)
	if err != nil {
		infralog.FromContext(ctx).Warnw("analysis failed, returning safe default",
			"error", err.Error(),
			"stage", "analyze",
			"reduced_length", len(reduced),
		)
		report.Analysis = SafeDefault()
		report.Pipeline.Analysis = AnalysisSourceFallback
		report.Pipeline.Degraded = true
		return report, nil
	}

	report.Analysis = result
	report.Pipeline.Analysis = AnalysisSourceLLM

	// 5. 写入结果缓存，失败只记录日志
	if err := detached(ctx, func(ctx context.Context) error {
		return s.cache.SetResult(ctx, hash, result)
	}); err != nil {
		s.metrics.RecordCacheError()
	}

	return report, nil
}

// reduce 按模式精简全文，并在 info 中记录所走的分支。
func (s *ReportService) reduce(ctx context.Context, text string, info *PipelineInfo) string {
	if s.config.Mode == ModeSimple {
		info.PatternSource = PatternSourceKeyword
		return KeywordFilter(text)
	}

	start := time.Now()
	sample, found := FindSampleBlock(text)
	s.metrics.ObserveStage(metrics.StageLocate, time.Since(start))
	s.metrics.RecordSample(found)
	info.SampleFound = found

	if !found {
		infralog.FromContext(ctx).Infow("no sample block found, using keyword filter", "text_length", len(text))
		info.PatternSource = PatternSourceKeyword
		return KeywordFilter(text)
	}

	start = time.Now()
	pattern, source := s.synthesizer.Synthesize(ctx, sample)
	s.metrics.ObserveStage(metrics.StageSynthesize, time.Since(start))
	s.metrics.RecordPattern(string(source))
	info.PatternSource = source

	start = time.Now()
	reduced, applied := ApplyPattern(text, pattern)
	s.metrics.ObserveStage(metrics.StageApply, time.Since(start))
	switch {
	case !applied:
		infralog.FromContext(ctx).Infow("pattern has no usable regex, used keyword filter", "pattern_source", string(source))
	case strings.TrimSpace(reduced) == "":
		// 空精简文本退回关键字过滤
		infralog.FromContext(ctx).Infow("pattern matched nothing, using keyword filter", "pattern_source", string(source))
		info.PatternSource = PatternSourceKeyword
		reduced = KeywordFilter(text)
	}
	return reduced
}

// trackingHeaders 网关追踪头，对不经网关的供应商无副作用。
func trackingHeaders(requesterID string) []llm.GenerateOption {
	opts := []llm.GenerateOption{llm.WithHeader("Helicone-Cache", "false")}
	if requesterID != "" {
		opts = append(opts, llm.WithHeader("Helicone-Property-User-Id", requesterID))
	}
	return opts
}
