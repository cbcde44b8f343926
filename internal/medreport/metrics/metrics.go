// Package metrics 提供报告解析流水线的业务指标收集。
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Stage 流水线阶段名称。
type Stage string

const (
	StageExtract    Stage = "extract"
	StageCache      Stage = "cache"
	StageLocate     Stage = "locate"
	StageSynthesize Stage = "synthesize"
	StageApply      Stage = "apply"
	StageSafety     Stage = "safety"
	StageAnalyze    Stage = "analyze"
)

// ReportMetrics 流水线业务指标。
type ReportMetrics struct {
	// 请求指标
	requestsTotal uint64 // 总请求数
	unreadable    uint64 // 无法解析的 PDF
	rejected      uint64 // 工作池满被拒绝
	timeouts      uint64 // 提取阶段超时

	// 缓存指标
	cacheHits   uint64
	cacheMisses uint64
	cacheErrors uint64

	// 样本块与模式指标
	samplesFound        uint64
	samplesNotFound     uint64
	patternsSynthesized uint64
	patternsCached      uint64
	patternsFallback    uint64

	// 分析指标
	analysisSuccess  uint64
	analysisFailures uint64
	safetyBlocks     uint64

	stagesMu sync.Mutex
	stages   map[Stage]*stageTimer

	startTime time.Time
}

type stageTimer struct {
	count uint64
	total time.Duration
}

// New 创建指标实例。
func New() *ReportMetrics {
	return &ReportMetrics{
		stages:    make(map[Stage]*stageTimer),
		startTime: time.Now(),
	}
}

// RecordRequest 记录一次流水线请求。
func (m *ReportMetrics) RecordRequest() { atomic.AddUint64(&m.requestsTotal, 1) }

// RecordUnreadable 记录无法解析的 PDF。
func (m *ReportMetrics) RecordUnreadable() { atomic.AddUint64(&m.unreadable, 1) }

// RecordRejected 记录因工作池饱和被拒绝的请求。
func (m *ReportMetrics) RecordRejected() { atomic.AddUint64(&m.rejected, 1) }

// RecordTimeout 记录提取完成前的超时。
func (m *ReportMetrics) RecordTimeout() { atomic.AddUint64(&m.timeouts, 1) }

// RecordCacheLookup 记录结果缓存查询。err 非空时计为缓存错误并按未命中处理。
func (m *ReportMetrics) RecordCacheLookup(hit bool, err error) {
	switch {
	case err != nil:
		atomic.AddUint64(&m.cacheErrors, 1)
		atomic.AddUint64(&m.cacheMisses, 1)
	case hit:
		atomic.AddUint64(&m.cacheHits, 1)
	default:
		atomic.AddUint64(&m.cacheMisses, 1)
	}
}

// RecordCacheError 记录缓存写入失败。
func (m *ReportMetrics) RecordCacheError() { atomic.AddUint64(&m.cacheErrors, 1) }

// RecordSample 记录样本块定位结果。
func (m *ReportMetrics) RecordSample(found bool) {
	if found {
		atomic.AddUint64(&m.samplesFound, 1)
		return
	}
	atomic.AddUint64(&m.samplesNotFound, 1)
}

// RecordPattern 记录模式来源：llm、cache 或 fallback。
func (m *ReportMetrics) RecordPattern(source string) {
	switch source {
	case "llm":
		atomic.AddUint64(&m.patternsSynthesized, 1)
	case "cache":
		atomic.AddUint64(&m.patternsCached, 1)
	case "fallback":
		atomic.AddUint64(&m.patternsFallback, 1)
	}
}

// RecordAnalysis 记录分析调用结果。
func (m *ReportMetrics) RecordAnalysis(err error) {
	if err != nil {
		atomic.AddUint64(&m.analysisFailures, 1)
		return
	}
	atomic.AddUint64(&m.analysisSuccess, 1)
}

// RecordSafetyBlock 记录被安全检查拦截的请求。
func (m *ReportMetrics) RecordSafetyBlock() { atomic.AddUint64(&m.safetyBlocks, 1) }

// ObserveStage 记录阶段耗时。
func (m *ReportMetrics) ObserveStage(stage Stage, d time.Duration) {
	m.stagesMu.Lock()
	defer m.stagesMu.Unlock()

	t, ok := m.stages[stage]
	if !ok {
		t = &stageTimer{}
		m.stages[stage] = t
	}
	t.count++
	t.total += d
}

// StageStats 单个阶段的耗时统计。
type StageStats struct {
	Count     uint64  `json:"count"`
	AverageMs float64 `json:"average_ms"`
}

// Snapshot 指标快照。
type Snapshot struct {
	UptimeSeconds       float64              `json:"uptime_seconds"`
	RequestsTotal       uint64               `json:"requests_total"`
	Unreadable          uint64               `json:"unreadable_total"`
	Rejected            uint64               `json:"rejected_total"`
	Timeouts            uint64               `json:"timeouts_total"`
	CacheHits           uint64               `json:"cache_hits_total"`
	CacheMisses         uint64               `json:"cache_misses_total"`
	CacheErrors         uint64               `json:"cache_errors_total"`
	CacheHitRate        float64              `json:"cache_hit_rate"`
	SamplesFound        uint64               `json:"samples_found_total"`
	SamplesNotFound     uint64               `json:"samples_not_found_total"`
	PatternsSynthesized uint64               `json:"patterns_synthesized_total"`
	PatternsCached      uint64               `json:"patterns_cached_total"`
	PatternsFallback    uint64               `json:"patterns_fallback_total"`
	AnalysisSuccess     uint64               `json:"analysis_success_total"`
	AnalysisFailures    uint64               `json:"analysis_failures_total"`
	SafetyBlocks        uint64               `json:"safety_blocks_total"`
	Stages              map[Stage]StageStats `json:"stages"`
}

// Snapshot 返回当前指标快照。
func (m *ReportMetrics) Snapshot() Snapshot {
	s := Snapshot{
		UptimeSeconds:       time.Since(m.startTime).Seconds(),
		RequestsTotal:       atomic.LoadUint64(&m.requestsTotal),
		Unreadable:          atomic.LoadUint64(&m.unreadable),
		Rejected:            atomic.LoadUint64(&m.rejected),
		Timeouts:            atomic.LoadUint64(&m.timeouts),
		CacheHits:           atomic.LoadUint64(&m.cacheHits),
		CacheMisses:         atomic.LoadUint64(&m.cacheMisses),
		CacheErrors:         atomic.LoadUint64(&m.cacheErrors),
		SamplesFound:        atomic.LoadUint64(&m.samplesFound),
		SamplesNotFound:     atomic.LoadUint64(&m.samplesNotFound),
		PatternsSynthesized: atomic.LoadUint64(&m.patternsSynthesized),
		PatternsCached:      atomic.LoadUint64(&m.patternsCached),
		PatternsFallback:    atomic.LoadUint64(&m.patternsFallback),
		AnalysisSuccess:     atomic.LoadUint64(&m.analysisSuccess),
		AnalysisFailures:    atomic.LoadUint64(&m.analysisFailures),
		SafetyBlocks:        atomic.LoadUint64(&m.safetyBlocks),
		Stages:              make(map[Stage]StageStats),
	}
	if total := s.CacheHits + s.CacheMisses; total > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(total)
	}

	m.stagesMu.Lock()
	for name, t := range m.stages {
		st := StageStats{Count: t.count}
		if t.count > 0 {
			st.AverageMs = float64(t.total.Microseconds()) / 1000 / float64(t.count)
		}
		s.Stages[name] = st
	}
	m.stagesMu.Unlock()

	return s
}

// Export 导出 Prometheus 文本格式指标。
func (m *ReportMetrics) Export(namespace string) string {
	s := m.Snapshot()
	var sb strings.Builder

	counter := func(name, help string, v uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", namespace, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", namespace, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n", namespace, name, v))
	}

	counter("requests_total", "Total number of pipeline runs.", s.RequestsTotal)
	counter("unreadable_total", "Number of unreadable PDFs.", s.Unreadable)
	counter("rejected_total", "Number of requests rejected by the worker pool.", s.Rejected)
	counter("timeouts_total", "Number of requests that timed out before extraction finished.", s.Timeouts)
	counter("cache_hits_total", "Number of result cache hits.", s.CacheHits)
	counter("cache_misses_total", "Number of result cache misses.", s.CacheMisses)
	counter("cache_errors_total", "Number of cache read or write errors.", s.CacheErrors)
	counter("samples_found_total", "Number of documents with a sample block.", s.SamplesFound)
	counter("samples_not_found_total", "Number of documents without a sample block.", s.SamplesNotFound)
	counter("patterns_synthesized_total", "Number of patterns generated by the LLM.", s.PatternsSynthesized)
	counter("patterns_cached_total", "Number of patterns served from cache.", s.PatternsCached)
	counter("patterns_fallback_total", "Number of fallback patterns used.", s.PatternsFallback)
	counter("analysis_success_total", "Number of successful analyses.", s.AnalysisSuccess)
	counter("analysis_failures_total", "Number of failed analyses.", s.AnalysisFailures)
	counter("safety_blocks_total", "Number of reports blocked by the safety check.", s.SafetyBlocks)

	sb.WriteString(fmt.Sprintf("# HELP %s_cache_hit_rate Cache hit rate (0-1).\n", namespace))
	sb.WriteString(fmt.Sprintf("# TYPE %s_cache_hit_rate gauge\n", namespace))
	sb.WriteString(fmt.Sprintf("%s_cache_hit_rate %.4f\n", namespace, s.CacheHitRate))

	names := make([]string, 0, len(s.Stages))
	for name := range s.Stages {
		names = append(names, string(name))
	}
	sort.Strings(names)
	if len(names) > 0 {
		sb.WriteString(fmt.Sprintf("# HELP %s_stage_duration_avg_ms Average stage latency in milliseconds.\n", namespace))
		sb.WriteString(fmt.Sprintf("# TYPE %s_stage_duration_avg_ms gauge\n", namespace))
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("%s_stage_duration_avg_ms{stage=%q} %.3f\n", namespace, name, s.Stages[Stage(name)].AverageMs))
		}
	}

	return sb.String()
}
