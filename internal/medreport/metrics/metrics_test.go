package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReportMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordRequest()
	m.RecordRequest()
	m.RecordCacheLookup(true, nil)
	m.RecordCacheLookup(false, nil)
	m.RecordCacheLookup(false, errors.New("dial tcp: refused"))
	m.RecordSample(true)
	m.RecordSample(false)
	m.RecordPattern("llm")
	m.RecordPattern("cache")
	m.RecordPattern("fallback")
	m.RecordPattern("keyword")
	m.RecordAnalysis(nil)
	m.RecordAnalysis(errors.New("timeout"))
	m.RecordSafetyBlock()
	m.RecordUnreadable()
	m.RecordRejected()

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.RequestsTotal)
	assert.Equal(t, uint64(1), s.CacheHits)
	assert.Equal(t, uint64(2), s.CacheMisses)
	assert.Equal(t, uint64(1), s.CacheErrors)
	assert.InDelta(t, 1.0/3.0, s.CacheHitRate, 1e-9)
	assert.Equal(t, uint64(1), s.SamplesFound)
	assert.Equal(t, uint64(1), s.SamplesNotFound)
	assert.Equal(t, uint64(1), s.PatternsSynthesized)
	assert.Equal(t, uint64(1), s.PatternsCached)
	assert.Equal(t, uint64(1), s.PatternsFallback)
	assert.Equal(t, uint64(1), s.AnalysisSuccess)
	assert.Equal(t, uint64(1), s.AnalysisFailures)
	assert.Equal(t, uint64(1), s.SafetyBlocks)
	assert.Equal(t, uint64(1), s.Unreadable)
	assert.Equal(t, uint64(1), s.Rejected)
}

func TestReportMetrics_StageAverage(t *testing.T) {
	m := New()
	m.ObserveStage(StageAnalyze, 10*time.Millisecond)
	m.ObserveStage(StageAnalyze, 30*time.Millisecond)

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.Stages[StageAnalyze].Count)
	assert.InDelta(t, 20.0, s.Stages[StageAnalyze].AverageMs, 1e-6)
	_, ok := s.Stages[StageExtract]
	assert.False(t, ok)
}

func TestReportMetrics_Concurrent(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRequest()
			m.ObserveStage(StageExtract, time.Millisecond)
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, uint64(50), s.RequestsTotal)
	assert.Equal(t, uint64(50), s.Stages[StageExtract].Count)
}

func TestReportMetrics_Export(t *testing.T) {
	m := New()
	m.RecordRequest()
	m.ObserveStage(StageCache, 2*time.Millisecond)

	out := m.Export("medreport")
	assert.Contains(t, out, "# TYPE medreport_requests_total counter")
	assert.Contains(t, out, "medreport_requests_total 1\n")
	assert.Contains(t, out, `medreport_stage_duration_avg_ms{stage="cache"} 2.000`)
}
