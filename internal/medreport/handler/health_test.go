package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/medreport/internal/medreport/metrics"
	"github.com/kart-io/medreport/pkg/infra/pool"
	apierrors "github.com/kart-io/medreport/pkg/utils/errors"
)

func newHealthEngine(h *HealthHandler) *gin.Engine {
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", h.Metrics)
	return r
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHealthz(t *testing.T) {
	r := newHealthEngine(NewHealthHandler(&fakeService{readyErr: errors.New("down")}, nil, nil))

	// 存活检查不依赖缓存
	w := get(r, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &status))
	assert.Equal(t, "ok", status.Status)
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		w := get(newHealthEngine(NewHealthHandler(&fakeService{}, nil, nil)), "/readyz")
		require.Equal(t, http.StatusOK, w.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &status))
		assert.Equal(t, "ready", status.Status)
	})

	t.Run("cache down", func(t *testing.T) {
		w := get(newHealthEngine(NewHealthHandler(&fakeService{readyErr: errors.New("dial tcp 127.0.0.1:6379: connection refused")}, nil, nil)), "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		env := decode(t, w)
		assert.Equal(t, apierrors.ErrUnavailable.Code, env.Code)
		assert.Contains(t, env.Details, "connection refused")
	})

	t.Run("no checker", func(t *testing.T) {
		w := get(newHealthEngine(NewHealthHandler(nil, nil, nil)), "/readyz")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestMetrics_JSON(t *testing.T) {
	m := metrics.New()
	m.RecordRequest()
	m.RecordCacheLookup(true, nil)
	m.ObserveStage(metrics.StageExtract, 4*time.Millisecond)

	p, err := pool.NewPool("test-metrics", pool.PipelinePoolConfig(3))
	require.NoError(t, err)
	defer p.Release()

	w := get(newHealthEngine(NewHealthHandler(nil, m, p)), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	assert.Equal(t, uint64(1), resp.Pipeline.RequestsTotal)
	assert.Equal(t, uint64(1), resp.Pipeline.CacheHits)
	assert.Equal(t, uint64(1), resp.Pipeline.Stages[metrics.StageExtract].Count)
	require.NotNil(t, resp.Pool)
	assert.Equal(t, 3, resp.Pool.Capacity)
}

func TestMetrics_Prometheus(t *testing.T) {
	m := metrics.New()
	m.RecordRequest()
	m.RecordSafetyBlock()

	w := get(newHealthEngine(NewHealthHandler(nil, m, nil)), "/metrics?format=prometheus")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "medreport_requests_total 1")
	assert.Contains(t, w.Body.String(), "medreport_safety_blocks_total 1")
}
