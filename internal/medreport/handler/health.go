package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/medreport/internal/medreport/metrics"
	"github.com/kart-io/medreport/pkg/infra/pool"
	apierrors "github.com/kart-io/medreport/pkg/utils/errors"
	"github.com/kart-io/medreport/pkg/utils/response"
)

const (
	readyTimeout     = 2 * time.Second
	metricsNamespace = "medreport"
)

// ReadinessChecker reports whether the service dependencies are reachable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler serves liveness, readiness and metrics endpoints.
type HealthHandler struct {
	checker ReadinessChecker
	metrics *metrics.ReportMetrics
	pool    *pool.Pool
}

// NewHealthHandler creates a new HealthHandler. pool may be nil.
func NewHealthHandler(checker ReadinessChecker, m *metrics.ReportMetrics, p *pool.Pool) *HealthHandler {
	if m == nil {
		m = metrics.New()
	}
	return &HealthHandler{checker: checker, metrics: m, pool: p}
}

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// MetricsResponse is the JSON body of the metrics endpoint.
type MetricsResponse struct {
	Pipeline metrics.Snapshot `json:"pipeline"`
	Pool     *pool.Stats      `json:"pool,omitempty"`
}

// Healthz answers as long as the process serves requests.
func (h *HealthHandler) Healthz(c *gin.Context) {
	response.OK(c, HealthStatus{Status: "ok"})
}

// Readyz pings the cache store.
func (h *HealthHandler) Readyz(c *gin.Context) {
	if h.checker == nil {
		response.OK(c, HealthStatus{Status: "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := h.checker.Ready(ctx); err != nil {
		logger.Warnw("readiness check failed", "error", err.Error(), "stage", "cache")
		response.Fail(c, apierrors.ErrUnavailable.WithCause(err).WithDetails(err.Error()))
		return
	}
	response.OK(c, HealthStatus{Status: "ready"})
}

// Metrics returns pipeline counters as JSON, or Prometheus text with ?format=prometheus.
func (h *HealthHandler) Metrics(c *gin.Context) {
	if c.Query("format") == "prometheus" {
		c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.metrics.Export(metricsNamespace)))
		return
	}

	resp := MetricsResponse{Pipeline: h.metrics.Snapshot()}
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}
	response.OK(c, resp)
}
