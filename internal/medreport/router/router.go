// Package router provides report service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/medreport/internal/medreport/handler"
	"github.com/kart-io/medreport/pkg/infra/middleware"
)

// multipartOverhead 留给 multipart 边界和字段头的余量，
// 使略超上限的文件仍由处理函数返回带上限说明的错误。
const multipartOverhead = 1 << 20

// Register registers the report service routes.
func Register(engine *gin.Engine, reportHandler *handler.ReportHandler, healthHandler *handler.HealthHandler) error {
	logger.Info("Registering report routes...")

	// Probes
	engine.GET("/healthz", healthHandler.Healthz)
	engine.GET("/readyz", healthHandler.Readyz)
	engine.GET("/metrics", healthHandler.Metrics)

	// Report API Routes
	v1 := engine.Group("/api/v1")
	{
		analyzeLimit := reportHandler.MaxUploadSize()
		v1.POST("/analyze",
			middleware.BodyLimit(analyzeLimit+multipartOverhead, handler.SizeError(analyzeLimit)),
			reportHandler.Analyze,
		)
		v1.POST("/upload",
			middleware.BodyLimit(handler.UploadMaxSize+multipartOverhead, handler.SizeError(handler.UploadMaxSize)),
			reportHandler.Upload,
		)
	}

	logger.Info("HTTP routes registered")
	return nil
}
