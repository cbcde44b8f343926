// Package medreport provides the report interpretation service server.
package medreport

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/medreport/internal/medreport/biz"
	"github.com/kart-io/medreport/internal/medreport/handler"
	"github.com/kart-io/medreport/internal/medreport/metrics"
	"github.com/kart-io/medreport/internal/medreport/router"
	"github.com/kart-io/medreport/pkg/cache"
	"github.com/kart-io/medreport/pkg/infra/app"
	"github.com/kart-io/medreport/pkg/infra/pool"
	"github.com/kart-io/medreport/pkg/infra/server"
	httpserver "github.com/kart-io/medreport/pkg/infra/server/http"
	"github.com/kart-io/medreport/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/medreport/pkg/llm/gemini"
	_ "github.com/kart-io/medreport/pkg/llm/ollama"
	_ "github.com/kart-io/medreport/pkg/llm/openai"
	archiveopts "github.com/kart-io/medreport/pkg/options/archive"
	cacheopts "github.com/kart-io/medreport/pkg/options/cache"
	llmopts "github.com/kart-io/medreport/pkg/options/llm"
	logopts "github.com/kart-io/medreport/pkg/options/logger"
	middlewareopts "github.com/kart-io/medreport/pkg/options/middleware"
	pipelineopts "github.com/kart-io/medreport/pkg/options/pipeline"
	httpopts "github.com/kart-io/medreport/pkg/options/server/http"
	"github.com/kart-io/medreport/pkg/pdftext"
	"github.com/kart-io/medreport/pkg/storage"
)

// Name is the name of the application.
const Name = "medreport"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	CacheOptions      *cacheopts.Options
	PatternOptions    *llmopts.ProviderOptions
	AnalysisOptions   *llmopts.ProviderOptions
	SafetyLLMOptions  *llmopts.ProviderOptions
	SafetyOptions     *pipelineopts.SafetyOptions
	PipelineOptions   *pipelineopts.Options
	ArchiveOptions    *archiveopts.Options
	MiddlewareOptions *middlewareopts.Options
	ShutdownTimeout   time.Duration
}

// Server represents the report server.
type Server struct {
	srv             *server.Manager
	http            *httpserver.Server
	shutdownTimeout time.Duration
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting report service...", app.VersionFields()...)

	// 初始化失败时释放已创建的资源
	var closers []func(context.Context) error
	ok := false
	defer func() {
		if ok {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i](context.Background())
		}
	}()

	// 2. 初始化 PDF 文本提取
	extractor, err := pdftext.New(cfg.PipelineOptions.Extractor)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pdf extractor: %w", err)
	}
	logger.Infow("PDF extractor initialized", "engine", extractor.Engine())

	// 3. 初始化缓存存储
	store, err := cache.New(ctx, cfg.CacheOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	closers = append(closers, func(context.Context) error { return store.Close() })
	resultCache := biz.NewResultCache(store, &biz.ResultCacheConfig{
		Enabled:       cfg.CacheOptions.Enabled,
		ResultTTL:     cfg.CacheOptions.ResultTTL,
		PatternTTL:    cfg.CacheOptions.PatternTTL,
		ResultPrefix:  cfg.CacheOptions.ResultPrefix,
		PatternPrefix: cfg.CacheOptions.PatternPrefix,
	})
	logger.Infow("Cache initialized",
		"enabled", resultCache.Enabled(),
		"backend", store.Name(),
		"result_ttl", cfg.CacheOptions.ResultTTL,
		"pattern_ttl", cfg.CacheOptions.PatternTTL,
	)

	// 4. 初始化 LLM 供应商
	patternProvider, err := newProvider("pattern", cfg.PatternOptions)
	if err != nil {
		return nil, err
	}
	closers = appendCloser(closers, patternProvider)

	analysisProvider, err := newProvider("analysis", cfg.AnalysisOptions)
	if err != nil {
		return nil, err
	}
	closers = appendCloser(closers, analysisProvider)

	var safety *biz.SafetyClassifier
	if cfg.SafetyOptions != nil && cfg.SafetyOptions.Enabled {
		safetyProvider, err := newProvider("safety", cfg.SafetyLLMOptions)
		if err != nil {
			return nil, err
		}
		closers = appendCloser(closers, safetyProvider)
		safety = biz.NewSafetyClassifier(safetyProvider, &biz.SafetyConfig{
			Temperature: cfg.SafetyLLMOptions.Temperature,
			MaxTokens:   cfg.SafetyLLMOptions.MaxTokens,
		})
	} else {
		logger.Info("Safety classifier is disabled")
	}

	// 5. 初始化工作池
	workers, err := pool.NewPool("pipeline", pool.PipelinePoolConfig(cfg.PipelineOptions.MaxWorkers))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize worker pool: %w", err)
	}
	closers = append(closers, func(context.Context) error {
		return workers.ReleaseTimeout(cfg.ShutdownTimeout)
	})
	logger.Infow("Worker pool initialized", "capacity", workers.Cap())

	// 6. 初始化 Biz 层
	reportMetrics := metrics.New()
	reportService := biz.NewReportService(biz.Dependencies{
		Extractor: extractor,
		Cache:     resultCache,
		Synthesizer: biz.NewPatternSynthesizer(patternProvider, resultCache, &biz.PatternSynthesizerConfig{
			Temperature: temperature(cfg.PatternOptions.Temperature),
			MaxTokens:   cfg.PatternOptions.MaxTokens,
		}),
		Analyzer: biz.NewAnalyzer(analysisProvider, &biz.AnalyzerConfig{
			Temperature: cfg.AnalysisOptions.Temperature,
			MaxTokens:   cfg.AnalysisOptions.MaxTokens,
		}),
		Safety:  safety,
		Pool:    workers,
		Metrics: reportMetrics,
	}, &biz.ServiceConfig{
		Mode:           cfg.PipelineOptions.Mode,
		RequestTimeout: cfg.PipelineOptions.RequestTimeout,
	})
	logger.Infow("Report service initialized",
		"mode", cfg.PipelineOptions.Mode,
		"request_timeout", cfg.PipelineOptions.RequestTimeout,
		"safety.enabled", safety != nil,
	)

	// 7. 初始化上传归档
	archive, err := storage.New(ctx, cfg.ArchiveOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}
	logger.Infow("Upload archive initialized", "backend", archive.Name())

	// 8. 初始化 Handler 层
	reportHandler := handler.NewReportHandler(reportService, archive, cfg.PipelineOptions.MaxUploadSize)
	healthHandler := handler.NewHealthHandler(reportService, reportMetrics, workers)
	logger.Info("Handler layer initialized")

	// 9. 初始化服务器
	httpServer := httpserver.NewServer(cfg.HTTPOptions, cfg.MiddlewareOptions)
	serverManager := server.NewManager(httpServer)
	// 按创建的逆序释放：先排空工作池，再关闭缓存连接
	for i := len(closers) - 1; i >= 0; i-- {
		serverManager.OnStop(closers[i])
	}

	// 10. 注册路由
	if err := router.Register(httpServer.Engine(), reportHandler, healthHandler); err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	ok = true
	logger.Info("Report service is ready")
	return &Server{
		srv:             serverManager,
		http:            httpServer,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// Run starts the server and blocks until ctx is done or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		select {
		case err := <-s.http.Errors():
			errCh <- err
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.srv.Run(ctx, s.shutdownTimeout); err != nil {
		return err
	}
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// Addr returns the bound HTTP address once the server has started.
func (s *Server) Addr() string {
	return s.http.Addr()
}

func newProvider(stage string, opts *llmopts.ProviderOptions) (llm.ChatProvider, error) {
	provider, err := llm.NewChatProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", stage, err)
	}
	logger.Infow("Chat provider initialized",
		"stage", stage,
		"provider", opts.Provider,
		"model", opts.Model,
	)
	return provider, nil
}

func appendCloser(closers []func(context.Context) error, provider llm.ChatProvider) []func(context.Context) error {
	if c, ok := provider.(io.Closer); ok {
		closers = append(closers, func(context.Context) error { return c.Close() })
	}
	return closers
}

// temperature 0 表示使用供应商默认值。
func temperature(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  HTTP: %s\n", cfg.HTTPOptions.Addr)
	fmt.Printf("  Mode: %s\n", cfg.PipelineOptions.Mode)
	fmt.Printf("  Pattern LLM: %s (%s)\n", cfg.PatternOptions.Provider, cfg.PatternOptions.Model)
	fmt.Printf("  Analysis LLM: %s (%s)\n", cfg.AnalysisOptions.Provider, cfg.AnalysisOptions.Model)
	if cfg.SafetyOptions != nil && cfg.SafetyOptions.Enabled {
		fmt.Printf("  Safety LLM: %s (%s)\n", cfg.SafetyLLMOptions.Provider, cfg.SafetyLLMOptions.Model)
	}
	if cfg.CacheOptions.Enabled {
		fmt.Printf("  Cache: %s\n", cfg.CacheOptions.Backend)
	} else {
		fmt.Printf("  Cache: disabled\n")
	}
}
