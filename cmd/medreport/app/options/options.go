// Package options contains flags and options for initializing the report server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/medreport/internal/medreport"
	"github.com/kart-io/medreport/pkg/infra/app/cliflag"
	archiveopts "github.com/kart-io/medreport/pkg/options/archive"
	cacheopts "github.com/kart-io/medreport/pkg/options/cache"
	llmopts "github.com/kart-io/medreport/pkg/options/llm"
	logopts "github.com/kart-io/medreport/pkg/options/logger"
	middlewareopts "github.com/kart-io/medreport/pkg/options/middleware"
	pipelineopts "github.com/kart-io/medreport/pkg/options/pipeline"
	redisopts "github.com/kart-io/medreport/pkg/options/redis"
	httpopts "github.com/kart-io/medreport/pkg/options/server/http"
)

// LLMOptions holds the provider of one pipeline stage under the <stage>.llm.* keys.
type LLMOptions struct {
	LLM *llmopts.ProviderOptions `json:"llm" mapstructure:"llm"`
}

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// CacheOptions contains result and pattern cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// RedisOptions is the cache's Redis connection, exposed under redis.*.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// PatternLLM contains the pattern synthesis provider.
	PatternLLM *LLMOptions `json:"pattern-llm" mapstructure:"pattern-llm"`

	// AnalysisLLM contains the report analysis provider.
	AnalysisLLM *LLMOptions `json:"analysis-llm" mapstructure:"analysis-llm"`

	// SafetyLLM contains the content safety provider.
	SafetyLLM *LLMOptions `json:"safety-llm" mapstructure:"safety-llm"`

	// SafetyOptions toggles the safety classifier.
	SafetyOptions *pipelineopts.SafetyOptions `json:"safety" mapstructure:"safety"`

	// PipelineOptions contains pipeline configuration.
	PipelineOptions *pipelineopts.Options `json:"pipeline" mapstructure:"pipeline"`

	// ArchiveOptions contains upload archive configuration.
	ArchiveOptions *archiveopts.Options `json:"archive" mapstructure:"archive"`

	// MiddlewareOptions contains HTTP middleware configuration.
	MiddlewareOptions *middlewareopts.Options `json:"middleware" mapstructure:"middleware"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	httpOpts := httpopts.NewOptions()
	httpOpts.Addr = ":8090"

	// redis.* 与 cache 共用同一个连接配置
	cacheOpts := cacheopts.NewOptions()

	return &ServerOptions{
		HTTPOptions:       httpOpts,
		LogOptions:        logopts.NewOptions(),
		CacheOptions:      cacheOpts,
		RedisOptions:      cacheOpts.Redis,
		PatternLLM:        &LLMOptions{LLM: llmopts.NewPatternOptions()},
		AnalysisLLM:       &LLMOptions{LLM: llmopts.NewAnalysisOptions()},
		SafetyLLM:         &LLMOptions{LLM: llmopts.NewSafetyOptions()},
		SafetyOptions:     pipelineopts.NewSafetyOptions(),
		PipelineOptions:   pipelineopts.NewOptions(),
		ArchiveOptions:    archiveopts.NewOptions(),
		MiddlewareOptions: middlewareopts.NewOptions(),
		ShutdownTimeout:   30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.PatternLLM.LLM.AddFlags(fss.FlagSet("pattern-llm"), "pattern-llm")
	o.AnalysisLLM.LLM.AddFlags(fss.FlagSet("analysis-llm"), "analysis-llm")
	o.SafetyLLM.LLM.AddFlags(fss.FlagSet("safety-llm"), "safety-llm")
	o.SafetyOptions.AddFlags(fss.FlagSet("safety-llm"))
	o.PipelineOptions.AddFlags(fss.FlagSet("pipeline"))
	o.ArchiveOptions.AddFlags(fss.FlagSet("archive"))
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if o.RedisOptions != nil {
		o.CacheOptions.Redis = o.RedisOptions
	}
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.PatternLLM.LLM.Complete(); err != nil {
		return fmt.Errorf("pattern-llm: %w", err)
	}
	if err := o.AnalysisLLM.LLM.Complete(); err != nil {
		return fmt.Errorf("analysis-llm: %w", err)
	}
	if err := o.SafetyLLM.LLM.Complete(); err != nil {
		return fmt.Errorf("safety-llm: %w", err)
	}
	if err := o.PipelineOptions.Complete(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := o.ArchiveOptions.Complete(); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return o.MiddlewareOptions.Complete()
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, prefixed("pattern-llm.", o.PatternLLM.LLM.Validate())...)
	errs = append(errs, prefixed("analysis-llm.", o.AnalysisLLM.LLM.Validate())...)
	if o.SafetyOptions.Enabled {
		errs = append(errs, prefixed("safety-llm.", o.SafetyLLM.LLM.Validate())...)
	}
	errs = append(errs, o.PipelineOptions.Validate()...)
	errs = append(errs, o.ArchiveOptions.Validate()...)
	errs = append(errs, o.MiddlewareOptions.Validate()...)
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must be positive"))
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a medreport.Config based on ServerOptions.
func (o *ServerOptions) Config() (*medreport.Config, error) {
	return &medreport.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		CacheOptions:      o.CacheOptions,
		PatternOptions:    o.PatternLLM.LLM,
		AnalysisOptions:   o.AnalysisLLM.LLM,
		SafetyLLMOptions:  o.SafetyLLM.LLM,
		SafetyOptions:     o.SafetyOptions,
		PipelineOptions:   o.PipelineOptions,
		ArchiveOptions:    o.ArchiveOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		ShutdownTimeout:   o.ShutdownTimeout,
	}, nil
}

func prefixed(stage string, errs []error) []error {
	for i, err := range errs {
		errs[i] = fmt.Errorf("%s%w", stage, err)
	}
	return errs
}
