// Package http provides the gin HTTP server.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/medreport/pkg/infra/middleware"
	mwopts "github.com/kart-io/medreport/pkg/options/middleware"
	options "github.com/kart-io/medreport/pkg/options/server/http"
	apierrors "github.com/kart-io/medreport/pkg/utils/errors"
	"github.com/kart-io/medreport/pkg/utils/response"
)

// Server is the HTTP server implementation.
type Server struct {
	opts     *options.Options
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	errCh    chan error
}

// NewServer creates a gin engine with recovery, request ID and access log
// middleware installed, in that order.
func NewServer(serverOpts *options.Options, middlewareOpts *mwopts.Options) *Server {
	if serverOpts == nil {
		serverOpts = options.NewOptions()
	}
	if middlewareOpts == nil {
		middlewareOpts = mwopts.NewOptions()
	}
	_ = middlewareOpts.Complete()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		middleware.RecoveryWithOptions(*middlewareOpts.Recovery, nil),
		middleware.RequestIDWithOptions(*middlewareOpts.RequestID),
		middleware.LoggerWithOptions(*middlewareOpts.Logger),
	)

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrNotFound)
	})

	return &Server{
		opts:   serverOpts,
		engine: engine,
		errCh:  make(chan error, 1),
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Errors reports a serve failure after a successful Start.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Start binds the listen address and serves in the background. Bind errors
// are returned directly.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server stopped unexpectedly", "error", err.Error())
			s.errCh <- err
		}
	}()

	logger.Infow("HTTP server listening", "addr", ln.Addr().String())
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
