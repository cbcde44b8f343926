// Package app provides the report server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/medreport/cmd/medreport/app/options"
	"github.com/kart-io/medreport/internal/medreport"
	"github.com/kart-io/medreport/pkg/infra/app"
)

const (
	// commandDesc is the description of the command.
	commandDesc = `Medical Report Analysis Service

Interprets uploaded laboratory report PDFs with large language models.

This server provides:
  - PDF text extraction with pluggable engines
  - Sample-driven extraction of result lines before analysis
  - Structured interpretation with a safe default on failure
  - Redis backed caching of results and extraction patterns`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(medreport.Name),
		app.WithDescription(commandDesc),
		app.WithDotEnv(".env"),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
