package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Manager starts servers in registration order and stops them in reverse.
type Manager struct {
	mu      sync.Mutex
	servers []Runnable
	closers []func(context.Context) error
	started bool
}

// NewManager creates a manager for servers.
func NewManager(servers ...Runnable) *Manager {
	return &Manager{servers: servers}
}

// AddServer adds a server to the manager.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// OnStop registers a cleanup run after every server has stopped.
func (m *Manager) OnStop(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, fn)
}

// Start starts all servers. On failure the servers already started are stopped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("server manager already started")
	}

	for i, s := range m.servers {
		if err := s.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.servers[j].Stop(ctx)
			}
			return fmt.Errorf("failed to start server %s: %w", s.Name(), err)
		}
		logger.Infow("Server started", "name", s.Name())
	}

	m.started = true
	return nil
}

// Stop stops all servers, then runs the registered cleanups.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false

	var errs []error
	for i := len(m.servers) - 1; i >= 0; i-- {
		s := m.servers[i]
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", s.Name(), err))
			continue
		}
		logger.Infow("Server stopped", "name", s.Name())
	}
	for _, fn := range m.closers {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return utilerrors.NewAggregate(errs)
}

// Run starts all servers, blocks until ctx is done, then shuts down within
// shutdownTimeout.
func (m *Manager) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return m.Stop(shutdownCtx)
}
