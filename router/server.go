package router

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/wintermutant/anvil-composable-tutorial/config"
	"github.com/wintermutant/anvil-composable-tutorial/errors"
)

// Server manages the HTTP server for the edge router
type Server struct {
	config     config.RouterConfig
	router     *Router
	logger     *slog.Logger
	httpServer *http.Server

	// Lifecycle
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once // Ensures stopChan is closed exactly once
}

// NewServer creates a new edge router HTTP server
func NewServer(cfg config.RouterConfig, router *Router, logger *slog.Logger) (*Server, error) {
	if router == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Server", "NewServer",
			"router is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:   cfg,
		router:   router,
		logger:   logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Setup configures the HTTP server
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:    s.config.BindAddress,
		Handler: s.router,
		// Read/write timeouts cover the whole forwarded exchange, so they
		// sit above the per-hop forward timeout
		ReadTimeout:  2 * s.config.ForwardTimeout,
		WriteTimeout: 2 * s.config.ForwardTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Server configured",
		"address", s.config.BindAddress,
		"api_prefix", s.config.APIPrefix,
		"forward_timeout", s.config.ForwardTimeout)

	return nil
}

// Start starts the HTTP server
// The ready channel is closed when the server is ready to accept connections
func (s *Server) Start(ctx context.Context, ready chan<- struct{}) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Server", "Start", "server already running")
	}
	s.running = true
	server := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.logger.Info("Server starting", "address", s.config.BindAddress)

		if ready != nil {
			close(ready)
		}

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
			select {
			case errChan <- err:
			case <-ctx.Done():
			case <-s.stopChan:
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Server context cancelled, shutting down")
		return s.Stop(30 * time.Second)

	case <-s.stopChan:
		s.logger.Info("Server stop requested")
		return nil

	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return errors.WrapFatal(err, "Server", "Start", "HTTP server failed")
	}
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Server stopping")

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server gracefully", "error", err)
		return errors.WrapTransient(err, "Server", "Stop", "graceful shutdown failed")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Server stopped")
	return nil
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
