package registry

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/wintermutant/anvil-composable-tutorial/config"
	"github.com/wintermutant/anvil-composable-tutorial/errors"
)

// Server manages the HTTP server for the name registry API
type Server struct {
	config     config.RegistryConfig
	service    *Service
	logger     *slog.Logger
	httpServer *http.Server
	mux        *http.ServeMux

	// Lifecycle
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once // Ensures stopChan is closed exactly once
}

// NewServer creates a new registry HTTP server
func NewServer(cfg config.RegistryConfig, service *Service, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Server", "NewServer",
			"service is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:   cfg,
		service:  service,
		logger:   logger,
		mux:      http.NewServeMux(),
		stopChan: make(chan struct{}),
	}, nil
}

// Setup configures the HTTP server and routes
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.service.RegisterHTTPHandlers(s.mux)

	// CORS middleware wrapper
	var handler http.Handler = s.mux
	if s.config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}

	s.httpServer = &http.Server{
		Addr:         s.config.BindAddress,
		Handler:      handler,
		ReadTimeout:  s.config.RequestTimeout,
		WriteTimeout: s.config.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Server configured",
		"address", s.config.BindAddress,
		"cors", s.config.EnableCORS,
		"timeout", s.config.RequestTimeout)

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
		defer close(errChan) // Signal goroutine exit
		s.logger.Info("Server starting", "address", s.config.BindAddress)

		// ListenAndServe blocks after binding the socket,
		// so we signal ready immediately before the call
		if ready != nil {
			close(ready)
		}

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
			// Non-blocking send - ensures goroutine doesn't leak if select is on another case
			select {
			case errChan <- err:
			case <-ctx.Done():
				// Context cancelled, exit gracefully
			case <-s.stopChan:
				// Stop called, exit gracefully
			}
		}
	}()

	// Wait for context cancellation or error
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
		return nil // Already stopped
	}
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Server stopping")

	// Signal stop channel (idempotent - safe to call multiple times)
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

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range s.config.CORSOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
