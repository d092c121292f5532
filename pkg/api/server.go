package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ggnet/ggnetd/internal/logger"
	"github.com/ggnet/ggnetd/pkg/images"
	"github.com/ggnet/ggnetd/pkg/orchestrator"
	"github.com/ggnet/ggnetd/pkg/store"
)

// Server provides an HTTP server exposing the §6 programmatic interface.
//
// Endpoints:
//   - GET /health, /health/ready, /health/stores: liveness/readiness probes
//   - /api/v1/sessions/*: session lifecycle (start/stop/get/list/stats)
//   - /api/v1/machines/*: machine registration, boot-script, active-session
//   - /api/v1/images/*: image upload and CRUD
//
// The server supports graceful shutdown; when the Start context is
// cancelled, in-flight requests get a fixed 5-second shutdown timeout.
type Server struct {
	server       *http.Server
	db           store.Store
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests. The JWT secret (config.JWT.Secret or the GGNET_JWT_SECRET
// environment variable) is used only to attribute audit actors on incoming
// bearer tokens; no login or token-minting flow is exposed.
//
// Parameters:
//   - config: Server configuration (port, timeouts, JWT config)
//   - db: Persistence layer backing health checks and machine lookups
//   - orch: Session orchestrator driving start/stop/boot-script
//   - imgs: Image store backing upload/CRUD
//
// Returns a configured but not yet started Server, or an error if JWT
// configuration is invalid.
func NewServer(config APIConfig, db store.Store, orch *orchestrator.Orchestrator, imgs *images.Store) (*Server, error) {
	config.applyDefaults()

	jwtSecret := config.GetJWTSecret()
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters; set via %s env var or config", EnvJWTSecret)
	}

	router := NewRouter(db, orch, imgs, []byte(jwtSecret))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		db:     db,
		config: config,
	}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// The server listens on the configured port and serves API endpoints.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
//
// Parameters:
//   - ctx: Controls the server lifecycle. Cancellation triggers graceful shutdown.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the server fails to start or shutdown encounters an error
func (s *Server) Start(ctx context.Context) error {
	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", logger.KeyPort, s.config.Port)
		logger.Debug("API endpoints available",
			"health", fmt.Sprintf("http://localhost:%d/health", s.config.Port),
			"ready", fmt.Sprintf("http://localhost:%d/health/ready", s.config.Port),
			"stores", fmt.Sprintf("http://localhost:%d/health/stores", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Create new context with timeout for graceful shutdown
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
//
// Parameters:
//   - ctx: Controls the shutdown timeout. If cancelled, shutdown aborts immediately.
//
// Returns:
//   - nil on successful shutdown
//   - error if shutdown fails or times out
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
