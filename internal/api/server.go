// Package api provides the HTTP admin surface for Relay Core.
//
// It exposes health, a manual scan trigger, read-only automation and
// execution-history endpoints, and Prometheus metrics. Rule authoring
// lives in the owner-facing application; this server is for operators
// and schedulers.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/relayhq/relay-core/internal/automation"
	"github.com/relayhq/relay-core/internal/infrastructure/config"
	"github.com/relayhq/relay-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker reports the health of one infrastructure component.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Engine  *automation.Engine
	Repo    automation.Repository
	Ledger  automation.Ledger
	Metrics http.Handler // Prometheus scrape handler; optional
	Health  map[string]HealthChecker
	Version string
}

// Server is the HTTP admin server for Relay Core.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	engine  *automation.Engine
	repo    automation.Repository
	ledger  automation.Ledger
	metrics http.Handler
	health  map[string]HealthChecker
	version string
	server  *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("automation engine is required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("automation repository is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("execution ledger is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		engine:  deps.Engine,
		repo:    deps.Repo,
		ledger:  deps.Ledger,
		metrics: deps.Metrics,
		health:  deps.Health,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; stop it with Close().
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
