package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/geocontrol/geocontrol-core/internal/audit"
	"github.com/geocontrol/geocontrol-core/internal/auth"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/config"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/logging"
	"github.com/geocontrol/geocontrol-core/internal/measurement"
	"github.com/geocontrol/geocontrol-core/internal/topology"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultMaxBodyBytes applies when the config leaves the body limit unset.
const defaultMaxBodyBytes = 1 << 20

// HealthChecker reports whether a backing dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	Logger       *logging.Logger
	Topology     topology.Repository
	Measurements *measurement.Service
	Auth         *auth.Service
	Database     HealthChecker    // optional, reported by /health
	Audit        *audit.Recorder  // optional, records mutations
	AuditLogs    audit.Repository // optional, serves /audit
	Metrics      bool             // expose /metrics
	Version      string
}

// Server is the HTTP API server for GeoControl Core.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	logger       *logging.Logger
	topology     topology.Repository
	measurements *measurement.Service
	auth         *auth.Service
	database     HealthChecker
	audit        *audit.Recorder
	auditLogs    audit.Repository
	metrics      bool
	version      string
	server       *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Topology == nil {
		return nil, fmt.Errorf("topology repository is required")
	}
	if deps.Measurements == nil {
		return nil, fmt.Errorf("measurement service is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}

	return &Server{
		cfg:          deps.Config,
		logger:       deps.Logger,
		topology:     deps.Topology,
		measurements: deps.Measurements,
		auth:         deps.Auth,
		database:     deps.Database,
		audit:        deps.Audit,
		auditLogs:    deps.AuditLogs,
		metrics:      deps.Metrics,
		version:      deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
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
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

func (s *Server) maxBodyBytes() int64 {
	if s.cfg.MaxBodyBytes > 0 {
		return s.cfg.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}
