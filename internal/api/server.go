package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vendlink/vendlink-core/internal/audit"
	"github.com/vendlink/vendlink-core/internal/auth"
	"github.com/vendlink/vendlink-core/internal/infrastructure/config"
	"github.com/vendlink/vendlink-core/internal/infrastructure/logging"
	"github.com/vendlink/vendlink-core/internal/infrastructure/mqtt"
	"github.com/vendlink/vendlink-core/internal/registration"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// LifecycleRecorder records registration lifecycle events to the metrics
// store. Satisfied by the InfluxDB client; nil disables recording.
type LifecycleRecorder interface {
	WriteLifecycleEvent(hardwareID string, event string)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	Security      config.SecurityConfig
	Logger        *logging.Logger
	Registrations *registration.Service
	UserRepo      auth.UserRepository
	TokenRepo     auth.TokenRepository
	AuditRepo     audit.Repository
	Metrics       LifecycleRecorder // optional
	MQTT          *mqtt.Client      // optional, reported in /metrics
	DB            *sql.DB           // optional, reported in /metrics
	Version       string
}

// Server is the HTTP API server for VendLink Core.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	secCfg        config.SecurityConfig
	logger        *logging.Logger
	registrations *registration.Service
	userRepo      auth.UserRepository
	tokenRepo     auth.TokenRepository
	auditRepo     audit.Repository
	metrics       LifecycleRecorder
	mqtt          *mqtt.Client
	db            *sql.DB
	version       string
	startTime     time.Time
	server        *http.Server
	auditCh       chan *audit.AuditLog
	cancel        context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registration service, repos)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registrations == nil {
		return nil, fmt.Errorf("registration service is required")
	}
	if deps.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	// TokenRepo, AuditRepo, Metrics, MQTT, and DB are optional; the
	// corresponding features degrade gracefully when absent.

	s := &Server{
		cfg:           deps.Config,
		secCfg:        deps.Security,
		logger:        deps.Logger,
		registrations: deps.Registrations,
		userRepo:      deps.UserRepo,
		tokenRepo:     deps.TokenRepo,
		auditRepo:     deps.AuditRepo,
		metrics:       deps.Metrics,
		mqtt:          deps.MQTT,
		db:            deps.DB,
		version:       deps.Version,
		startTime:     time.Now(),
	}

	if deps.AuditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the audit log writer, and launches the
// HTTP listener in a background goroutine. The server can be stopped
// with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Start the serial audit log writer
	if s.auditCh != nil {
		go s.drainAuditLog(srvCtx)
	}

	// Build router
	router := s.buildRouter()

	// Create HTTP server
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (audit writer)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
