// Package api provides the HTTP surface the dashboard UI talks to. It
// exposes the roster and the orchestrator entry points; it owns no
// reconciliation logic of its own.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/account-reconciler/internal/freshness"
	"github.com/account-reconciler/internal/logging"
	"github.com/account-reconciler/internal/models"
	"github.com/account-reconciler/internal/orchestrator"
	"github.com/account-reconciler/internal/roster"
	"github.com/gorilla/mux"
)

// OrchestratorInterface defines the orchestrator operations the API exposes,
// for dependency injection and testing.
type OrchestratorInterface interface {
	QuickFetch(ctx context.Context)
	FetchAccounts()
	ValidateAllInBackground(ctx context.Context)
	RetryExceptionAccounts(ctx context.Context)
	BatchRefresh(ctx context.Context, ids []int64) *orchestrator.RefreshResult
	ForceRefresh(ctx context.Context) *orchestrator.RefreshResult
	DeleteAccount(ctx context.Context, id int64) error
	ResetState()
}

// RosterReader defines the read access the API needs on the roster.
type RosterReader interface {
	Accounts() []*models.Account
	ByID(id int64) *models.Account
	ByPlatform(platform string) []*models.Account
	RefreshStatus() models.RefreshStatus
}

// Server represents the HTTP API server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	repo         RosterReader
	tracker      *freshness.Tracker
	orchestrator OrchestratorInterface
	limiter      *ClientRateLimiter
	logger       *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr         string                // required
	Repository   RosterReader          // required
	Tracker      *freshness.Tracker    // required
	Orchestrator OrchestratorInterface // required
	Logger       *logging.Logger       // optional

	// RequestsPerSecond caps requests per client. Default: 20.
	RequestsPerSecond float64
}

// NewServer creates the API server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("listen address cannot be empty")
	}
	if cfg.Repository == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("freshness tracker cannot be nil")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 20
	}

	s := &Server{
		router:       mux.NewRouter(),
		repo:         cfg.Repository,
		tracker:      cfg.Tracker,
		orchestrator: cfg.Orchestrator,
		limiter:      NewClientRateLimiter(rps, 10),
		logger:       logger.WithField("component", "api"),
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.limiter.Middleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/refresh-status", s.handleRefreshStatus).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/freshness", s.handleFreshness).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/fetch/quick", s.handleQuickFetch).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/fetch", s.handleFetch).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/validate", s.handleValidateAll).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/retry", s.handleRetryExceptions).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/refresh/force", s.handleForceRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/refresh/batch", s.handleBatchRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/reset", s.handleReset).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{id:[0-9]+}", s.handleGetAccount).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id:[0-9]+}", s.handleDeleteAccount).Methods(http.MethodDelete)
}

// Router returns the HTTP handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	})
}

var _ RosterReader = (*roster.Repository)(nil)
var _ OrchestratorInterface = (*orchestrator.Orchestrator)(nil)
