package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/support-rag/internal/core/ports/driving"
	"github.com/custodia-labs/support-rag/internal/runtime"
)

// CheckFunc probes one backing service for readiness
type CheckFunc func(ctx context.Context) error

// Check is a named readiness probe. A failing required check makes the
// service unready; optional checks are only reported.
type Check struct {
	Name     string
	Required bool
	Probe    CheckFunc
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	authService   driving.AuthService
	docService    driving.DocumentService
	searchService driving.SearchService
	services      *runtime.Services
	checks        []Check
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	Version     string
	CORSOrigins []string
	Logger      *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8000,
		Version: "dev",
	}
}

// Deps are the services the HTTP surface drives
type Deps struct {
	AuthService     driving.AuthService
	DocumentService driving.DocumentService
	SearchService   driving.SearchService

	// Services is optional; when set /ready reports AI availability
	Services *runtime.Services

	Checks []Check
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Deps) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:        http.NewServeMux(),
		version:       cfg.Version,
		logger:        logger,
		authService:   deps.AuthService,
		docService:    deps.DocumentService,
		searchService: deps.SearchService,
		services:      deps.Services,
		checks:        deps.Checks,
	}
	s.setupRoutes()

	var handler http.Handler = s.router
	if len(cfg.CORSOrigins) > 0 {
		handler = NewCORSMiddleware(cfg.CORSOrigins).Handler(handler)
	}
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second, // answer synthesis waits on the LLM
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	auth := NewAuthMiddleware(s.authService, s.logger)
	protect := func(h http.HandlerFunc) http.Handler {
		return auth.Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Credentials are checked by the handler itself
	s.router.HandleFunc("POST /api/v1/auth/token", s.handleIssueToken)

	s.router.Handle("GET /api/v1/categories", protect(s.handleListCategories))

	s.router.Handle("POST /api/v1/documents", protect(s.handleUploadDocument))
	s.router.Handle("GET /api/v1/documents", protect(s.handleListDocuments))
	s.router.Handle("GET /api/v1/documents/{id}", protect(s.handleGetDocument))
	s.router.Handle("PUT /api/v1/documents/{id}", protect(s.handleUpdateDocument))
	s.router.Handle("DELETE /api/v1/documents/{id}", protect(s.handleDeleteDocument))

	s.router.Handle("POST /api/v1/query", protect(s.handleQuery))
	s.router.Handle("POST /api/v1/retrieve", protect(s.handleRetrieve))
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr, "version", s.version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
