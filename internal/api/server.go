package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/xxl-executor/internal/protocol"
)

// JobRunner starts job invocations and answers registry queries.
type JobRunner interface {
	Run(req protocol.TriggerParam) error
	IsRunning(jobID int64) bool
	Running() int
}

// LogReader serves line ranges of job logs.
type LogReader interface {
	Read(scheduleTime, logID int64, fromLine int) (protocol.LogResult, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// BasePath prefixes every route, e.g. "/" or "/executor".
	BasePath string
	// AccessToken is compared against the XXL-JOB-ACCESS-TOKEN header. Empty
	// disables the check.
	AccessToken string
}

// Server serves the executor side of the scheduling protocol.
type Server struct {
	config    Config
	runner    JobRunner
	logs      LogReader
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance
func New(config Config, runner JobRunner, logs LogReader, logger *slog.Logger) *Server {
	config.BasePath = normalizeBasePath(config.BasePath)
	return &Server{
		config:    config,
		runner:    runner,
		logs:      logs,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// normalizeBasePath returns "" for the root or "/prefix" without a trailing
// slash.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen, "base_path", s.config.BasePath+"/")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	routes := func(r chi.Router) {
		// Unauthenticated ops endpoint.
		r.Get("/healthz", s.handleHealthz)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/beat", s.handleBeat)
			r.Post("/idleBeat", s.handleIdleBeat)
			r.Post("/run", s.handleRun)
			r.Post("/kill", s.handleKill)
			r.Post("/log", s.handleLog)
		})
	}

	if s.config.BasePath == "" {
		routes(r)
	} else {
		r.Route(s.config.BasePath, routes)
	}
	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
