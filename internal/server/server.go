// Package server provides the HTTP server that wires all services together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sgannotator/sg-annotator/internal/bus"
	"github.com/sgannotator/sg-annotator/internal/config"
	"github.com/sgannotator/sg-annotator/internal/dataset"
	"github.com/sgannotator/sg-annotator/internal/evaluation"
	"github.com/sgannotator/sg-annotator/internal/history"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
	"github.com/sgannotator/sg-annotator/internal/pkg/middleware"
	"github.com/sgannotator/sg-annotator/internal/provider"
)

// Server wires the dataset, evaluation, and generation services behind
// one HTTP listener.
type Server struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *http.Server

	// Services
	eventBus bus.Bus
	history  history.Store
	dataset  *dataset.Service

	// Handlers
	datasetHandler  *dataset.Handler
	evalHandler     *evaluation.Handler
	generateHandler *provider.Handler

	rateLimiter *middleware.RateLimiter

	mu      sync.RWMutex
	started bool
}

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// New creates a server with all dependencies wired from the configuration.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	s := &Server{
		cfg: cfg,
		log: log,
	}

	eventBus, err := bus.NewBus(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	s.eventBus = eventBus

	hist, err := history.NewStore(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("failed to create history store: %w", err)
	}
	s.history = hist

	s.dataset = dataset.NewService(cfg.Dataset, s.eventBus, log)
	s.datasetHandler = dataset.NewHandler(s.dataset)

	evaluator := evaluation.NewEvaluator(cfg.Eval, log)
	s.evalHandler = evaluation.NewHandler(evaluator, s.dataset, s.history, s.eventBus, log)

	// Generation is optional. A misconfigured provider disables the
	// /generate route instead of blocking startup.
	gen, err := provider.New(cfg.Provider, log)
	if err != nil {
		log.WithError(err).Warn("generation provider unavailable, /generate disabled")
	} else {
		runner := provider.NewRunner(gen, cfg.Provider, log)
		s.generateHandler = provider.NewHandler(runner, s.eventBus, log)
	}

	if cfg.Security.RateLimit > 0 {
		s.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(cfg.Security.RateLimit),
			Burst:             cfg.Security.RateLimit * 2,
			CleanupInterval:   time.Minute,
		})
		log.Info("rate limiting enabled", "requests_per_second", cfg.Security.RateLimit)
	}

	return s, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	addr := s.cfg.Address()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.buildHandler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.log.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server and closes services.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Error("HTTP shutdown error")
		}
	}

	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.log.WithError(err).Warn("error closing history store")
		}
	}
	if s.eventBus != nil {
		if err := s.eventBus.Close(); err != nil {
			s.log.WithError(err).Warn("error closing event bus")
		}
	}

	s.started = false
	s.log.Info("server stopped")
	return nil
}

// Handler returns the fully wired HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.buildHandler()
}

// Health reports whether the server is running.
func (s *Server) Health() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	s.datasetHandler.RegisterRoutes(mux)
	s.evalHandler.RegisterRoutes(mux)
	if s.generateHandler != nil {
		s.generateHandler.RegisterRoutes(mux)
	}

	handler := http.Handler(mux)
	handler = loggingMiddleware(handler, s.log)
	handler = corsMiddleware(handler, s.cfg.Security.CORSOrigins)
	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware(handler)
	}
	return handler
}

// corsMiddleware adds CORS headers for the configured origins.
func corsMiddleware(next http.Handler, origins string) http.Handler {
	allowed := strings.Split(origins, ",")
	for i := range allowed {
		allowed[i] = strings.TrimSpace(allowed[i])
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := allowOrigin(allowed, r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func allowOrigin(allowed []string, origin string) string {
	for _, a := range allowed {
		if a == "*" {
			return "*"
		}
		if a != "" && a == origin {
			return origin
		}
	}
	return ""
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
