// Package server exposes the dispatch engine over a REST API.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/testherd/internal/config"
	"github.com/me/testherd/internal/engine"
)

// Server is the testherd REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	engine    *engine.Engine
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, eng *engine.Engine, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		engine:    eng,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Worker protocol
		r.Post("/tests/next", s.handleNextTest)
		r.Post("/results", s.handleSubmitResult)

		// Catalog
		r.Post("/tests", s.handleImportTests)

		// Reports
		r.Get("/topfails", s.handleTopFails)
		r.Get("/stats", s.handleStats)
		r.Get("/distr/fails", s.handleFailsDistr)
		r.Get("/distr/skips", s.handleSkipsDistr)
		r.Get("/regressions/{new}/{old}", s.handleRegressions)
		r.Get("/fixes/{new}/{old}", s.handleFixes)
	})
}
