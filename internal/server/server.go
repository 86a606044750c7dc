// Package server exposes the detection, prioritization, compatibility and
// cache APIs over a local HTTP server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"toolscan/internal/cache"
	"toolscan/internal/compat"
	"toolscan/internal/detect"
	"toolscan/internal/priority"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server is the local toolscan report server.
type Server struct {
	cfg         Config
	coordinator *detect.Coordinator
	prioritizer *priority.Prioritizer
	engine      *compat.Engine
	store       *cache.Cache
	router      chi.Router
	httpServer  *http.Server
	logger      *log.Logger
}

// New creates a report server over the assembled pipeline.
func New(cfg Config, co *detect.Coordinator, p *priority.Prioritizer, e *compat.Engine, c *cache.Cache) *Server {
	s := &Server{
		cfg:         cfg,
		coordinator: co,
		prioritizer: p,
		engine:      e,
		store:       c,
		logger:      log.With("component", "server"),
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	detect.RegisterRoutes(r, s.coordinator)
	priority.RegisterRoutes(r, s.prioritizer, s.coordinator)
	compat.RegisterRoutes(r, s.engine)
	cache.RegisterRoutes(r, s.store)

	return r
}

// Handler returns the configured router (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.cfg.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("report server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("report server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
