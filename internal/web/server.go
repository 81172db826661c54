// Package web provides the HTTP JSON API for CRM record intake.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/crmsync/internal/config"
	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/metrics"
	"github.com/JonMunkholm/crmsync/internal/web/middleware"
)

// HealthFunc reports whether a backing dependency is reachable.
type HealthFunc = func(ctx context.Context) error

// Server is the HTTP server for the record API.
type Server struct {
	cfg     *config.Config
	service *core.Service
	health  map[string]HealthFunc
	router  *chi.Mux
	server  *http.Server

	limiter       *rateLimiter
	importLimiter *rateLimiter
}

// NewServer creates a Server. health checks are reported by GET /healthz
// under their map keys.
func NewServer(cfg *config.Config, service *core.Service, health map[string]HealthFunc) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		health:  health,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(metrics.Middleware)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.limiter = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		s.router.Handle("/metrics", metrics.Handler())
	}

	timeout := chimw.Timeout(s.cfg.Server.RequestTimeout)

	importLimit := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		s.importLimiter = newRateLimiter(s.cfg.Rate.ImportLimit, time.Minute)
		importLimit = s.importLimiter.middleware
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

		r.With(timeout).Get("/kinds", s.handleListKinds)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Use(s.tenantCtx)

			r.Route("/{kind}", func(r chi.Router) {
				r.Use(s.kindCtx)

				// Imports carry their own timeout and concurrency limit.
				r.With(importLimit).Post("/import", s.handleImport)

				r.Group(func(r chi.Router) {
					r.Use(timeout)

					r.Post("/", s.handleCreate)
					r.Get("/", s.handleList)
					r.Get("/export", s.handleExport)
					r.Get("/{id}", s.handleGet)
					r.Put("/{id}", s.handleUpdate)
					r.Delete("/{id}", s.handleDelete)

					r.Post("/{id}/convert", s.handleConvert)
					r.Post("/{id}/reconcile", s.handleReconcile)
				})
			})
		})
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for running imports to drain
// and releases background resources.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.Close()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.service.Drain(ctx)
}

// Close stops the rate limiter cleanup loops.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.importLimiter != nil {
		s.importLimiter.stop()
	}
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
