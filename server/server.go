// Package server exposes the HTTP surface of the sync service: manual and
// webhook sync triggers, health and status reporting, and login.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zzin/campsync/sync"
)

// ServerOption configures the HTTP server router.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares adds middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// SyncRunner executes one reconciliation run.
type SyncRunner interface {
	PerformSync(ctx context.Context) (sync.SyncResult, error)
}

// HealthChecker probes the external boundaries.
type HealthChecker interface {
	Check(ctx context.Context) sync.SystemHealth
}

// JobStatusReporter reports the scheduled jobs and whether each is running.
type JobStatusReporter interface {
	JobStatus() map[string]bool
}

// NewServer creates and configures the HTTP router.
func NewServer(routes *Routes, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", routes.login)
		r.Get("/health", routes.health)
		r.Post("/webhook/sync", routes.webhookSync)

		r.Group(func(r chi.Router) {
			r.Use(routes.requireJWT)
			r.Get("/status", routes.status)
			r.Post("/sync/manual", routes.manualSync)
		})
	})

	return r
}

// LoggingMiddleware logs HTTP requests through the service logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debugf("HTTP %s %s %d %s %s",
				r.Method,
				r.URL.Path,
				ww.Status(),
				time.Since(start),
				middleware.GetReqID(r.Context()),
			)
		})
	}
}
