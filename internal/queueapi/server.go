// Package queueapi exposes queue counts and queue membership to the intake dashboard.
package queueapi

import (
	"context"
	"net/http"
	"time"

	"intake-crm-workers/internal/common/logger"
	"intake-crm-workers/internal/leadstore"
	"intake-crm-workers/internal/snapshot"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invalidator drops a cached snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// DeletedLeadsReader backs the deleted-lead recovery view.
type DeletedLeadsReader interface {
	FetchDeletedLeads(ctx context.Context) ([]leadstore.DeletedLead, error)
}

// Check is a named readiness check.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Options struct {
	Snapshots    snapshot.Getter
	Invalidator  Invalidator
	DeletedLeads DeletedLeadsReader
	Checks       []Check
	Logger       logger.Logger
	Now          func() time.Time
}

type Server struct {
	snapshots    snapshot.Getter
	invalidator  Invalidator
	deletedLeads DeletedLeadsReader
	checks       []Check
	logger       logger.Logger
	now          func() time.Time
}

func NewServer(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Server{
		snapshots:    opts.Snapshots,
		invalidator:  opts.Invalidator,
		deletedLeads: opts.DeletedLeads,
		checks:       opts.Checks,
		logger:       opts.Logger.WithFields(map[string]interface{}{"component": "queueapi"}),
		now:          opts.Now,
	}
}

// Routes builds the router. /metrics serves the default Prometheus registry.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/queues", func(r chi.Router) {
			r.Get("/", s.handleListQueues)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/{queueId}/leads", s.handleQueueLeads)
		})
		r.Get("/leads/deleted", s.handleDeletedLeads)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}
