// Package api exposes ranking, comparison and run history over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/nonprofit-ranker/internal/ranking"
	"github.com/sells-group/nonprofit-ranker/internal/store"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 10 << 20

// DefaultRequestTimeout bounds a single ranking request.
const DefaultRequestTimeout = 2 * time.Minute

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	engine      *ranking.Engine
	store       store.Store
	metrics     http.Handler
	corsOrigins []string
	timeout     time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables run persistence and the /v1/runs endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Server around engine.
func New(engine *ranking.Engine, opts ...Option) *Server {
	s := &Server{
		engine:      engine,
		corsOrigins: []string{"*"},
		timeout:     DefaultRequestTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/rank", s.handleRank)
		r.Post("/compare", s.handleCompare)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Delete("/runs/{id}", s.handleDeleteRun)
	})
	return r
}
