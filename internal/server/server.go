package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/attractor/internal/router"
	"github.com/lazypower/attractor/internal/store"
)

const defaultMaxIterations = 100

// Server is the attractor HTTP API server.
type Server struct {
	db            *store.DB
	rt            *router.Router
	mux           chi.Router
	version       string
	maxIterations int
	started       time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMaxIterations bounds convergence runs started by the API.
func WithMaxIterations(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// New creates a new Server over the catalogue database and the router.
func New(db *store.DB, rt *router.Router, version string, opts ...Option) *Server {
	s := &Server{
		db:            db,
		rt:            rt,
		version:       version,
		maxIterations: defaultMaxIterations,
		started:       time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/basins", s.handleListBasins)
		r.Post("/basins", s.handleAddBasin)
		r.Get("/basins/{name}", s.handleGetBasin)
		r.Post("/basins/{name}/stability", s.handleStability)

		r.Post("/route", s.handleRoute)
		r.Post("/reinforce", s.handleReinforce)
		r.Get("/nearest", s.handleNearest)
		r.Get("/capacity", s.handleCapacity)
		r.Get("/decisions", s.handleDecisions)
	})
	r.Handle("/metrics", promhttp.Handler())

	s.mux = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
		"basins":  s.rt.Registry().Len(),
		"oracle":  s.rt.OracleEnabled(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
