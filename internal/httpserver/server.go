package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wisbric/argowatch/internal/version"
)

// HealthChecker reports controller reachability as "up" or "down".
// Satisfied by *argocd.Client.
type HealthChecker interface {
	Check(ctx context.Context) string
}

// ServerConfig carries the subset of configuration the HTTP server needs.
type ServerConfig struct {
	CORSAllowedOrigins []string
	StaticDir          string
}

// Server holds the HTTP router and its dependencies. Domain handlers are
// mounted on APIRouter after calling NewServer.
type Server struct {
	Router    *chi.Mux
	APIRouter chi.Router // /api/v1 sub-router
	Logger    *slog.Logger
	health    HealthChecker
}

// NewServer creates an HTTP server with middleware, health, version and
// metrics endpoints, and an optional static SPA mount.
func NewServer(cfg ServerConfig, logger *slog.Logger, metricsReg *prometheus.Registry, health HealthChecker) *Server {
	s := &Server{
		Router: chi.NewRouter(),
		Logger: logger,
		health: health,
	}

	// Global middleware
	s.Router.Use(RequestID)
	s.Router.Use(Instrument(logger))
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health endpoint: reports Argo CD reachability.
	s.Router.Get("/healthz", s.handleHealthz)

	// Prometheus metrics
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	// API routes; domain handlers are mounted externally.
	s.Router.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		s.APIRouter = r
	})

	// Static UI mount, only when the directory is present.
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		s.mountStatic(cfg.StaticDir)
		logger.Info("serving static assets", "dir", cfg.StaticDir)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.health.Check(r.Context())

	code := http.StatusOK
	if status != "up" {
		code = http.StatusServiceUnavailable
	}
	JSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

// mountStatic serves the UI bundle with an index.html fallback so the SPA
// router owns unknown paths.
func (s *Server) mountStatic(dir string) {
	fs := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	s.Router.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(strings.TrimPrefix(r.URL.Path, "/")))
		if _, err := os.Stat(path); err != nil {
			http.ServeFile(w, r, index)
			return
		}
		fs.ServeHTTP(w, r)
	})
}
