// Package api implements the HTTP surface: CRUD and lifecycle operations
// for alerts, archive export, the on-demand check trigger, and the health
// and metrics endpoints.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"clearsky/internal/types"
)

// AlertService abstracts the alert operations the handlers need.
type AlertService interface {
	Create(ctx context.Context, a *types.WeatherAlert) error
	CreateBatch(ctx context.Context, alerts []*types.WeatherAlert) ([]int, map[int]error, error)
	Get(ctx context.Context, id string) (*types.WeatherAlert, error)
	Update(ctx context.Context, a *types.WeatherAlert) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	DeleteByStatus(ctx context.Context, status types.AlertStatus) (int64, error)
	List(ctx context.Context) ([]*types.WeatherAlert, error)
	ListByStatus(ctx context.Context, status types.AlertStatus) ([]*types.WeatherAlert, error)
	ListByType(ctx context.Context, alertType types.AlertType) ([]*types.WeatherAlert, error)
	UpdateStatus(ctx context.Context, id string, status types.AlertStatus) error
	Counts(ctx context.Context) (active, triggered int, err error)
}

// AlertExporter streams the alert archive.
type AlertExporter interface {
	Export(ctx context.Context, w io.Writer) (int, error)
}

// CheckRunner executes one alert check pass on demand.
type CheckRunner interface {
	Run(ctx context.Context, now time.Time) (types.CheckResult, error)
}

// Pinger reports whether the backing store is reachable. Satisfied by
// *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP routes to the alert services.
type Server struct {
	router   *chi.Mux
	logger   *slog.Logger
	validate *validator.Validate

	alerts   AlertService
	exporter AlertExporter
	checker  CheckRunner
	db       Pinger
	metrics  MetricsProvider
}

// MetricsProvider supplies the /metrics handler and the HTTP middleware.
type MetricsProvider interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// ServerConfig holds the dependencies for creating a Server.
type ServerConfig struct {
	Alerts   AlertService
	Exporter AlertExporter
	Checker  CheckRunner
	DB       Pinger
	Metrics  MetricsProvider
	Logger   *slog.Logger
}

// NewServer creates a Server and mounts all routes.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		validate: validator.New(),
		alerts:   cfg.Alerts,
		exporter: cfg.Exporter,
		checker:  cfg.Checker,
		db:       cfg.DB,
		metrics:  cfg.Metrics,
	}
	s.mountRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// mountRoutes registers the middleware chain and all endpoints. Middleware
// order: Recoverer outermost, then request ID so every log line and error
// response carries one, then logging and metrics.
func (s *Server) mountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.logger))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}

	s.router.Route("/v1", func(r chi.Router) {
		r.Route("/alerts", func(r chi.Router) {
			r.Post("/", s.handleCreateAlert)
			r.Get("/", s.handleListAlerts)
			r.Delete("/", s.handleDeleteAlerts)
			r.Post("/batch", s.handleCreateAlertBatch)
			r.Get("/counts", s.handleAlertCounts)
			r.Get("/export", s.handleExportAlerts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAlert)
				r.Patch("/", s.handleUpdateAlert)
				r.Delete("/", s.handleDeleteAlert)
				r.Post("/status", s.handleUpdateAlertStatus)
			})
		})

		r.Post("/checks/run", s.handleRunCheck)
	})

	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.ErrorContext(r.Context(), "health check database ping failed", "error", err)
			JSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status":   "degraded",
				"database": "unreachable",
			})
			return
		}
	}
	JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
