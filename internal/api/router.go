package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Profile/internal/archive"
	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/session"
)

type RouterConfig struct {
	AdminToken string
	// RequestsPerMinute applies per client address; SessionRequestsPerMinute
	// applies per session code on candidate routes.
	RequestsPerMinute        int
	SessionRequestsPerMinute int
}

// NewRouter builds the public API. arch may be nil.
func NewRouter(svc *session.Service, defs assessment.Provider, arch archive.Archive, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}
	if cfg.SessionRequestsPerMinute <= 0 {
		cfg.SessionRequestsPerMinute = 60
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.RequestsPerMinute, RemoteAddrKey))

	assessments := NewAssessmentsHandler(defs)
	sessions := NewSessionsHandler(svc, arch, logger)
	admin := NewAdminHandler(svc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/assessments", assessments.List)
		r.Get("/assessments/{type}", assessments.Get)

		r.Route("/sessions/{code}", func(r chi.Router) {
			r.Use(RateLimitMiddleware(cfg.SessionRequestsPerMinute, SessionCodeKey))
			r.Get("/", sessions.Get)
			r.Post("/answers", sessions.Answer)
			r.Get("/results", sessions.Results)
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))
			r.Post("/sessions", admin.Create)
			r.Get("/sessions", admin.List)
			r.Get("/admin/sessions/{code}", admin.Get)
			r.Get("/admin/sessions/{code}/results", admin.Results)
		})
	})

	return r
}

// NewMetricsRouter serves /health and /metrics. A nil gatherer uses the
// default registry.
func NewMetricsRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer == nil {
		r.Handle("/metrics", promhttp.Handler())
	} else {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
