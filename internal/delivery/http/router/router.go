package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/market-intel-service/internal/delivery/http/handler"
	"github.com/user/market-intel-service/internal/delivery/http/middleware"
	"go.uber.org/zap"
)

// readTimeout bounds the read-only endpoints. Job creation is left unbounded so seller scans
// are governed by the run timeout alone.
const readTimeout = 30 * time.Second

func New(h *handler.Handler, cronSecret string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			r.Post("/jobs", h.HandleCreateJob)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(readTimeout))
				r.Get("/jobs/{id}", h.HandleGetJob)
				r.Get("/dashboard", h.HandleDashboard)
				r.Get("/pricing", h.HandlePricing)
				r.Get("/trends", h.HandleTrends)
				r.Get("/surges", h.HandleSurges)
				r.Get("/benchmarks", h.HandleBenchmarks)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCronSecret(cronSecret))
			r.Post("/snapshots", h.HandleSnapshot)
			r.Post("/benchmarks/refresh", h.HandleRefreshBenchmarks)
		})
	})

	return r
}
