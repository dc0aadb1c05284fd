package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/delivery/http/handler"
	"github.com/user/boxd-office/internal/delivery/http/middleware"
	"github.com/user/boxd-office/internal/monitoring"
)

func New(h *handler.Handler, logger *zap.Logger, m *monitoring.Metrics, gatherer prometheus.Gatherer) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape", h.HandleSubmitScrape)
		r.Get("/jobs/{id}", h.HandleGetJob)
		r.Get("/users/{username}/films", h.HandleGetFilms)
	})

	return r
}
