package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storman/internal/logger"
)

// NewRouter assembles the control plane routes. The metrics endpoint is
// mounted only when enabled in configuration.
func NewRouter(h *Handler, log *logger.Logger, metricsEnabled bool) http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery(log))
	r.Use(Logging(log))

	r.Route("/api", func(api chi.Router) {
		api.Post("/register", h.Register)
		api.Delete("/register/{volume_name}/*", h.Unregister)
		api.Get("/volumes", h.Volumes)
		api.Get("/health", h.Health)
	})

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}
