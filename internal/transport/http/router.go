package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dataspace/internal/platform/health"
	"dataspace/internal/platform/middleware"
)

// NewRouter wires the middleware stack, the probe endpoints, the metrics
// endpoint, and the authenticated API under /api/v1.
func NewRouter(h *Handler, healthHandler *health.Handler, signingKey []byte, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logging(logger))

	healthHandler.Routes(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(signingKey, logger))
		h.Routes(r)
	})

	return r
}
