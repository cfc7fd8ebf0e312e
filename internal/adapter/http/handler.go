package httpadapter

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"

	"adcp-engine/internal/core/port"
	"adcp-engine/internal/metrics"
)

// Handler is the inbound HTTP adapter. It holds the media-buy usecase, the
// principal store for authentication, and a structured logger. Routes are
// registered on a chi.Router.
type Handler struct {
	svc        port.MediaBuyUseCase
	principals port.PrincipalStore
	logger     *slog.Logger
	router     chi.Router
}

// NewHandler creates a handler with all routes configured. Every media-buy
// route sits behind the bearer-token authentication middleware; /metrics
// does not.
func NewHandler(svc port.MediaBuyUseCase, principals port.PrincipalStore, logger *slog.Logger) *Handler {
	h := &Handler{svc: svc, principals: principals, logger: logger}
	r := chi.NewRouter()
	r.Use(h.observe)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/media-buys", h.handleCreateMediaBuy)
		r.Get("/media-buys/{mediaBuyID}", h.handleGetMediaBuy)
		r.Patch("/media-buys/{mediaBuyID}", h.handleUpdateMediaBuy)
		r.Post("/media-buys/{mediaBuyID}/cancel", h.handleCancelMediaBuy)
		r.Get("/media-buys/{mediaBuyID}/delivery", h.handleGetDelivery)
		r.Get("/media-buys/{mediaBuyID}/report", h.handleGetReport)
		r.Get("/creative-formats", h.handleListFormats)
	})
	r.Handle("/metrics", promhttp.Handler())

	h.router = r
	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}

// observe records request latency per route pattern.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.WithLabelValues(route).
			Observe(float64(time.Since(start).Milliseconds()))
	})
}
