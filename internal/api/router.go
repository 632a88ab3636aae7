package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/query"
)

// NewRouter returns the HTTP handler for every endpoint.
// Paths are matched with or without a trailing slash.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(stripSlashes)
	r.Use(instrument(h.cfg.Metrics))
	r.Use(middleware.Recoverer)

	r.Route("/devices/{id}/readings", func(r chi.Router) {
		r.Post("/", h.createReading)
		r.Get("/", h.listReadings)

		r.Get("/min", h.single(query.StatMin))
		r.Get("/max", h.single(query.StatMax))
		r.Get("/median", h.single(query.StatMedian))
		r.Get("/mean", h.single(query.StatMean))
		r.Get("/quartiles", h.quartiles)
		r.Get("/summary", h.summary)
		r.Get("/percentiles", h.percentiles)
		r.Get("/export", h.exportReadings)
	})

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", h.cfg.Metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errors.NewNotFound("route", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})

	if len(h.cfg.AllowedOrigins) == 0 {
		return r
	}

	c := cors.New(cors.Options{
		AllowedOrigins: h.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return c.Handler(r)
}
