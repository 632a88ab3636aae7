// Package api serves the sensor readings HTTP interface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/export"
	"github.com/xtxerr/sensorstats/internal/logging"
	"github.com/xtxerr/sensorstats/internal/metrics"
	"github.com/xtxerr/sensorstats/internal/query"
	"github.com/xtxerr/sensorstats/internal/store"
	"github.com/xtxerr/sensorstats/internal/validation"
)

var log = logging.Component("api")

// Config holds the handler dependencies.
type Config struct {
	// Query answers every read and write.
	Query *query.Service

	// Health checks store connectivity for /healthz.
	Health func(ctx context.Context) error

	// Metrics is served on /metrics. May be nil.
	Metrics *metrics.Metrics

	// MaxBodyBytes limits POST bodies.
	MaxBodyBytes int64

	// Compression is the Parquet codec for exports.
	Compression export.CompressionType

	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string
}

// Handler implements the HTTP endpoints.
type Handler struct {
	cfg Config
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

// =============================================================================
// Readings
// =============================================================================

// createReading handles POST /devices/{id}/readings/.
func (h *Handler) createReading(w http.ResponseWriter, r *http.Request) {
	device, err := deviceParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in, err := decodeReading(w, r, h.cfg.MaxBodyBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := logging.ContextWithDevice(r.Context(), device)
	reading, err := h.cfg.Query.Record(ctx, device, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Debug("reading stored", "device_uuid", reading.DeviceUUID, "type", reading.Type)
	w.WriteHeader(http.StatusCreated)
}

// listReadings handles GET /devices/{id}/readings/.
func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	readings, err := h.cfg.Query.Readings(withDevice(r, f), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, readings)
}

// exportReadings handles GET /devices/{id}/readings/export/.
func (h *Handler) exportReadings(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	readings, err := h.cfg.Query.Readings(withDevice(r, f), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Buffered so that an encoding failure can still be reported as JSON.
	var buf bytes.Buffer
	if _, err := export.WriteReadings(&buf, readings, h.cfg.Compression); err != nil {
		writeError(w, r, errors.Wrap(errors.ErrInternal, err.Error()))
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", url.PathEscape(f.DeviceUUID)+"-readings.parquet"))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.WithContext(r.Context()).Warn("write export failed", "error", err)
	}
}

// =============================================================================
// Statistics
// =============================================================================

// single returns the handler for one single-value statistic.
func (h *Handler) single(stat query.Stat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := filterFromRequest(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		res, err := h.cfg.Query.Single(withDevice(r, f), stat, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeList(w, r, res)
	}
}

// quartiles handles GET /devices/{id}/readings/quartiles/.
func (h *Handler) quartiles(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.cfg.Query.Quartiles(withDevice(r, f), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, res)
}

// summary handles GET /devices/{id}/readings/summary/.
func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.cfg.Query.Summary(withDevice(r, f), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, res)
}

// percentiles handles GET /devices/{id}/readings/percentiles/.
func (h *Handler) percentiles(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.cfg.Query.Percentiles(withDevice(r, f), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, res)
}

// =============================================================================
// Operations
// =============================================================================

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// healthz reports whether the store is reachable.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Health != nil {
		if err := h.cfg.Health(r.Context()); err != nil {
			logging.WithContext(r.Context()).Warn("health check failed", "error", err)
			writeJSON(w, r, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

// =============================================================================
// Request parsing
// =============================================================================

// deviceParam returns the decoded {id} path parameter. chi matches on
// r.URL.RawPath when it is set and on the already decoded r.URL.Path
// otherwise, so the parameter is unescaped only in the first case.
func deviceParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(id)
		if err != nil {
			return "", errors.NewInvalidValue("device_uuid", id, "malformed path escape")
		}
		id = unescaped
	}
	if err := validation.ValidateDeviceUUID(id); err != nil {
		return "", err
	}
	return id, nil
}

// filterFromRequest builds the store filter from the path and the optional
// type, start and end query parameters.
func filterFromRequest(r *http.Request) (store.Filter, error) {
	device, err := deviceParam(r)
	if err != nil {
		return store.Filter{}, err
	}

	q := r.URL.Query()
	f := store.Filter{DeviceUUID: device, Type: q.Get("type")}

	if f.Start, err = validation.ParseTimestamp("start", q.Get("start")); err != nil {
		return store.Filter{}, err
	}
	if f.End, err = validation.ParseTimestamp("end", q.Get("end")); err != nil {
		return store.Filter{}, err
	}
	return f, nil
}

// decodeReading parses a POST body into a NewReading.
func decodeReading(w http.ResponseWriter, r *http.Request, limit int64) (query.NewReading, error) {
	var in query.NewReading

	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return in, err
		case errors.Is(err, io.EOF):
			return in, fmt.Errorf("empty request body: %w", errors.ErrInvalidRequest)
		default:
			return in, fmt.Errorf("malformed JSON body: %v: %w", err, errors.ErrInvalidRequest)
		}
	}
	if dec.More() {
		return in, fmt.Errorf("trailing data after JSON body: %w", errors.ErrInvalidRequest)
	}
	return in, nil
}

func withDevice(r *http.Request, f store.Filter) context.Context {
	return logging.ContextWithDevice(r.Context(), f.DeviceUUID)
}
