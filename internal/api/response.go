package api

import (
	"encoding/json"
	"net/http"

	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/logging"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WithContext(r.Context()).Warn("write response failed", "error", err)
	}
}

// writeList wraps a single record in a one-element array.
func writeList(w http.ResponseWriter, r *http.Request, v interface{}) {
	writeJSON(w, r, http.StatusOK, []interface{}{v})
}

// writeError maps err to a status code and writes {"error": ...}.
// Client errors carry their message; server errors are logged with the
// request id and answered with the status text only. A client that
// disconnected gets no log above debug.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	msg := err.Error()
	switch {
	case status == errors.StatusClientClosedRequest:
		logging.WithContext(r.Context()).Debug("client went away",
			"method", r.Method, "path", r.URL.Path, "error", err)
	case status >= http.StatusInternalServerError:
		logging.WithContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		msg = http.StatusText(status)
	}

	writeJSON(w, r, status, ErrorResponse{Error: msg})
}
