package errors

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"missing field", NewMissingField("type"), http.StatusBadRequest},
		{"invalid value", NewInvalidValue("start", "soon", "not a timestamp"), http.StatusBadRequest},
		{"wrapped invalid request", Wrap(ErrInvalidRequest, "decode body"), http.StatusBadRequest},
		{"not found", NewNotFound("route", "/x"), http.StatusNotFound},
		{"timeout", Wrap(ErrTimeout, "median"), http.StatusGatewayTimeout},
		{"closed", ErrStoreClosed, http.StatusServiceUnavailable},
		{"storage", Storage("insert reading", sql.ErrConnDone), http.StatusInternalServerError},
		{"unknown", New("boom"), http.StatusInternalServerError},
		{"client gone", Wrap(context.Canceled, "read snapshot"), StatusClientClosedRequest},
		{"client gone in driver", Storage("query values", context.Canceled), StatusClientClosedRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestStorageKeepsCause(t *testing.T) {
	err := Storage("scan readings", sql.ErrConnDone)

	if !IsStorage(err) {
		t.Error("expected storage error")
	}
	if !Is(err, sql.ErrConnDone) {
		t.Error("driver error should stay reachable")
	}
	if Storage("noop", nil) != nil {
		t.Error("Storage(nil) should be nil")
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.Err() != nil {
		t.Fatal("empty collector should return nil")
	}

	v.AddMissing("type")
	v.AddField("store.driver", "unsupported")
	v.Add(nil)

	if len(v.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(v.Errors))
	}

	err := v.Err()
	if !Is(err, ErrMissingField) {
		t.Error("collected errors should match ErrMissingField")
	}
	if !Is(err, ErrInvalidConfig) {
		t.Error("collected errors should match ErrInvalidConfig")
	}
}
