// Package client is a Go client for the sensorstats HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/xtxerr/sensorstats/internal/query"
	"github.com/xtxerr/sensorstats/internal/store"
)

// =============================================================================
// Errors
// =============================================================================

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// errorBody mirrors the server's {"error": "..."} reply.
type errorBody struct {
	Error string `json:"error"`
}

// =============================================================================
// Client
// =============================================================================

// Config holds client configuration.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string

	// Timeout bounds each request. Zero means no bound.
	Timeout time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080",
		Timeout: 30 * time.Second,
	}
}

// Client talks to one sensorstats server. It is safe for concurrent use.
type Client struct {
	http *resty.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	return &Client{http: rc}
}

// Query narrows a read to one reading type and a date_created range.
// Start and End accept epoch seconds or ISO 8601 and may be empty.
type Query struct {
	Type  string
	Start string
	End   string
}

func (q Query) params() map[string]string {
	p := make(map[string]string, 3)
	if q.Type != "" {
		p["type"] = q.Type
	}
	if q.Start != "" {
		p["start"] = q.Start
	}
	if q.End != "" {
		p["end"] = q.End
	}
	return p
}

func (c *Client) request(ctx context.Context, device string, q Query) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetPathParam("id", device).
		SetQueryParams(q.params()).
		SetError(&errorBody{})
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		apiErr.Message = body.Error
	}
	return apiErr
}

// =============================================================================
// Readings
// =============================================================================

// Post stores a reading for device.
func (c *Client) Post(ctx context.Context, device string, in query.NewReading) error {
	resp, err := c.request(ctx, device, Query{}).
		SetHeader("Content-Type", "application/json").
		SetBody(in).
		Post("/devices/{id}/readings/")
	return check(resp, err)
}

// List returns the readings of device ordered by date_created.
func (c *Client) List(ctx context.Context, device string, q Query) ([]store.Reading, error) {
	var out []store.Reading
	resp, err := c.request(ctx, device, q).
		SetResult(&out).
		Get("/devices/{id}/readings/")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// Export returns the Parquet encoding of the readings of device.
func (c *Client) Export(ctx context.Context, device string, q Query) ([]byte, error) {
	resp, err := c.request(ctx, device, q).
		SetHeader("Accept", "application/vnd.apache.parquet, application/json").
		Get("/devices/{id}/readings/export/")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// =============================================================================
// Statistics
// =============================================================================

// getOne fetches a one-element array endpoint into out.
func getOne[T any](ctx context.Context, c *Client, device, path string, q Query) (T, error) {
	var (
		zero T
		out  []T
	)
	resp, err := c.request(ctx, device, q).
		SetResult(&out).
		Get("/devices/{id}/readings/" + path + "/")
	if err := check(resp, err); err != nil {
		return zero, err
	}
	if len(out) != 1 {
		return zero, fmt.Errorf("%s: expected 1 result, got %d", path, len(out))
	}
	return out[0], nil
}

// Stat returns one of min, max, median or mean.
func (c *Client) Stat(ctx context.Context, device string, stat query.Stat, q Query) (query.ValueResult, error) {
	if !stat.Valid() {
		return query.ValueResult{}, fmt.Errorf("unknown statistic %q", stat)
	}
	return getOne[query.ValueResult](ctx, c, device, string(stat), q)
}

// Quartiles returns the quartiles of device.
func (c *Client) Quartiles(ctx context.Context, device string, q Query) (query.QuartilesResult, error) {
	return getOne[query.QuartilesResult](ctx, c, device, "quartiles", q)
}

// Summary returns the summary of device.
func (c *Client) Summary(ctx context.Context, device string, q Query) (query.SummaryResult, error) {
	return getOne[query.SummaryResult](ctx, c, device, "summary", q)
}

// Percentiles returns the sketch percentile estimates of device.
func (c *Client) Percentiles(ctx context.Context, device string, q Query) (query.PercentilesResult, error) {
	return getOne[query.PercentilesResult](ctx, c, device, "percentiles", q)
}

// Health reports whether the server and its store are up.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&errorBody{}).
		Get("/healthz")
	return check(resp, err)
}
