package client

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtxerr/sensorstats/internal/api"
	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/export"
	"github.com/xtxerr/sensorstats/internal/query"
	"github.com/xtxerr/sensorstats/internal/store/sqlite"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	b, err := sqlite.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.Migrate(context.Background()))

	h := api.NewHandler(api.Config{
		Query:        query.New(b, query.Options{}),
		Health:       b.Health,
		MaxBodyBytes: 1024,
		Compression:  export.CompressionSnappy,
	})
	ts := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(ts.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = ts.URL + "/"
	return New(cfg)
}

func reading(typ string, value, created int64) query.NewReading {
	return query.NewReading{Type: &typ, Value: &value, DateCreated: &created}
}

func seed(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Post(ctx, "test_device", reading("temperature", 22, 1000)))
	require.NoError(t, c.Post(ctx, "test_device", reading("temperature", 50, 2000)))
	require.NoError(t, c.Post(ctx, "test_device", reading("temperature", 100, 3000)))
	require.NoError(t, c.Post(ctx, "other_uuid", reading("temperature", 22, 1000)))
}

func TestClient_Stats(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)
	ctx := context.Background()

	tests := []struct {
		stat query.Stat
		want float64
	}{
		{query.StatMin, 22},
		{query.StatMax, 100},
		{query.StatMedian, 50},
	}
	for _, tt := range tests {
		res, err := c.Stat(ctx, "test_device", tt.stat, Query{})
		require.NoError(t, err, tt.stat)
		require.Equal(t, tt.want, res.Value, tt.stat)
	}

	q, err := c.Quartiles(ctx, "test_device", Query{})
	require.NoError(t, err)
	require.NotNil(t, q.Quartile1)
	require.Equal(t, 22.0, *q.Quartile1)
	require.Equal(t, 100.0, *q.Quartile3)
	require.Equal(t, 50.0, *q.Median)

	s, err := c.Summary(ctx, "other_uuid", Query{})
	require.NoError(t, err)
	require.Equal(t, "other_uuid", s.DeviceUUID)
	require.Equal(t, int64(1), s.Count)
	require.Nil(t, s.Quartile1)

	p, err := c.Percentiles(ctx, "test_device", Query{})
	require.NoError(t, err)
	require.Equal(t, int64(3), p.Count)
	require.NotNil(t, p.P99)
}

func TestClient_ListAndExport(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)
	ctx := context.Background()

	list, err := c.List(ctx, "test_device", Query{Start: "1500", End: "3000"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, int64(50), list[0].Value)

	data, err := c.Export(ctx, "test_device", Query{Type: "temperature"})
	require.NoError(t, err)
	readings, err := export.ReadReadings(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, readings, 3)
}

func TestClient_Errors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	typ := "temperature"
	err := c.Post(ctx, "dev", query.NewReading{Type: &typ})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.NotEmpty(t, apiErr.Message)

	_, err = c.Stat(ctx, "dev", query.StatMin, Query{Start: "not-a-date"})
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.Status)

	_, err = c.Stat(ctx, "dev", query.Stat("mode"), Query{})
	require.Error(t, err)
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t)
	require.NoError(t, c.Health(context.Background()))

	bad := New(Config{BaseURL: "http://127.0.0.1:1"})
	require.Error(t, bad.Health(context.Background()))
}

func TestClient_EscapesDevice(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Post(ctx, "kitchen sensor", reading("t", 5, 1)))
	s, err := c.Summary(ctx, "kitchen sensor", Query{})
	require.NoError(t, err)
	require.Equal(t, "kitchen sensor", s.DeviceUUID)
	require.Equal(t, int64(1), s.Count)
}

func TestClient_PercentDevice(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Post(ctx, "50%", reading("t", 9, 1)))
	require.NoError(t, c.Post(ctx, "a%41", reading("t", 1, 1)))
	require.NoError(t, c.Post(ctx, "aA", reading("t", 2, 1)))

	s, err := c.Summary(ctx, "50%", Query{})
	require.NoError(t, err)
	require.Equal(t, "50%", s.DeviceUUID)
	require.Equal(t, int64(1), s.Count)

	list, err := c.List(ctx, "a%41", Query{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a%41", list[0].DeviceUUID)
	require.Equal(t, int64(1), list[0].Value)
}
