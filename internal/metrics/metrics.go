// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// the query composer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensorstats"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	queryDuration   *prometheus.HistogramVec
	snapshotRows    prometheus.Histogram
	sharedSnapshots prometheus.Counter
	readingsWritten prometheus.Counter
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Statistical query latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		snapshotRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_rows",
			Help:      "Number of readings per query snapshot.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		sharedSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_shared_total",
			Help:      "Snapshot reads served by an identical in-flight read.",
		}),
		readingsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_written_total",
			Help:      "Readings inserted into the store.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.queryDuration,
		m.snapshotRows,
		m.sharedSnapshots,
		m.readingsWritten,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveQuery records one composed query.
func (m *Metrics) ObserveQuery(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveSnapshot records the size of a snapshot read and whether it was
// shared with another caller.
func (m *Metrics) ObserveSnapshot(rows int, shared bool) {
	if m == nil {
		return
	}
	m.snapshotRows.Observe(float64(rows))
	if shared {
		m.sharedSnapshots.Inc()
	}
}

// ReadingWritten counts one inserted reading.
func (m *Metrics) ReadingWritten() {
	if m == nil {
		return
	}
	m.readingsWritten.Inc()
}
