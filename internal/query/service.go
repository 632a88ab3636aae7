// Package query composes statistical responses from reading snapshots.
//
// Every response is computed from exactly one snapshot: a single
// Backend.Values call for the request's filter. Identical snapshot reads
// that overlap in time are collapsed with singleflight; nothing is retained
// once the shared read returns, so this is not a cache.
package query

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/sensorstats/config"
	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/logging"
	"github.com/xtxerr/sensorstats/internal/metrics"
	"github.com/xtxerr/sensorstats/internal/stats"
	"github.com/xtxerr/sensorstats/internal/store"
	"github.com/xtxerr/sensorstats/internal/validation"
)

var log = logging.Component("query")

// Stat names a single statistic.
type Stat string

const (
	StatMin    Stat = "min"
	StatMax    Stat = "max"
	StatMean   Stat = "mean"
	StatMedian Stat = "median"
)

// Valid reports whether s names a known statistic.
func (s Stat) Valid() bool {
	switch s {
	case StatMin, StatMax, StatMean, StatMedian:
		return true
	}
	return false
}

// Options configures a Service.
type Options struct {
	// Timeout bounds each store call. Zero means no bound.
	Timeout time.Duration

	// SketchAccuracy is the relative accuracy of percentile estimates.
	SketchAccuracy float64

	// Metrics receives query instrumentation. May be nil.
	Metrics *metrics.Metrics

	// Now supplies the default date_created for new readings.
	Now func() time.Time
}

// Service answers statistical queries over a reading store.
type Service struct {
	backend store.Backend
	opts    Options
	group   singleflight.Group

	// Statistics
	queries atomic.Int64
	rows    atomic.Int64
	errs    atomic.Int64
	shared  atomic.Int64
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
	SharedSnapshots int64
}

// New creates a query service over backend.
func New(backend store.Backend, opts Options) *Service {
	if opts.SketchAccuracy <= 0 {
		opts.SketchAccuracy = config.DefaultSketchAccuracy
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{backend: backend, opts: opts}
}

// Stats returns query statistics.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		QueriesExecuted: s.queries.Load(),
		RowsReturned:    s.rows.Load(),
		Errors:          s.errs.Load(),
		SharedSnapshots: s.shared.Load(),
	}
}

// =============================================================================
// Statistics
// =============================================================================

// Single computes one statistic for the readings matching f.
func (s *Service) Single(ctx context.Context, stat Stat, f store.Filter) (ValueResult, error) {
	if !stat.Valid() {
		return ValueResult{}, errors.NewInvalidValue("statistic", stat, "unknown statistic")
	}

	values, err := s.run(ctx, string(stat), f)
	if err != nil {
		return ValueResult{}, err
	}

	switch stat {
	case StatMin:
		return ValueResult{Value: intPtr(stats.Min(values))}, nil
	case StatMax:
		return ValueResult{Value: intPtr(stats.Max(values))}, nil
	case StatMean:
		return ValueResult{Value: floatPtr(stats.Mean(values))}, nil
	default:
		return ValueResult{Value: floatPtr(stats.Median(values))}, nil
	}
}

// Min returns the smallest value matching f.
func (s *Service) Min(ctx context.Context, f store.Filter) (ValueResult, error) {
	return s.Single(ctx, StatMin, f)
}

// Max returns the largest value matching f.
func (s *Service) Max(ctx context.Context, f store.Filter) (ValueResult, error) {
	return s.Single(ctx, StatMax, f)
}

// Mean returns the arithmetic mean of the values matching f.
func (s *Service) Mean(ctx context.Context, f store.Filter) (ValueResult, error) {
	return s.Single(ctx, StatMean, f)
}

// Median returns the median of the values matching f.
func (s *Service) Median(ctx context.Context, f store.Filter) (ValueResult, error) {
	return s.Single(ctx, StatMedian, f)
}

// Quartiles returns quartile_1, quartile_3 and the median, all from the
// same snapshot.
func (s *Service) Quartiles(ctx context.Context, f store.Filter) (QuartilesResult, error) {
	values, err := s.run(ctx, "quartiles", f)
	if err != nil {
		return QuartilesResult{}, err
	}

	sum := stats.Summarize(values)
	return QuartilesResult{
		Quartile1: sum.Quartile1,
		Quartile3: sum.Quartile3,
		Median:    sum.Median,
	}, nil
}

// Summary returns every statistic for the device, all from the same
// snapshot. An unknown device yields count 0 and null statistics.
func (s *Service) Summary(ctx context.Context, f store.Filter) (SummaryResult, error) {
	values, err := s.run(ctx, "summary", f)
	if err != nil {
		return SummaryResult{}, err
	}
	return newSummaryResult(f.DeviceUUID, stats.Summarize(values)), nil
}

// Percentiles returns DDSketch estimates of p50, p90, p95 and p99.
func (s *Service) Percentiles(ctx context.Context, f store.Filter) (PercentilesResult, error) {
	values, err := s.run(ctx, "percentiles", f)
	if err != nil {
		return PercentilesResult{}, err
	}

	res := PercentilesResult{Count: int64(len(values))}
	est, err := stats.Percentiles(values, s.opts.SketchAccuracy, stats.DefaultQuantiles...)
	if err != nil {
		s.errs.Add(1)
		return PercentilesResult{}, errors.Wrap(errors.ErrInternal, err.Error())
	}
	if est == nil {
		return res, nil
	}

	res.P50, res.P90, res.P95, res.P99 = &est[0], &est[1], &est[2], &est[3]
	return res, nil
}

// =============================================================================
// Readings
// =============================================================================

// NewReading is the client-supplied part of a reading.
// Pointer fields distinguish "absent" from the zero value.
type NewReading struct {
	Type        *string `json:"type"`
	Value       *int64  `json:"value"`
	DateCreated *int64  `json:"date_created"`
}

// Readings returns the readings matching f ordered by date_created.
// The result is never nil.
func (s *Service) Readings(ctx context.Context, f store.Filter) ([]store.Reading, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}

	start := time.Now()
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	readings, err := s.backend.Scan(qctx, f)
	s.queries.Add(1)
	if err != nil {
		s.failed(ctx, "list readings failed", err)
		return nil, timeoutErr(qctx, "list readings", err)
	}
	if readings == nil {
		readings = []store.Reading{}
	}

	s.rows.Add(int64(len(readings)))
	s.opts.Metrics.ObserveQuery("list", time.Since(start))
	return readings, nil
}

// Record validates in and stores it as a reading of device.
// date_created defaults to the current server time.
func (s *Service) Record(ctx context.Context, device string, in NewReading) (*store.Reading, error) {
	verrs := errors.NewValidationErrors()
	verrs.Add(validation.ValidateDeviceUUID(device))
	if in.Type == nil {
		verrs.AddMissing("type")
	} else {
		verrs.Add(validation.ValidateSensorType(*in.Type))
	}
	if in.Value == nil {
		verrs.AddMissing("value")
	}
	if err := verrs.Err(); err != nil {
		return nil, err
	}

	r := &store.Reading{
		DeviceUUID: device,
		Type:       *in.Type,
		Value:      *in.Value,
	}
	if in.DateCreated != nil {
		r.DateCreated = *in.DateCreated
	} else {
		r.DateCreated = s.opts.Now().Unix()
	}

	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.backend.Insert(qctx, r); err != nil {
		s.failed(ctx, "insert reading failed", err)
		return nil, timeoutErr(qctx, "insert reading", err)
	}

	s.opts.Metrics.ReadingWritten()
	return r, nil
}

// =============================================================================
// Snapshots
// =============================================================================

// run validates f, takes one snapshot and records statistics for op.
func (s *Service) run(ctx context.Context, op string, f store.Filter) ([]int64, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}

	start := time.Now()
	values, err := s.snapshot(ctx, f)
	s.queries.Add(1)
	if err != nil {
		s.failed(ctx, "query failed", err, "op", op)
		return nil, err
	}

	s.rows.Add(int64(len(values)))
	s.opts.Metrics.ObserveQuery(op, time.Since(start))
	return values, nil
}

// snapshot returns the sorted values matching f. Concurrent callers with
// the same filter share one store read. The shared read is detached from
// any single caller's cancellation; each caller still stops waiting when
// its own context ends. The returned slice is shared and must not be
// modified.
func (s *Service) snapshot(ctx context.Context, f store.Filter) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, timeoutErr(ctx, "read snapshot", err)
	}
	ch := s.group.DoChan(f.Key(), func() (interface{}, error) {
		qctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
		defer cancel()

		values, err := s.backend.Values(qctx, f)
		if err != nil {
			return nil, timeoutErr(qctx, "read snapshot", err)
		}
		return values, nil
	})

	select {
	case <-ctx.Done():
		return nil, timeoutErr(ctx, "read snapshot", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		values, _ := res.Val.([]int64)
		if res.Shared {
			s.shared.Add(1)
		}
		s.opts.Metrics.ObserveSnapshot(len(values), res.Shared)
		log.Debug("snapshot", "device", f.DeviceUUID, "rows", len(values), "shared", res.Shared)
		return values, nil
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// failed counts and logs err. A caller that went away is logged at debug
// and not counted.
func (s *Service) failed(ctx context.Context, msg string, err error, args ...interface{}) {
	args = append(args, "error", err)
	if errors.Is(err, context.Canceled) {
		logging.WithContext(ctx).Debug(msg, args...)
		return
	}
	s.errs.Add(1)
	logging.WithContext(ctx).Error(msg, args...)
}

// timeoutErr reports err as ErrTimeout when ctx hit its deadline.
func timeoutErr(ctx context.Context, op string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s: %w", op, errors.ErrTimeout)
	}
	return err
}

func validateFilter(f store.Filter) error {
	verrs := errors.NewValidationErrors()
	verrs.Add(validation.ValidateDeviceUUID(f.DeviceUUID))
	if f.Type != "" {
		verrs.Add(validation.ValidateSensorType(f.Type))
	}
	verrs.Add(validation.ValidateRange(f.Start, f.End))
	return verrs.Err()
}

func intPtr(v int64, ok bool) *int64 {
	if !ok {
		return nil
	}
	return &v
}

func floatPtr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
