package stats

import (
	"fmt"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"
)

// DefaultQuantiles are the quantiles reported by the percentiles endpoint.
var DefaultQuantiles = []float64{0.50, 0.90, 0.95, 0.99}

// Sketch estimates percentiles with a DDSketch.
// Estimates are within the configured relative accuracy of the true value,
// which makes them unsuitable for the exact median and quartiles.
type Sketch struct {
	mu       sync.Mutex
	sketch   *ddsketch.DDSketch
	accuracy float64
	count    int64
}

// NewSketch creates a Sketch with the given relative accuracy (e.g. 0.01).
func NewSketch(accuracy float64) (*Sketch, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("create sketch: %w", err)
	}
	return &Sketch{sketch: sketch, accuracy: accuracy}, nil
}

// Add adds a value to the sketch.
func (s *Sketch) Add(value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sketch.Add(float64(value)); err != nil {
		return fmt.Errorf("add %d: %w", value, err)
	}
	s.count++
	return nil
}

// Count returns the number of values added.
func (s *Sketch) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Quantile returns the estimated value at q in [0, 1].
// ok is false when the sketch is empty.
func (s *Sketch) Quantile(q float64) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return 0, false, nil
	}
	v, err := s.sketch.GetValueAtQuantile(q)
	if err != nil {
		return 0, false, fmt.Errorf("quantile %v: %w", q, err)
	}
	return v, true, nil
}

// Accuracy returns the relative accuracy the sketch was built with.
func (s *Sketch) Accuracy() float64 {
	return s.accuracy
}

// Percentiles feeds values into a fresh sketch and returns the estimate for
// each quantile in qs, in order. The result is nil for empty input.
func Percentiles(values []int64, accuracy float64, qs ...float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if len(qs) == 0 {
		qs = DefaultQuantiles
	}

	sk, err := NewSketch(accuracy)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := sk.Add(v); err != nil {
			return nil, err
		}
	}

	out := make([]float64, len(qs))
	for i, q := range qs {
		v, _, err := sk.Quantile(q)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
