// Package stats computes order statistics over a device's integer readings.
//
// Every function treats its input as read-only: callers may share the slice
// between goroutines. Undefined statistics (empty input, no value strictly
// below or above the median) are reported with ok=false or a nil pointer,
// never with an error.
//
// Quartiles use this service's simplified definition: quartile_1 is the mean
// of all values strictly below the median and quartile_3 the mean of all
// values strictly above it. This is not percentile interpolation.
package stats

import (
	"slices"
)

// Summary holds every statistic for one snapshot of values.
// Nil pointers mark statistics that are undefined for the snapshot.
type Summary struct {
	Count     int64
	Min       *int64
	Max       *int64
	Mean      *float64
	Median    *float64
	Quartile1 *float64
	Quartile3 *float64
}

// IsEmpty returns true if the snapshot had no values.
func (s *Summary) IsEmpty() bool {
	return s.Count == 0
}

// HasQuartiles returns true if both quartiles are defined.
func (s *Summary) HasQuartiles() bool {
	return s.Quartile1 != nil && s.Quartile3 != nil
}

// Summarize computes all statistics from one sorted copy of values.
func Summarize(values []int64) Summary {
	sorted := sortedView(values)

	var s Summary
	s.Count = int64(len(sorted))
	if s.Count == 0 {
		return s
	}

	lo, hi := sorted[0], sorted[len(sorted)-1]
	s.Min = &lo
	s.Max = &hi

	mean := meanOf(sorted)
	s.Mean = &mean

	median := medianOf(sorted)
	s.Median = &median

	below, above := medianSplit(sorted)
	if q1, ok := meanPart(sorted[:below]); ok {
		s.Quartile1 = &q1
	}
	if q3, ok := meanPart(sorted[len(sorted)-above:]); ok {
		s.Quartile3 = &q3
	}

	return s
}

// Min returns the smallest value.
func Min(values []int64) (int64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return slices.Min(values), true
}

// Max returns the largest value.
func Max(values []int64) (int64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return slices.Max(values), true
}

// Mean returns the arithmetic mean.
func Mean(values []int64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return meanOf(values), true
}

// Median returns the middle value for odd N and the average of the two
// middle values for even N.
func Median(values []int64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return medianOf(sortedView(values)), true
}

// Quartile1 returns the mean of all values strictly below the median.
func Quartile1(values []int64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := sortedView(values)
	below, _ := medianSplit(sorted)
	return meanPart(sorted[:below])
}

// Quartile3 returns the mean of all values strictly above the median.
func Quartile3(values []int64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := sortedView(values)
	_, above := medianSplit(sorted)
	return meanPart(sorted[len(sorted)-above:])
}

// sortedView returns values unchanged when already ascending,
// otherwise a sorted copy. The input is never modified.
func sortedView(values []int64) []int64 {
	if slices.IsSorted(values) {
		return values
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted
}

// medianOf expects a non-empty ascending slice.
func medianOf(sorted []int64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[(n-1)/2])
	}
	return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
}

func meanOf(values []int64) float64 {
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// medianSplit returns how many leading values lie strictly below the
// median and how many trailing values lie strictly above it. Comparisons
// stay in int64 so values beyond 2^53 remain distinct.
func medianSplit(sorted []int64) (below, above int) {
	n := len(sorted)
	lo, hi := sorted[(n-1)/2], sorted[n/2]
	if lo < hi {
		// Even N with distinct middles: the median lies strictly between
		// them, so every value falls on one side.
		return n / 2, n / 2
	}
	for below < n && sorted[below] < lo {
		below++
	}
	for above < n && sorted[n-1-above] > hi {
		above++
	}
	return below, above
}

// meanPart averages part, reporting false when it is empty.
func meanPart(part []int64) (float64, bool) {
	if len(part) == 0 {
		return 0, false
	}
	return meanOf(part), true
}
