package query

import "github.com/xtxerr/sensorstats/internal/stats"

// ValueResult is the response of a single-statistic query.
// Value is a *int64 for min/max and a *float64 for mean/median; a nil
// pointer encodes as JSON null.
type ValueResult struct {
	Value interface{} `json:"value"`
}

// QuartilesResult is the response of the quartiles query.
type QuartilesResult struct {
	Quartile1 *float64 `json:"quartile_1"`
	Quartile3 *float64 `json:"quartile_3"`
	Median    *float64 `json:"median"`
}

// SummaryResult is the response of the summary query.
type SummaryResult struct {
	Quartile1  *float64 `json:"quartile_1"`
	Quartile3  *float64 `json:"quartile_3"`
	Median     *float64 `json:"median"`
	DeviceUUID string   `json:"device_uuid"`
	Count      int64    `json:"count"`
	Max        *int64   `json:"max"`
	Min        *int64   `json:"min"`
}

// PercentilesResult is the response of the percentiles query.
// Estimates come from a DDSketch and carry its relative accuracy.
type PercentilesResult struct {
	Count int64    `json:"count"`
	P50   *float64 `json:"p50"`
	P90   *float64 `json:"p90"`
	P95   *float64 `json:"p95"`
	P99   *float64 `json:"p99"`
}

func newSummaryResult(device string, s stats.Summary) SummaryResult {
	return SummaryResult{
		Quartile1:  s.Quartile1,
		Quartile3:  s.Quartile3,
		Median:     s.Median,
		DeviceUUID: device,
		Count:      s.Count,
		Max:        s.Max,
		Min:        s.Min,
	}
}
