package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// DefaultStableThreshold is the stddev percentage at or below which a
// series is considered stable.
const DefaultStableThreshold = 10.0

// Stability labels.
const (
	StabilityVeryStable = "Very Stable"
	StabilityStable     = "Stable"
	StabilityModerate   = "Moderate Variance"
	StabilityHigh       = "High Variance"
)

// BenchmarkStats describes one metric across measured iterations.
type BenchmarkStats struct {
	Iterations    int       `json:"iterations"`
	Warmup        int       `json:"warmup"`
	Mean          float64   `json:"mean"`
	Median        float64   `json:"median"`
	Min           float64   `json:"min"`
	Max           float64   `json:"max"`
	StdDev        float64   `json:"std_dev"`
	StdDevPercent float64   `json:"std_dev_percent"`
	P95           float64   `json:"p95"`
	P99           float64   `json:"p99"`
	Values        []float64 `json:"values"`
}

// FromValues computes statistics over values. warmup is the number of
// iterations the caller already discarded; it is recorded for display
// only. An empty series yields all-zero statistics.
func FromValues(values []float64, warmup int) BenchmarkStats {
	out := BenchmarkStats{
		Warmup: warmup,
		Values: slices.Clone(values),
	}

	if out.Values == nil {
		out.Values = []float64{}
	}

	n := len(values)
	if n == 0 {
		return out
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	out.Iterations = n
	out.Min = sorted[0]
	out.Max = sorted[n-1]
	out.Median = median(sorted)
	out.P95 = percentile(sorted, 95)
	out.P99 = percentile(sorted, 99)

	// Floating point summation can land a hair outside the range.
	out.Mean = math.Min(math.Max(stat.Mean(values, nil), out.Min), out.Max)

	if n >= 2 && out.Min != out.Max {
		out.StdDev = stat.StdDev(values, nil)
	}

	if out.Mean != 0 {
		out.StdDevPercent = out.StdDev / math.Abs(out.Mean) * 100
	}

	return out
}

// IsStable reports whether StdDevPercent is at or below thresholdPercent.
func (s BenchmarkStats) IsStable(thresholdPercent float64) bool {
	return s.StdDevPercent <= thresholdPercent
}

// Stability labels the series by its stddev percentage.
func (s BenchmarkStats) Stability() string {
	switch {
	case s.StdDevPercent <= 5:
		return StabilityVeryStable
	case s.StdDevPercent <= 10:
		return StabilityStable
	case s.StdDevPercent <= 20:
		return StabilityModerate
	default:
		return StabilityHigh
	}
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)

	switch n {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return sorted[lower]
	}

	frac := rank - float64(lower)

	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}
