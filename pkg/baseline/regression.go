package baseline

import (
	"math"

	"github.com/ethpandaops/dbbench/pkg/config"
)

// Compared metrics, in comparison order.
const (
	MetricExecutionTime    = "execution_time"
	MetricPeakMemory       = "peak_memory"
	MetricTotalQueries     = "total_queries"
	MetricPerformanceScore = "performance_score"
)

// Metrics lists the compared metrics in order.
var Metrics = []string{
	MetricExecutionTime,
	MetricPeakMemory,
	MetricTotalQueries,
	MetricPerformanceScore,
}

// Severity of a regression.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Default improvement floors, in percent.
const (
	DefaultImprovementFloor      = 10.0
	DefaultScoreImprovementFloor = 5.0
)

// Threshold is a warning/critical percentage pair.
type Threshold struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// DefaultThresholds returns the default per-metric thresholds.
func DefaultThresholds() map[string]Threshold {
	out := make(map[string]Threshold, len(Metrics))
	for metric, t := range config.DefaultThresholds() {
		out[metric] = Threshold{Warning: t.Warning, Critical: t.Critical}
	}

	return out
}

// RegressionItem is a metric that degraded past a threshold.
type RegressionItem struct {
	Metric   string   `json:"metric"`
	Baseline float64  `json:"baseline"`
	Current  float64  `json:"current"`
	Percent  float64  `json:"percent"`
	Severity Severity `json:"severity"`
}

// ImprovementItem is a metric that improved past the improvement floor.
type ImprovementItem struct {
	Metric   string  `json:"metric"`
	Baseline float64 `json:"baseline"`
	Current  float64 `json:"current"`
	Percent  float64 `json:"percent"`
}

// Detector compares a run against its baseline.
type Detector struct {
	thresholds            map[string]Threshold
	improvementFloor      float64
	scoreImprovementFloor float64
}

// NewDetector creates a detector with the default thresholds.
func NewDetector() *Detector {
	return &Detector{
		thresholds:            DefaultThresholds(),
		improvementFloor:      DefaultImprovementFloor,
		scoreImprovementFloor: DefaultScoreImprovementFloor,
	}
}

// NewDetectorFromConfig creates a detector from cfg. Missing or
// non-positive values use the defaults.
func NewDetectorFromConfig(cfg *config.RegressionConfig) *Detector {
	d := NewDetector()

	if cfg == nil {
		return d
	}

	for metric, t := range cfg.Thresholds {
		def, ok := d.thresholds[metric]
		if !ok {
			continue
		}

		if t.Warning > 0 {
			def.Warning = t.Warning
		}

		if t.Critical > 0 {
			def.Critical = t.Critical
		}

		d.thresholds[metric] = def
	}

	if cfg.ImprovementFloor > 0 {
		d.improvementFloor = cfg.ImprovementFloor
	}

	if cfg.ScoreImprovementFloor > 0 {
		d.scoreImprovementFloor = cfg.ScoreImprovementFloor
	}

	return d
}

// Threshold returns the thresholds used for metric.
func (d *Detector) Threshold(metric string) Threshold {
	return d.thresholds[metric]
}

// Compare classifies every metric of current against baseline. A metric is
// a regression, an improvement or neither.
func (d *Detector) Compare(baseline, current *Result) *ComparisonResult {
	out := &ComparisonResult{
		Baseline: baseline,
		Current:  current,
	}

	for _, metric := range Metrics {
		b, c := baseline.MetricValue(metric), current.MetricValue(metric)
		change := PercentChange(b, c)

		// Degradation is positive when the metric got worse. A higher
		// score is better, so its direction is inverted.
		degradation := change
		floor := d.improvementFloor

		if metric == MetricPerformanceScore {
			degradation = -change
			floor = d.scoreImprovementFloor
		}

		t := d.thresholds[metric]

		switch {
		case degradation >= t.Critical:
			out.Regressions = append(out.Regressions, RegressionItem{
				Metric: metric, Baseline: b, Current: c, Percent: change, Severity: SeverityCritical,
			})
			out.HasCritical = true
		case degradation >= t.Warning:
			out.Regressions = append(out.Regressions, RegressionItem{
				Metric: metric, Baseline: b, Current: c, Percent: change, Severity: SeverityWarning,
			})
			out.HasWarning = true
		case -degradation > floor:
			out.Improvements = append(out.Improvements, ImprovementItem{
				Metric: metric, Baseline: b, Current: c, Percent: change,
			})
		}
	}

	return out
}

// percentPrecision is the number of decimal places a percent change keeps,
// so a change of exactly 25% compares equal to a 25% threshold.
const percentPrecision = 1e6

// PercentChange returns (current-baseline)/baseline*100, rounded to six
// decimal places. A zero baseline yields 100 when current is positive and 0
// otherwise.
func PercentChange(baseline, current float64) float64 {
	if baseline == 0 {
		if current > 0 {
			return 100
		}

		return 0
	}

	return math.Round((current-baseline)/baseline*100*percentPrecision) / percentPrecision
}

// MetricValue returns the value of a compared metric. A nil result or an
// unknown metric yields 0.
func (r *Result) MetricValue(metric string) float64 {
	if r == nil {
		return 0
	}

	switch metric {
	case MetricExecutionTime:
		return r.ExecutionTime
	case MetricPeakMemory:
		return float64(r.PeakMemory)
	case MetricTotalQueries:
		return float64(r.TotalQueries)
	case MetricPerformanceScore:
		return float64(r.PerformanceScore)
	default:
		return 0
	}
}
