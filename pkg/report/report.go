// Package report renders run and comparison results as text, markdown or
// JSON.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/ethpandaops/dbbench/pkg/baseline"
	"github.com/ethpandaops/dbbench/pkg/runner"
	"github.com/fatih/color"
)

// Format is an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat parses an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatMarkdown, FormatJSON:
		return f, nil
	case "", "table":
		return FormatText, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// Data is what gets rendered. Any field may be nil.
type Data struct {
	Run        *runner.RunResult
	Comparison *baseline.ComparisonResult

	// NoBaseline is set when a comparison was requested but no baseline
	// was stored.
	NoBaseline bool
}

// Options tune rendering.
type Options struct {
	UseColors bool

	// SavingsRatio is the share of N+1 time assumed recoverable.
	SavingsRatio float64

	// MaxChars caps markdown output. Zero means unlimited.
	MaxChars int
}

// Write renders d to w in the given format.
func Write(w io.Writer, format Format, d *Data, opts Options) error {
	switch format {
	case FormatJSON:
		if err := writeJSON(w, d, opts); err != nil {
			return fmt.Errorf("writing JSON output: %w", err)
		}
	case FormatMarkdown:
		if _, err := io.WriteString(w, Markdown(d, opts)); err != nil {
			return fmt.Errorf("writing markdown output: %w", err)
		}
	default:
		if err := writeText(w, d, opts); err != nil {
			return fmt.Errorf("writing text output: %w", err)
		}
	}

	return nil
}

// colorizer returns a colouring function for attr, or fmt.Sprint when
// colours are off.
func colorizer(enabled bool, attrs ...color.Attribute) func(...any) string {
	if !enabled {
		return fmt.Sprint
	}

	c := color.New(attrs...)
	c.EnableColor()

	return c.SprintFunc()
}

func statusAttribute(status string) color.Attribute {
	switch status {
	case baseline.StatusCritical:
		return color.FgRed
	case baseline.StatusWarning:
		return color.FgYellow
	case baseline.StatusImproved:
		return color.FgGreen
	default:
		return color.FgCyan
	}
}

func formatBytes(b float64) string {
	return units.BytesSize(b)
}

func formatSeconds(s float64) string {
	return formatDuration(time.Duration(s * float64(time.Second)))
}

// formatDuration formats a time.Duration as a human-readable string.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

func formatMS(ms float64) string {
	return fmt.Sprintf("%.2f ms", ms)
}

// formatMetric renders a compared metric value in its natural unit.
func formatMetric(metric string, v float64) string {
	switch metric {
	case baseline.MetricExecutionTime:
		return formatSeconds(v)
	case baseline.MetricPeakMemory:
		return formatBytes(v)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%+.1f%%", p)
}

var metricLabels = map[string]string{
	baseline.MetricExecutionTime:    "Execution time",
	baseline.MetricPeakMemory:       "Peak memory",
	baseline.MetricTotalQueries:     "Total queries",
	baseline.MetricPerformanceScore: "Performance score",
}

func metricLabel(metric string) string {
	if l, ok := metricLabels[metric]; ok {
		return l
	}

	return metric
}

// metricRow is one metric of a comparison, classified.
type metricRow struct {
	Metric   string
	Baseline float64
	Current  float64
	Percent  float64
	Status   string
}

// comparisonRows lists every compared metric with its classification.
func comparisonRows(c *baseline.ComparisonResult) []metricRow {
	rows := make([]metricRow, 0, len(baseline.Metrics))

	for _, metric := range baseline.Metrics {
		if reg, ok := c.Regression(metric); ok {
			rows = append(rows, metricRow{
				Metric: metric, Baseline: reg.Baseline, Current: reg.Current,
				Percent: reg.Percent, Status: string(reg.Severity),
			})

			continue
		}

		row := metricRow{Metric: metric, Status: baseline.StatusStable}

		for _, imp := range c.Improvements {
			if imp.Metric == metric {
				row = metricRow{
					Metric: metric, Baseline: imp.Baseline, Current: imp.Current,
					Percent: imp.Percent, Status: baseline.StatusImproved,
				}
			}
		}

		if row.Status == baseline.StatusStable {
			row.Baseline, row.Current = c.Baseline.MetricValue(metric), c.Current.MetricValue(metric)
			row.Percent = baseline.PercentChange(row.Baseline, row.Current)
		}

		rows = append(rows, row)
	}

	return rows
}
