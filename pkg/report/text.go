package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/ethpandaops/dbbench/pkg/advisor"
	"github.com/ethpandaops/dbbench/pkg/runner"
	"github.com/ethpandaops/dbbench/pkg/score"
	"github.com/ethpandaops/dbbench/pkg/stats"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

func writeText(w io.Writer, d *Data, opts Options) error {
	if d.Run != nil {
		if err := writeSummaryTable(w, d.Run, opts); err != nil {
			return err
		}

		if d.Run.Statistics != nil && d.Run.Statistics.Iterations() > 1 {
			if err := writeStabilityTable(w, d.Run.Statistics); err != nil {
				return err
			}
		}

		if err := writeSuggestionsTable(w, d.Run.Report, opts); err != nil {
			return err
		}
	}

	switch {
	case d.Comparison != nil:
		return writeComparisonTable(w, d, opts)
	case d.NoBaseline:
		_, err := fmt.Fprintln(w, "No baseline stored; nothing to compare against.")

		return err
	}

	return nil
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Header(headers)

	return table
}

func renderTable(table *tablewriter.Table, data [][]string) error {
	defer func() { _ = table.Close() }()

	if err := table.Bulk(data); err != nil {
		return err
	}

	return table.Render()
}

func writeSummaryTable(w io.Writer, run *runner.RunResult, opts Options) error {
	if _, err := fmt.Fprintf(w, "Benchmark: %s (%s)\n", run.Benchmark, run.Reference); err != nil {
		return err
	}

	b := run.Baseline
	table := newTable(w, "Metric", "Value")

	data := [][]string{
		{"Execution time", formatSeconds(b.ExecutionTime)},
		{"Memory used", formatBytes(float64(b.MemoryUsed))},
		{"Peak memory", formatBytes(float64(b.PeakMemory))},
		{"Queries", strconv.Itoa(b.TotalQueries)},
		{"DB time", formatMS(b.TotalDBTime)},
	}

	if run.Score != nil {
		grade := colorizer(opts.UseColors, run.Score.Grade.Attribute())
		data = append(data, []string{"Score", grade(fmt.Sprintf("%d %s", run.Score.Score, run.Score.Grade))})

		if run.Score.PotentialScore > run.Score.Score {
			potential := score.GradeFor(run.Score.PotentialScore)
			data = append(data, []string{"Potential score", fmt.Sprintf("%d %s", run.Score.PotentialScore, potential)})
		}
	}

	if savings := score.EstimatedSavingsMS(run.Report, opts.SavingsRatio); savings > 0 {
		data = append(data, []string{"Estimated savings", formatMS(savings)})
	}

	if b.GitCommit != "" {
		data = append(data, []string{"Revision", fmt.Sprintf("%s@%s", b.GitBranch, shortCommit(b.GitCommit))})
	}

	return renderTable(table, data)
}

func writeStabilityTable(w io.Writer, it *stats.IterationResult) error {
	if _, err := fmt.Fprintf(w, "\nIterations: %d measured, %d warmup\n", it.Iterations(), it.Warmup); err != nil {
		return err
	}

	table := newTable(w, "Metric", "Median", "Mean", "Min", "Max", "Std Dev", "Stability")
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, 5)
	for _, row := range stabilityRows(it) {
		data = append(data, []string{
			row.label,
			row.format(row.stats.Median),
			row.format(row.stats.Mean),
			row.format(row.stats.Min),
			row.format(row.stats.Max),
			fmt.Sprintf("%.1f%%", row.stats.StdDevPercent),
			row.stats.Stability(),
		})
	}

	return renderTable(table, data)
}

type stabilityRow struct {
	label  string
	stats  stats.BenchmarkStats
	format func(float64) string
}

func stabilityRows(it *stats.IterationResult) []stabilityRow {
	count := func(v float64) string { return fmt.Sprintf("%.0f", v) }

	return []stabilityRow{
		{label: "Execution time", stats: it.ExecutionTime, format: formatSeconds},
		{label: "Peak memory", stats: it.PeakMemory, format: formatBytes},
		{label: "Queries", stats: it.QueryCount, format: count},
		{label: "DB time", stats: it.DBTime, format: formatMS},
		{label: "Score", stats: it.Score, format: count},
	}
}

func writeSuggestionsTable(w io.Writer, report *advisor.Report, opts Options) error {
	if report == nil {
		return nil
	}

	if len(report.Suggestions) == 0 {
		_, err := fmt.Fprintln(w, "\nNo query issues found.")

		return err
	}

	if _, err := fmt.Fprintf(w, "\nSuggestions: %d critical, %d warning, %d total\n",
		report.CriticalCount(), report.WarningCount(), len(report.Suggestions)); err != nil {
		return err
	}

	table := newTable(w, "Severity", "Type", "Location", "Title")
	data := make([][]string, 0, len(report.Suggestions))

	for _, s := range report.Suggestions {
		sev := colorizer(opts.UseColors, severityAttribute(s.Severity))

		data = append(data, []string{sev(string(s.Severity)), s.Type, s.Location, s.Title})
	}

	return renderTable(table, data)
}

func severityAttribute(s advisor.Severity) color.Attribute {
	switch s {
	case advisor.SeverityCritical:
		return color.FgRed
	case advisor.SeverityWarning:
		return color.FgYellow
	default:
		return color.FgBlue
	}
}

func writeComparisonTable(w io.Writer, d *Data, opts Options) error {
	c := d.Comparison

	if _, err := fmt.Fprintln(w, "\nBaseline comparison"); err != nil {
		return err
	}

	table := newTable(w, "Metric", "Baseline", "Current", "Change", "Status")
	data := make([][]string, 0, 4)

	for _, row := range comparisonRows(c) {
		status := colorizer(opts.UseColors, statusAttribute(row.Status))

		data = append(data, []string{
			metricLabel(row.Metric),
			formatMetric(row.Metric, row.Baseline),
			formatMetric(row.Metric, row.Current),
			formatPercent(row.Percent),
			status(row.Status),
		})
	}

	if err := renderTable(table, data); err != nil {
		return err
	}

	overall := colorizer(opts.UseColors, color.Bold, statusAttribute(c.Status()))
	_, err := fmt.Fprintf(w, "Status: %s\n", overall(c.Status()))

	return err
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}

	return commit
}
