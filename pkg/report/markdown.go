package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethpandaops/dbbench/pkg/advisor"
	"github.com/ethpandaops/dbbench/pkg/baseline"
	"github.com/ethpandaops/dbbench/pkg/runner"
	"github.com/ethpandaops/dbbench/pkg/score"
	"github.com/ethpandaops/dbbench/pkg/stats"
)

var statusIcons = map[string]string{
	baseline.StatusCritical: "🔴",
	baseline.StatusWarning:  "🟡",
	baseline.StatusImproved: "🟢",
	baseline.StatusStable:   "⚪",
}

// Markdown renders d as a markdown summary suitable for CI job summaries.
// Suggestions are truncated when the output would exceed opts.MaxChars.
func Markdown(d *Data, opts Options) string {
	var sb strings.Builder

	sb.Grow(4096)

	if d.Run != nil {
		writeMarkdownTitle(&sb, d.Run)
		writeMarkdownOverview(&sb, d.Run, opts)
		writeMarkdownStability(&sb, d.Run.Statistics)
		writeMarkdownOptions(&sb, d.Run.Baseline)
	}

	switch {
	case d.Comparison != nil:
		writeMarkdownComparison(&sb, d.Comparison)
	case d.NoBaseline:
		sb.WriteString("## Baseline Comparison\n\n")
		sb.WriteString("No baseline stored for this benchmark.\n\n")
	}

	// Suggestions are last, they get truncated if needed.
	if d.Run != nil {
		writeMarkdownSuggestions(&sb, d.Run.Report, opts.MaxChars)
	}

	return sb.String()
}

func writeMarkdownTitle(sb *strings.Builder, run *runner.RunResult) {
	fmt.Fprintf(sb, "# Benchmark: %s\n\n", run.Benchmark)
}

func writeMarkdownOverview(sb *strings.Builder, run *runner.RunResult, opts Options) {
	b := run.Baseline

	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")

	if run.Reference != "" {
		fmt.Fprintf(sb, "| Reference | `%s` |\n", run.Reference)
	}

	fmt.Fprintf(sb, "| Execution Time | %s |\n", formatSeconds(b.ExecutionTime))
	fmt.Fprintf(sb, "| Memory Used | %s |\n", formatBytes(float64(b.MemoryUsed)))
	fmt.Fprintf(sb, "| Peak Memory | %s |\n", formatBytes(float64(b.PeakMemory)))
	fmt.Fprintf(sb, "| Queries | %d |\n", b.TotalQueries)
	fmt.Fprintf(sb, "| DB Time | %s |\n", formatMS(b.TotalDBTime))

	if run.Score != nil {
		fmt.Fprintf(sb, "| Score | **%d** %s |\n", run.Score.Score, run.Score.Grade)

		if run.Score.PotentialScore > run.Score.Score {
			fmt.Fprintf(sb, "| Potential Score | %d %s |\n",
				run.Score.PotentialScore, score.GradeFor(run.Score.PotentialScore))
		}
	}

	if savings := score.EstimatedSavingsMS(run.Report, opts.SavingsRatio); savings > 0 {
		fmt.Fprintf(sb, "| Estimated Savings | %s |\n", formatMS(savings))
	}

	if b.GitBranch != "" {
		fmt.Fprintf(sb, "| Branch | %s |\n", b.GitBranch)
	}

	if b.GitCommit != "" {
		fmt.Fprintf(sb, "| Commit | `%s` |\n", shortCommit(b.GitCommit))
	}

	if run.Duration > 0 {
		fmt.Fprintf(sb, "| Duration | %s |\n", formatDuration(run.Duration))
	}

	sb.WriteByte('\n')
}

func writeMarkdownStability(sb *strings.Builder, it *stats.IterationResult) {
	if it == nil || it.Iterations() < 2 {
		return
	}

	fmt.Fprintf(sb, "## Iterations (%d measured, %d warmup)\n\n", it.Iterations(), it.Warmup)
	sb.WriteString("| Metric | Median | Mean | Min | Max | Std Dev | Stability |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")

	for _, row := range stabilityRows(it) {
		fmt.Fprintf(sb, "| %s | %s | %s | %s | %s | %.1f%% | %s |\n",
			row.label,
			row.format(row.stats.Median),
			row.format(row.stats.Mean),
			row.format(row.stats.Min),
			row.format(row.stats.Max),
			row.stats.StdDevPercent,
			row.stats.Stability(),
		)
	}

	sb.WriteByte('\n')
}

func writeMarkdownOptions(sb *strings.Builder, b *baseline.Result) {
	if b == nil || len(b.Options) == 0 {
		return
	}

	sb.WriteString("## Options\n\n")
	sb.WriteString("| Option | Value |\n")
	sb.WriteString("|---|---|\n")

	// Sort keys for deterministic output.
	keys := make([]string, 0, len(b.Options))
	for k := range b.Options {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(sb, "| %s | %v |\n", k, b.Options[k])
	}

	sb.WriteByte('\n')
}

func writeMarkdownComparison(sb *strings.Builder, c *baseline.ComparisonResult) {
	status := c.Status()

	sb.WriteString("## Baseline Comparison\n\n")
	fmt.Fprintf(sb, "**Status:** %s %s\n\n", statusIcons[status], status)
	sb.WriteString("| Metric | Baseline | Current | Change | Status |\n")
	sb.WriteString("|---|---|---|---|---|\n")

	for _, row := range comparisonRows(c) {
		fmt.Fprintf(sb, "| %s | %s | %s | %s | %s %s |\n",
			metricLabel(row.Metric),
			formatMetric(row.Metric, row.Baseline),
			formatMetric(row.Metric, row.Current),
			formatPercent(row.Percent),
			statusIcons[row.Status],
			row.Status,
		)
	}

	sb.WriteByte('\n')
}

func writeMarkdownSuggestions(sb *strings.Builder, report *advisor.Report, maxChars int) {
	if report == nil || len(report.Suggestions) == 0 {
		return
	}

	sb.WriteString("## Suggestions\n\n")
	sb.WriteString("| Severity | Type | Location | Title |\n")
	sb.WriteString("|---|---|---|---|\n")

	// Reserve space for the truncation message.
	const reserveChars = 100

	for i, s := range report.Suggestions {
		row := fmt.Sprintf("| %s | %s | `%s` | %s |\n",
			s.Severity, s.Type, s.Location, escapeCell(s.Title))

		if maxChars > 0 && sb.Len()+len(row)+reserveChars > maxChars {
			fmt.Fprintf(sb,
				"\n*%d more suggestion(s) not shown "+
					"(output truncated at %d chars)*\n",
				len(report.Suggestions)-i, maxChars)

			return
		}

		sb.WriteString(row)
	}

	sb.WriteByte('\n')
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
