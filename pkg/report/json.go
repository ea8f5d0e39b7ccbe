package report

import (
	"encoding/json"
	"io"

	"github.com/ethpandaops/dbbench/pkg/advisor"
	"github.com/ethpandaops/dbbench/pkg/baseline"
	"github.com/ethpandaops/dbbench/pkg/score"
	"github.com/ethpandaops/dbbench/pkg/stats"
)

// Export is the JSON form of a run and its comparison.
type Export struct {
	Benchmark          string                     `json:"benchmark,omitempty"`
	Report             *advisor.Export            `json:"report,omitempty"`
	Score              *score.Result              `json:"score,omitempty"`
	EstimatedSavingsMS float64                    `json:"estimated_savings_ms,omitempty"`
	Statistics         *stats.IterationResult     `json:"statistics,omitempty"`
	Baseline           *baseline.Result           `json:"baseline,omitempty"`
	Comparison         *baseline.ComparisonExport `json:"comparison,omitempty"`
	NoBaseline         bool                       `json:"no_baseline,omitempty"`
}

// ToExport builds the JSON form of d.
func ToExport(d *Data, opts Options) *Export {
	out := &Export{NoBaseline: d.NoBaseline}

	if d.Run != nil {
		out.Benchmark = d.Run.Benchmark
		out.Score = d.Run.Score
		out.Statistics = d.Run.Statistics
		out.Baseline = d.Run.Baseline
		out.EstimatedSavingsMS = score.EstimatedSavingsMS(d.Run.Report, opts.SavingsRatio)

		if d.Run.Report != nil {
			exp := d.Run.Report.ToExport()
			out.Report = &exp
		}
	}

	if d.Comparison != nil {
		out.Comparison = d.Comparison.Export()
	}

	return out
}

func writeJSON(w io.Writer, d *Data, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(ToExport(d, opts))
}
