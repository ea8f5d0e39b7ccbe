package score

import (
	"math/rand"
	"testing"

	"github.com/ethpandaops/dbbench/pkg/advisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func suggestion(t string, sev advisor.Severity) advisor.Suggestion {
	return advisor.Suggestion{Type: t, Severity: sev}
}

func TestCalculate_CleanReport(t *testing.T) {
	report := &advisor.Report{TotalQueries: 10, UniqueQueries: 10, TotalTimeMS: 10}

	r := Calculate(report, 1)

	assert.Equal(t, 100, r.Score)
	assert.Equal(t, "A", r.Grade.Letter)
	assert.Equal(t, 100, r.PotentialScore)
}

func TestCalculate_NilReport(t *testing.T) {
	r := Calculate(nil, 0)
	assert.Equal(t, 100, r.Score)
}

func TestCalculate_Steps(t *testing.T) {
	tests := []struct {
		name          string
		report        *advisor.Report
		seconds       float64
		want          int
		wantPotential int
	}{
		{
			name: "one critical n+1",
			report: &advisor.Report{
				TotalQueries:  100,
				UniqueQueries: 60,
				Suggestions:   []advisor.Suggestion{suggestion(advisor.TypeNPlusOne, advisor.SeverityCritical)},
			},
			seconds:       1,
			want:          85,
			wantPotential: 100,
		},
		{
			name: "per type cap",
			report: &advisor.Report{
				TotalQueries:  100,
				UniqueQueries: 60,
				Suggestions: []advisor.Suggestion{
					suggestion(advisor.TypeSlowQuery, advisor.SeverityCritical),
					suggestion(advisor.TypeSlowQuery, advisor.SeverityCritical),
					suggestion(advisor.TypeSlowQuery, advisor.SeverityCritical),
				},
			},
			seconds:       1,
			want:          70,
			wantPotential: 100,
		},
		{
			name: "types compound",
			report: &advisor.Report{
				TotalQueries:  100,
				UniqueQueries: 60,
				Suggestions: []advisor.Suggestion{
					suggestion(advisor.TypeSlowQuery, advisor.SeverityCritical),
					suggestion(advisor.TypeSlowQuery, advisor.SeverityCritical),
					suggestion(advisor.TypeNPlusOne, advisor.SeverityCritical),
					suggestion(advisor.TypeNPlusOne, advisor.SeverityCritical),
					suggestion(advisor.TypeHotspot, advisor.SeverityWarning),
				},
			},
			seconds:       1,
			want:          35,
			wantPotential: 100,
		},
		{
			name: "db time share and uniqueness",
			report: &advisor.Report{
				TotalQueries:  100,
				UniqueQueries: 4,
				TotalTimeMS:   900,
				Suggestions:   []advisor.Suggestion{suggestion(advisor.TypeDuplicate, advisor.SeverityInfo)},
			},
			seconds:       1,
			want:          100 - 1 - 15 - 15 + 5,
			wantPotential: 100 - 15 - 15 + 15,
		},
		{
			name:          "few issue-free queries keep potential at or above score",
			report:        &advisor.Report{TotalQueries: 40, UniqueQueries: 1, TotalTimeMS: 900},
			seconds:       1,
			want:          100 - 15 - 15 + 5 + 10 + 5,
			wantPotential: 100 - 15 - 15 + 5 + 10 + 5,
		},
		{
			name:          "unknown type uses default penalty",
			report:        &advisor.Report{TotalQueries: 10, UniqueQueries: 10, Suggestions: []advisor.Suggestion{suggestion("custom", advisor.SeverityInfo)}},
			seconds:       1,
			want:          100,
			wantPotential: 100,
		},
		{
			name: "warning bonuses after penalties",
			report: &advisor.Report{
				TotalQueries:  10,
				UniqueQueries: 10,
				Suggestions:   []advisor.Suggestion{suggestion(advisor.TypeNPlusOne, advisor.SeverityWarning)},
			},
			seconds:       1,
			want:          100,
			wantPotential: 100,
		},
		{
			name:          "zero seconds skips db time share",
			report:        &advisor.Report{TotalQueries: 100, UniqueQueries: 100, TotalTimeMS: 1e6},
			seconds:       0,
			want:          100,
			wantPotential: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Calculate(tt.report, tt.seconds)

			assert.Equal(t, tt.want, r.Score)
			assert.Equal(t, tt.wantPotential, r.PotentialScore)
			assert.GreaterOrEqual(t, r.PotentialScore, r.Score)
		})
	}
}

func TestCalculate_Breakdown(t *testing.T) {
	report := &advisor.Report{
		TotalQueries:  100,
		UniqueQueries: 10,
		TotalTimeMS:   600,
		Suggestions: []advisor.Suggestion{
			suggestion(advisor.TypeNPlusOne, advisor.SeverityWarning),
			suggestion(advisor.TypeNPlusOne, advisor.SeverityWarning),
		},
	}

	r := Calculate(report, 1)
	require.Len(t, r.Breakdown, 4)

	assert.Equal(t, BreakdownItem{Kind: KindIssues, Label: advisor.TypeNPlusOne, Points: -16, Count: 2}, r.Breakdown[0])
	assert.Equal(t, KindDBTime, r.Breakdown[1].Kind)
	assert.Equal(t, -5, r.Breakdown[1].Points)
	assert.Equal(t, KindUniqueness, r.Breakdown[2].Kind)
	assert.Equal(t, -10, r.Breakdown[2].Points)
	assert.Equal(t, KindBonus, r.Breakdown[3].Kind)
	assert.Equal(t, 74, r.Score)
}

func TestCalculate_MonotonicAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	types := []string{advisor.TypeNPlusOne, advisor.TypeSlowQuery, advisor.TypeHotspot, advisor.TypeDuplicate, "other"}
	severities := []advisor.Severity{advisor.SeverityCritical, advisor.SeverityWarning, advisor.SeverityInfo}

	for i := 0; i < 100; i++ {
		total := rng.Intn(500)
		report := &advisor.Report{
			TotalQueries:  total,
			UniqueQueries: rng.Intn(total + 1),
			TotalTimeMS:   rng.Float64() * 2000,
		}

		for j := 0; j < rng.Intn(6); j++ {
			report.Suggestions = append(report.Suggestions,
				suggestion(types[rng.Intn(len(types))], severities[rng.Intn(len(severities))]))
		}

		seconds := rng.Float64() * 2
		prev := Calculate(report, seconds).Score

		for k := 0; k < 10; k++ {
			report.Suggestions = append(report.Suggestions,
				suggestion(types[rng.Intn(len(types))], advisor.SeverityCritical))

			next := Calculate(report, seconds).Score

			require.LessOrEqual(t, next, prev)
			require.GreaterOrEqual(t, next, 0)
			require.LessOrEqual(t, next, 100)

			prev = next
		}
	}
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		score  int
		letter string
		label  string
	}{
		{100, "A", "Excellent"},
		{90, "A", "Excellent"},
		{89, "B", "Good"},
		{70, "C", "Acceptable"},
		{65, "D", "Needs Work"},
		{50, "E", "Poor"},
		{49, "F", "Critical"},
		{0, "F", "Critical"},
	}

	for _, tt := range tests {
		g := GradeFor(tt.score)
		assert.Equal(t, tt.letter, g.Letter, "score %d", tt.score)
		assert.Equal(t, tt.label, g.Label, "score %d", tt.score)
	}
}

func TestEstimatedSavingsMS(t *testing.T) {
	report := &advisor.Report{
		Suggestions: []advisor.Suggestion{
			{
				Type:     advisor.TypeNPlusOne,
				Metadata: map[string]any{advisor.MetaPotentialSavings: 40.0, advisor.MetaTotalTimeMS: 100.0},
			},
			{
				Type:     advisor.TypeNPlusOne,
				Metadata: map[string]any{advisor.MetaTotalTimeMS: 50.0},
			},
			{
				Type:     advisor.TypeDuplicate,
				Metadata: map[string]any{advisor.MetaTotalTimeMS: 30.0, advisor.MetaCount: 3},
			},
			{
				Type:     advisor.TypeSlowQuery,
				Metadata: map[string]any{advisor.MetaTimeMS: 500.0},
			},
		},
	}

	assert.InDelta(t, 40+40+20, EstimatedSavingsMS(report, 0.8), 1e-9)
	assert.InDelta(t, 40+25+20, EstimatedSavingsMS(report, 0.5), 1e-9)
	assert.Zero(t, EstimatedSavingsMS(nil, 0.8))
}
