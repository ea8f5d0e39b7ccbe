// Package score turns an advisor report into a 0-100 performance score.
package score

import (
	"math"

	"github.com/ethpandaops/dbbench/pkg/advisor"
)

const (
	// MaxScore is the best possible score.
	MaxScore = 100

	// TypePenaltyCap bounds the total deduction of one suggestion type.
	TypePenaltyCap = 30

	// DefaultPenalty applies to suggestion types missing from the table.
	DefaultPenalty = 5

	// DefaultNPlusOneSavingsRatio is the share of an N+1 group's time
	// assumed recoverable when the suggestion carries no estimate.
	DefaultNPlusOneSavingsRatio = 0.8
)

// Bonuses.
const (
	NoCriticalBonus   = 5
	NoIssuesBonus     = 10
	FewQueriesBonus   = 5
	FewQueriesCeiling = 50
)

// Breakdown item kinds.
const (
	KindIssues     = "issues"
	KindDBTime     = "db_time"
	KindUniqueness = "uniqueness"
	KindBonus      = "bonus"
)

// penalties maps suggestion type to severity to points deducted.
var penalties = map[string]map[advisor.Severity]int{
	advisor.TypeNPlusOne: {
		advisor.SeverityCritical: 15,
		advisor.SeverityWarning:  8,
		advisor.SeverityInfo:     2,
	},
	advisor.TypeSlowQuery: {
		advisor.SeverityCritical: 20,
		advisor.SeverityWarning:  10,
		advisor.SeverityInfo:     3,
	},
	advisor.TypeHotspot: {
		advisor.SeverityCritical: 10,
		advisor.SeverityWarning:  5,
		advisor.SeverityInfo:     1,
	},
	advisor.TypeDuplicate: {
		advisor.SeverityCritical: 5,
		advisor.SeverityWarning:  3,
		advisor.SeverityInfo:     1,
	},
}

// Penalty returns the points deducted for one suggestion.
func Penalty(suggestionType string, severity advisor.Severity) int {
	bySeverity, ok := penalties[suggestionType]
	if !ok {
		return DefaultPenalty
	}

	p, ok := bySeverity[severity]
	if !ok {
		return DefaultPenalty
	}

	return p
}

// BreakdownItem is one step of the score calculation. Points is negative
// for penalties and positive for bonuses.
type BreakdownItem struct {
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Points int    `json:"points"`
	Count  int    `json:"count,omitempty"`
}

// Result is a calculated score.
type Result struct {
	Score          int             `json:"score"`
	Grade          Grade           `json:"grade"`
	PotentialScore int             `json:"potential_score"`
	Breakdown      []BreakdownItem `json:"breakdown"`
}

// Calculate scores report given the workload's total execution time in
// seconds. It returns the zero-issue maximum for a nil report.
func Calculate(report *advisor.Report, totalSeconds float64) Result {
	if report == nil {
		report = &advisor.Report{}
	}

	var breakdown []BreakdownItem

	score := MaxScore

	apply := func(item BreakdownItem) {
		if item.Points == 0 {
			return
		}

		score = clamp(score + item.Points)
		breakdown = append(breakdown, item)
	}

	for _, item := range issuePenalties(report.Suggestions) {
		apply(item)
	}

	dbItem := dbTimePenalty(report.TotalTimeMS, totalSeconds)
	uniqItem := uniquenessPenalty(report.UniqueQueries, report.TotalQueries)

	apply(dbItem)
	apply(uniqItem)

	for _, item := range bonuses(report) {
		apply(item)
	}

	potential := MaxScore + dbItem.Points + uniqItem.Points + NoCriticalBonus + NoIssuesBonus
	if report.TotalQueries < FewQueriesCeiling {
		potential += FewQueriesBonus
	}

	return Result{
		Score:          score,
		Grade:          GradeFor(score),
		PotentialScore: clamp(potential),
		Breakdown:      breakdown,
	}
}

// issuePenalties sums penalties per suggestion type in first-seen order,
// capping each type at TypePenaltyCap.
func issuePenalties(suggestions []advisor.Suggestion) []BreakdownItem {
	var (
		order  []string
		totals = make(map[string]int, 4)
		counts = make(map[string]int, 4)
	)

	for _, s := range suggestions {
		if _, ok := totals[s.Type]; !ok {
			order = append(order, s.Type)
		}

		totals[s.Type] += Penalty(s.Type, s.Severity)
		counts[s.Type]++
	}

	items := make([]BreakdownItem, 0, len(order))

	for _, t := range order {
		items = append(items, BreakdownItem{
			Kind:   KindIssues,
			Label:  t,
			Points: -min(totals[t], TypePenaltyCap),
			Count:  counts[t],
		})
	}

	return items
}

func dbTimePenalty(dbTimeMS, totalSeconds float64) BreakdownItem {
	item := BreakdownItem{Kind: KindDBTime, Label: "database time share"}

	if totalSeconds <= 0 {
		return item
	}

	share := dbTimeMS / (totalSeconds * 1000) * 100

	switch {
	case share > 85:
		item.Points = -15
	case share > 70:
		item.Points = -10
	case share > 50:
		item.Points = -5
	}

	return item
}

func uniquenessPenalty(unique, total int) BreakdownItem {
	item := BreakdownItem{Kind: KindUniqueness, Label: "query uniqueness"}

	if total == 0 {
		return item
	}

	uniqueness := float64(unique) / float64(total) * 100

	switch {
	case uniqueness < 5:
		item.Points = -15
	case uniqueness < 20:
		item.Points = -10
	case uniqueness < 50:
		item.Points = -5
	}

	return item
}

func bonuses(report *advisor.Report) []BreakdownItem {
	var items []BreakdownItem

	if report.CriticalCount() == 0 {
		items = append(items, BreakdownItem{Kind: KindBonus, Label: "no critical issues", Points: NoCriticalBonus})
	}

	if len(report.Suggestions) == 0 {
		items = append(items, BreakdownItem{Kind: KindBonus, Label: "no issues", Points: NoIssuesBonus})
	}

	if report.TotalQueries < FewQueriesCeiling {
		items = append(items, BreakdownItem{Kind: KindBonus, Label: "few queries", Points: FewQueriesBonus})
	}

	return items
}

// EstimatedSavingsMS sums each suggestion's recoverable time. Suggestions
// without an explicit potential_savings_ms estimate fall back to ratio of
// an N+1 group's total time, or all but one execution of a duplicate group.
func EstimatedSavingsMS(report *advisor.Report, nPlusOneRatio float64) float64 {
	if report == nil {
		return 0
	}

	if nPlusOneRatio <= 0 {
		nPlusOneRatio = DefaultNPlusOneSavingsRatio
	}

	var total float64

	for _, s := range report.Suggestions {
		if v, ok := s.Float(advisor.MetaPotentialSavings); ok {
			total += math.Max(0, v)

			continue
		}

		groupTime, ok := s.Float(advisor.MetaTotalTimeMS)
		if !ok {
			continue
		}

		switch s.Type {
		case advisor.TypeNPlusOne:
			total += groupTime * nPlusOneRatio
		case advisor.TypeDuplicate:
			count, ok := s.Float(advisor.MetaCount)
			if !ok || count < 1 {
				continue
			}

			total += groupTime * (count - 1) / count
		}
	}

	return total
}

func clamp(v int) int {
	return max(0, min(MaxScore, v))
}
