package advisor

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"
)

// NPlusOneOptions configures the N+1 rule.
type NPlusOneOptions struct {
	Enabled        bool    `mapstructure:"enabled"`
	Threshold      int     `mapstructure:"threshold"`
	CriticalCount  int     `mapstructure:"critical_count"`
	CriticalTimeMS float64 `mapstructure:"critical_time_ms"`

	// BulkCostMultiplier models a batched query as this many single
	// executions when estimating savings.
	BulkCostMultiplier float64 `mapstructure:"bulk_cost_multiplier"`
}

// DefaultNPlusOneOptions returns the N+1 rule defaults.
func DefaultNPlusOneOptions() NPlusOneOptions {
	return NPlusOneOptions{
		Enabled:            true,
		Threshold:          10,
		CriticalCount:      50,
		CriticalTimeMS:     1000,
		BulkCostMultiplier: 5,
	}
}

// NPlusOneRule flags structurally identical queries executed many times.
type NPlusOneRule struct{}

// NewNPlusOneRule creates the N+1 rule.
func NewNPlusOneRule() *NPlusOneRule {
	return &NPlusOneRule{}
}

// Ensure interface compliance.
var _ Rule = (*NPlusOneRule)(nil)

func (r *NPlusOneRule) Name() string {
	return RuleNPlusOne
}

// Options resolves the rule's options from cfg.
func (r *NPlusOneRule) Options(cfg Config) NPlusOneOptions {
	def := DefaultNPlusOneOptions()
	opts := decodeOptions(cfg, RuleNPlusOne, def)

	opts.Threshold = positiveOr(opts.Threshold, def.Threshold)
	opts.CriticalCount = positiveOr(opts.CriticalCount, def.CriticalCount)
	opts.CriticalTimeMS = positiveOr(opts.CriticalTimeMS, def.CriticalTimeMS)
	opts.BulkCostMultiplier = positiveOr(opts.BulkCostMultiplier, def.BulkCostMultiplier)

	return opts
}

func (r *NPlusOneRule) IsEnabled(cfg Config) bool {
	return r.Options(cfg).Enabled
}

func (r *NPlusOneRule) Analyze(c Collector, cfg Config) []Suggestion {
	opts := r.Options(cfg)
	groups := c.GroupByNormalized()

	var suggestions []Suggestion

	for _, normalized := range sortedGroupKeys(groups) {
		group := groups[normalized]
		count := len(group)

		if count < opts.Threshold {
			continue
		}

		total := totalTime(group)
		avg := total / float64(count)
		savings := math.Max(0, total-avg*opts.BulkCostMultiplier)

		severity := SeverityWarning
		if count >= opts.CriticalCount || total >= opts.CriticalTimeMS {
			severity = SeverityCritical
		}

		sample := group[0].SQL
		table, relation := inferRelation(sample)

		metadata := map[string]any{
			MetaCount:            count,
			MetaTotalTimeMS:      total,
			MetaAvgTimeMS:        avg,
			MetaPotentialSavings: savings,
			MetaSampleSQL:        sample,
			MetaNormalizedSQL:    normalized,
		}

		if table != "" {
			metadata[MetaTable] = table
		}

		if relation != "" {
			metadata[MetaRelation] = relation
		}

		suggestions = append(suggestions, Suggestion{
			Type:     TypeNPlusOne,
			Severity: severity,
			Title:    fmt.Sprintf("N+1 query detected: %d similar queries", count),
			Description: fmt.Sprintf(
				"The same query shape ran %d times for %.2fms in total (%.2fms each). "+
					"Batching it could save about %.2fms.",
				count, total, avg, savings,
			),
			Location:    group[0].Location(),
			Remediation: nPlusOneRemediation(table, relation),
			Metadata:    metadata,
		})
	}

	return suggestions
}

func nPlusOneRemediation(table, relation string) string {
	if relation != "" {
		return strings.Join([]string{
			fmt.Sprintf("Eager load the %q relation instead of loading it per row:", relation),
			fmt.Sprintf("  db.Preload(%q).Find(&items)", upperFirst(relation)),
		}, "\n")
	}

	if table != "" {
		return strings.Join([]string{
			fmt.Sprintf("Fetch the %s rows in one query instead of one per item:", table),
			fmt.Sprintf("  SELECT * FROM %s WHERE id IN (?)", table),
		}, "\n")
	}

	return "Batch these lookups into a single query using WHERE ... IN (...)."
}

var (
	fromTableRe = regexp.MustCompile("(?i)\\bfrom\\s+[\"`\\[]?(\\w+)[\"`\\]]?")
	whereEqRe   = regexp.MustCompile(
		"(?i)\\bwhere\\s+(?:[\"`\\[]?\\w+[\"`\\]]?\\.)?[\"`\\[]?(\\w+)[\"`\\]]?\\s*=",
	)
)

// inferRelation guesses the table and relation name behind a lookup query.
// Either result may be empty; the guess is only a hint.
func inferRelation(sql string) (table, relation string) {
	m := fromTableRe.FindStringSubmatch(sql)
	if m == nil {
		return "", ""
	}

	table = strings.ToLower(m[1])

	w := whereEqRe.FindStringSubmatch(sql)
	if w == nil {
		return table, ""
	}

	column := strings.ToLower(w[1])

	switch {
	case strings.HasSuffix(column, "_id"):
		return table, camelCase(inflection.Singular(table))
	case column == "id":
		return table, inflection.Singular(table)
	default:
		return table, ""
	}
}

func camelCase(s string) string {
	parts := strings.Split(s, "_")

	var b strings.Builder

	for i, p := range parts {
		if p == "" {
			continue
		}

		if i == 0 {
			b.WriteString(p)

			continue
		}

		b.WriteString(upperFirst(p))
	}

	return b.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
