package advisor

import (
	"fmt"
	"regexp"
	"strings"
)

// SlowQueryOptions configures the slow query rule.
type SlowQueryOptions struct {
	Enabled     bool    `mapstructure:"enabled"`
	ThresholdMS float64 `mapstructure:"threshold_ms"`
	CriticalMS  float64 `mapstructure:"critical_ms"`
}

// DefaultSlowQueryOptions returns the slow query rule defaults.
func DefaultSlowQueryOptions() SlowQueryOptions {
	return SlowQueryOptions{
		Enabled:     true,
		ThresholdMS: 100,
		CriticalMS:  1000,
	}
}

// SlowQueryRule flags individual queries slower than a threshold.
type SlowQueryRule struct{}

// NewSlowQueryRule creates the slow query rule.
func NewSlowQueryRule() *SlowQueryRule {
	return &SlowQueryRule{}
}

// Ensure interface compliance.
var _ Rule = (*SlowQueryRule)(nil)

func (r *SlowQueryRule) Name() string {
	return RuleSlowQuery
}

// Options resolves the rule's options from cfg.
func (r *SlowQueryRule) Options(cfg Config) SlowQueryOptions {
	def := DefaultSlowQueryOptions()
	opts := decodeOptions(cfg, RuleSlowQuery, def)

	opts.ThresholdMS = positiveOr(opts.ThresholdMS, def.ThresholdMS)
	opts.CriticalMS = positiveOr(opts.CriticalMS, def.CriticalMS)

	return opts
}

func (r *SlowQueryRule) IsEnabled(cfg Config) bool {
	return r.Options(cfg).Enabled
}

func (r *SlowQueryRule) Analyze(c Collector, cfg Config) []Suggestion {
	opts := r.Options(cfg)

	var suggestions []Suggestion

	for _, q := range c.SlowerThan(opts.ThresholdMS) {
		severity := SeverityWarning
		if q.TimeMS >= opts.CriticalMS {
			severity = SeverityCritical
		}

		hints, indexColumn := slowQueryHints(q.SQL, q.Bindings)

		metadata := map[string]any{
			MetaTimeMS:        q.TimeMS,
			MetaSampleSQL:     q.SQL,
			MetaNormalizedSQL: q.NormalizedSQL,
		}

		if indexColumn != "" {
			metadata[MetaSuggestedIndexCol] = indexColumn
		}

		suggestions = append(suggestions, Suggestion{
			Type:     TypeSlowQuery,
			Severity: severity,
			Title:    fmt.Sprintf("Slow query: %.2fms", q.TimeMS),
			Description: fmt.Sprintf(
				"This query took %.2fms, above the %.0fms threshold.",
				q.TimeMS, opts.ThresholdMS,
			),
			Location:    q.Location(),
			Remediation: strings.Join(hints, "\n"),
			Metadata:    metadata,
		})
	}

	return suggestions
}

var (
	selectRe       = regexp.MustCompile(`(?i)^\s*select\b`)
	whereRe        = regexp.MustCompile(`(?i)\bwhere\b`)
	limitRe        = regexp.MustCompile(`(?i)\b(limit|top|fetch\s+first)\b`)
	orderByRe      = regexp.MustCompile(`(?i)\border\s+by\b`)
	selectStarRe   = regexp.MustCompile(`(?i)\bselect\s+(?:distinct\s+)?(?:[\w"` + "`" + `]+\.)?\*`)
	likeLiteralRe  = regexp.MustCompile(`(?i)\blike\s+['"]%`)
	likeBindRe     = regexp.MustCompile(`(?i)\blike\s+(\?|\$\d+)`)
	indexCandidate = regexp.MustCompile(
		"(?i)\\b(?:where|and)\\s+(?:[\"`\\[]?\\w+[\"`\\]]?\\.)?[\"`\\[]?(\\w+)[\"`\\]]?\\s*=",
	)
)

// slowQueryHints derives independent remediation hints from the query text
// and returns the equality-filtered column worth indexing, if any.
func slowQueryHints(sql string, bindings []any) ([]string, string) {
	var (
		hints       []string
		indexColumn string
	)

	isSelect := selectRe.MatchString(sql)
	hasWhere := whereRe.MatchString(sql)

	if isSelect && !hasWhere && !limitRe.MatchString(sql) {
		hints = append(hints, "Add a WHERE clause or a LIMIT: the query reads every row of the table.")
	}

	if m := indexCandidate.FindStringSubmatch(sql); m != nil {
		indexColumn = m[1]
		hints = append(hints, fmt.Sprintf("Consider adding an index on column %q.", indexColumn))
	}

	if orderByRe.MatchString(sql) {
		hints = append(hints, "Make sure the ORDER BY columns are covered by an index.")
	}

	if hasLeadingWildcard(sql, bindings) {
		hints = append(hints, "LIKE patterns starting with % cannot use an index; consider full-text search.")
	}

	if isSelect && selectStarRe.MatchString(sql) {
		hints = append(hints, "Select only the columns you need instead of SELECT *.")
	}

	if len(hints) == 0 {
		hints = append(hints, "Inspect the query plan with EXPLAIN to find the bottleneck.")
	}

	return hints, indexColumn
}

func hasLeadingWildcard(sql string, bindings []any) bool {
	if likeLiteralRe.MatchString(sql) {
		return true
	}

	if !likeBindRe.MatchString(sql) {
		return false
	}

	for _, b := range bindings {
		if s, ok := b.(string); ok && strings.HasPrefix(s, "%") {
			return true
		}
	}

	return false
}
