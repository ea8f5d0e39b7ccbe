package advisor

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DuplicateOptions configures the duplicate query rule.
type DuplicateOptions struct {
	Enabled      bool `mapstructure:"enabled"`
	Threshold    int  `mapstructure:"threshold"`
	WarningCount int  `mapstructure:"warning_count"`
}

// DefaultDuplicateOptions returns the duplicate rule defaults.
func DefaultDuplicateOptions() DuplicateOptions {
	return DuplicateOptions{
		Enabled:      true,
		Threshold:    2,
		WarningCount: 5,
	}
}

// DuplicateRule flags queries repeated with identical SQL and bindings.
type DuplicateRule struct{}

// NewDuplicateRule creates the duplicate query rule.
func NewDuplicateRule() *DuplicateRule {
	return &DuplicateRule{}
}

// Ensure interface compliance.
var _ Rule = (*DuplicateRule)(nil)

func (r *DuplicateRule) Name() string {
	return RuleDuplicate
}

// Options resolves the rule's options from cfg.
func (r *DuplicateRule) Options(cfg Config) DuplicateOptions {
	def := DefaultDuplicateOptions()
	opts := decodeOptions(cfg, RuleDuplicate, def)

	opts.Threshold = positiveOr(opts.Threshold, def.Threshold)
	opts.WarningCount = positiveOr(opts.WarningCount, def.WarningCount)

	return opts
}

func (r *DuplicateRule) IsEnabled(cfg Config) bool {
	return r.Options(cfg).Enabled
}

func (r *DuplicateRule) Analyze(c Collector, cfg Config) []Suggestion {
	opts := r.Options(cfg)

	// Groups are kept in first-seen order.
	var (
		order  []uint64
		groups = make(map[uint64][]CollectedQuery)
	)

	for _, q := range c.Queries() {
		key := exactKey(q)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}

		groups[key] = append(groups[key], q)
	}

	var suggestions []Suggestion

	for _, key := range order {
		group := groups[key]
		count := len(group)

		if count < opts.Threshold {
			continue
		}

		total := totalTime(group)
		wasted := math.Max(0, total-group[0].TimeMS)

		severity := SeverityInfo
		if count >= opts.WarningCount {
			severity = SeverityWarning
		}

		suggestions = append(suggestions, Suggestion{
			Type:     TypeDuplicate,
			Severity: severity,
			Title:    fmt.Sprintf("Duplicate query executed %d times", count),
			Description: fmt.Sprintf(
				"The exact same query with identical bindings ran %d times, wasting %.2fms.",
				count, wasted,
			),
			Location: group[0].Location(),
			Remediation: strings.Join([]string{
				"Reuse the result of the first execution instead of querying again.",
				"Look for the same record being loaded several times in one request.",
			}, "\n"),
			Metadata: map[string]any{
				MetaCount:         count,
				MetaTotalTimeMS:   total,
				MetaWastedTimeMS:  wasted,
				MetaSampleSQL:     group[0].SQL,
				MetaNormalizedSQL: group[0].NormalizedSQL,
			},
		})
	}

	return suggestions
}

// exactKey hashes the raw SQL together with its serialized bindings.
func exactKey(q CollectedQuery) uint64 {
	bindings, err := json.Marshal(q.Bindings)
	if err != nil {
		bindings = []byte(fmt.Sprintf("%#v", q.Bindings))
	}

	h := xxhash.New()
	_, _ = h.WriteString(q.SQL)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(bindings)

	return h.Sum64()
}
