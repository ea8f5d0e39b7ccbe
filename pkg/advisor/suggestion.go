package advisor

// Severity ranks how urgent a suggestion is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities for sorting: critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

// Suggestion types produced by the built-in rules.
const (
	TypeNPlusOne  = "n_plus_one"
	TypeSlowQuery = "slow_query"
	TypeHotspot   = "hotspot"
	TypeDuplicate = "duplicate_query"
)

// Metadata keys shared between rules and scoring.
const (
	MetaCount             = "count"
	MetaTotalTimeMS       = "total_time_ms"
	MetaAvgTimeMS         = "avg_time_ms"
	MetaTimeMS            = "time_ms"
	MetaSampleSQL         = "sample_sql"
	MetaNormalizedSQL     = "normalized_sql"
	MetaPotentialSavings  = "potential_savings_ms"
	MetaWastedTimeMS      = "wasted_time_ms"
	MetaTable             = "table"
	MetaRelation          = "relation"
	MetaQueryShare        = "query_share_percent"
	MetaTimeShare         = "time_share_percent"
	MetaLocation          = "location"
	MetaSuggestedIndexCol = "index_column"
)

// Suggestion is one finding produced by a rule.
type Suggestion struct {
	Type        string         `json:"type"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Location    string         `json:"location,omitempty"`
	Remediation string         `json:"remediation,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Float returns a numeric metadata value.
func (s *Suggestion) Float(key string) (float64, bool) {
	v, ok := s.Metadata[key]
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
