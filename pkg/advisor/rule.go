package advisor

import (
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Rule names used as keys in Config.Rules.
const (
	RuleNPlusOne  = "n_plus_one"
	RuleSlowQuery = "slow_query"
	RuleHotspot   = "hotspot"
	RuleDuplicate = "duplicate"
)

// Config configures the advisor and its rules.
type Config struct {
	Enabled bool

	// Rules maps a rule name to its options. Each rule reads only its own
	// entry; unknown keys are ignored and missing or malformed values fall
	// back to the rule's defaults.
	Rules map[string]map[string]any
}

// DefaultConfig returns an enabled config with every rule on its defaults.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Rule detects one inefficiency pattern in collected queries. Analyze must
// not modify the collector.
type Rule interface {
	Name() string
	IsEnabled(cfg Config) bool
	Analyze(c Collector, cfg Config) []Suggestion
}

// DefaultRules returns the built-in rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		NewNPlusOneRule(),
		NewSlowQueryRule(),
		NewHotspotRule(),
		NewDuplicateRule(),
	}
}

// decodeOptions overlays the rule's entry in cfg onto defaults, one key at
// a time, so a malformed value only resets that key.
func decodeOptions[T any](cfg Config, name string, defaults T) T {
	raw, ok := cfg.Rules[name]
	if !ok || len(raw) == 0 {
		return defaults
	}

	out := defaults

	for key, value := range raw {
		candidate := out

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &candidate,
		})
		if err != nil {
			continue
		}

		if err := decoder.Decode(map[string]any{key: value}); err != nil {
			continue
		}

		out = candidate
	}

	return out
}

// positiveOr returns v when it is positive, else def.
func positiveOr[T int | float64](v, def T) T {
	if v > 0 {
		return v
	}

	return def
}

// sortedGroupKeys orders group keys by group size descending, then key.
func sortedGroupKeys(groups map[string][]CollectedQuery) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if len(groups[keys[i]]) != len(groups[keys[j]]) {
			return len(groups[keys[i]]) > len(groups[keys[j]])
		}

		return keys[i] < keys[j]
	})

	return keys
}
