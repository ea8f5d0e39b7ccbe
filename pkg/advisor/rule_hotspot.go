package advisor

import (
	"fmt"
	"strings"
)

// HotspotOptions configures the hotspot rule.
type HotspotOptions struct {
	Enabled          bool    `mapstructure:"enabled"`
	MinQueries       int     `mapstructure:"min_queries"`
	ThresholdPercent float64 `mapstructure:"threshold_percent"`
	CriticalPercent  float64 `mapstructure:"critical_percent"`
}

// DefaultHotspotOptions returns the hotspot rule defaults.
func DefaultHotspotOptions() HotspotOptions {
	return HotspotOptions{
		Enabled:          true,
		MinQueries:       10,
		ThresholdPercent: 50,
		CriticalPercent:  80,
	}
}

// HotspotRule flags call sites responsible for a large share of the
// queries or of the database time. A location qualifies when either share
// reaches ThresholdPercent and is critical when either share reaches
// CriticalPercent.
type HotspotRule struct{}

// NewHotspotRule creates the hotspot rule.
func NewHotspotRule() *HotspotRule {
	return &HotspotRule{}
}

// Ensure interface compliance.
var _ Rule = (*HotspotRule)(nil)

func (r *HotspotRule) Name() string {
	return RuleHotspot
}

// Options resolves the rule's options from cfg.
func (r *HotspotRule) Options(cfg Config) HotspotOptions {
	def := DefaultHotspotOptions()
	opts := decodeOptions(cfg, RuleHotspot, def)

	opts.MinQueries = positiveOr(opts.MinQueries, def.MinQueries)
	opts.ThresholdPercent = positiveOr(opts.ThresholdPercent, def.ThresholdPercent)
	opts.CriticalPercent = positiveOr(opts.CriticalPercent, def.CriticalPercent)

	return opts
}

func (r *HotspotRule) IsEnabled(cfg Config) bool {
	return r.Options(cfg).Enabled
}

func (r *HotspotRule) Analyze(c Collector, cfg Config) []Suggestion {
	opts := r.Options(cfg)

	total := c.Count()
	if total < opts.MinQueries {
		return nil
	}

	totalMS := c.TotalTimeMS()
	groups := c.GroupByLocation()

	var suggestions []Suggestion

	for _, location := range sortedGroupKeys(groups) {
		group := groups[location]
		groupMS := totalTime(group)

		queryShare := float64(len(group)) / float64(total) * 100

		var timeShare float64
		if totalMS > 0 {
			timeShare = groupMS / totalMS * 100
		}

		if queryShare < opts.ThresholdPercent && timeShare < opts.ThresholdPercent {
			continue
		}

		severity := SeverityWarning
		if queryShare >= opts.CriticalPercent || timeShare >= opts.CriticalPercent {
			severity = SeverityCritical
		}

		suggestions = append(suggestions, Suggestion{
			Type:     TypeHotspot,
			Severity: severity,
			Title:    fmt.Sprintf("Query hotspot at %s", location),
			Description: fmt.Sprintf(
				"%d of %d queries (%.1f%%) and %.1f%% of database time come from this location.",
				len(group), total, queryShare, timeShare,
			),
			Location: location,
			Remediation: strings.Join([]string{
				"Move repeated lookups out of loops at this location.",
				"Cache results that do not change within the request.",
			}, "\n"),
			Metadata: map[string]any{
				MetaCount:       len(group),
				MetaTotalTimeMS: groupMS,
				MetaQueryShare:  queryShare,
				MetaTimeShare:   timeShare,
				MetaLocation:    location,
			},
		})
	}

	return suggestions
}
