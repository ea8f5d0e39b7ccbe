package advisor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRule struct {
	name        string
	enabled     bool
	suggestions []Suggestion
}

func (r *staticRule) Name() string { return r.name }

func (r *staticRule) IsEnabled(_ Config) bool { return r.enabled }

func (r *staticRule) Analyze(_ Collector, _ Config) []Suggestion { return r.suggestions }

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func TestAdvisor_Disabled(t *testing.T) {
	tests := []struct {
		name        string
		explicit    bool
		configFlag  bool
		wantEnabled bool
	}{
		{name: "both enabled", explicit: true, configFlag: true, wantEnabled: true},
		{name: "explicit off", explicit: false, configFlag: true},
		{name: "config off", explicit: true, configFlag: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector(nil)
			a := New(testLogger(), c, Config{Enabled: tt.configFlag})
			a.SetEnabled(tt.explicit)

			assert.Equal(t, tt.wantEnabled, a.IsEnabled())

			a.Start()
			assert.Equal(t, tt.wantEnabled, c.IsActive())

			report, ok := a.Stop()
			assert.Equal(t, tt.wantEnabled, ok)

			if !tt.wantEnabled {
				assert.Nil(t, report)
			} else {
				assert.NotNil(t, report)
			}
		})
	}
}

func TestAdvisor_DefaultRuleOrder(t *testing.T) {
	a := New(testLogger(), NewCollector(nil), DefaultConfig())

	names := make([]string, 0, 4)
	for _, r := range a.Rules() {
		names = append(names, r.Name())
	}

	assert.Equal(t, []string{RuleNPlusOne, RuleSlowQuery, RuleHotspot, RuleDuplicate}, names)
}

func TestAdvisor_SortsBySeverity(t *testing.T) {
	first := &staticRule{name: "first", enabled: true, suggestions: []Suggestion{
		{Type: "x", Severity: SeverityInfo, Title: "info-1"},
		{Type: "x", Severity: SeverityWarning, Title: "warning-1"},
	}}
	second := &staticRule{name: "second", enabled: true, suggestions: []Suggestion{
		{Type: "y", Severity: SeverityCritical, Title: "critical-1"},
		{Type: "y", Severity: SeverityWarning, Title: "warning-2"},
	}}
	disabled := &staticRule{name: "disabled", suggestions: []Suggestion{
		{Type: "z", Severity: SeverityCritical, Title: "never"},
	}}

	a := New(testLogger(), NewCollector(nil), DefaultConfig(), WithRules(first, second))
	a.AddRule(disabled)

	report := a.Analyze()

	titles := make([]string, 0, len(report.Suggestions))
	for _, s := range report.Suggestions {
		titles = append(titles, s.Title)
	}

	assert.Equal(t, []string{"critical-1", "warning-1", "warning-2", "info-1"}, titles)
	assert.Equal(t, 1, report.CriticalCount())
	assert.Equal(t, 2, report.WarningCount())
}

func TestAdvisor_EndToEndNPlusOne(t *testing.T) {
	c := NewCollector(nil)
	cfg := Config{
		Enabled: true,
		Rules: map[string]map[string]any{
			RuleNPlusOne: {"threshold": 10, "critical_count": 100},
		},
	}

	a := New(testLogger(), c, cfg)
	a.Start()

	for _, e := range repeated(100, "SELECT * FROM comments WHERE post_id = %d", 1, "posts.go", 12) {
		c.Record(e)
	}

	report, ok := a.Stop()
	require.True(t, ok)

	assert.Equal(t, 100, report.TotalQueries)
	assert.InDelta(t, 100.0, report.TotalTimeMS, 1e-9)
	assert.Equal(t, 1, report.UniqueQueries)

	var nPlusOne *Suggestion

	for i := range report.Suggestions {
		if report.Suggestions[i].Type == TypeNPlusOne {
			nPlusOne = &report.Suggestions[i]
		}
	}

	require.NotNil(t, nPlusOne)
	assert.Equal(t, SeverityCritical, nPlusOne.Severity)
	assert.Equal(t, "comment", nPlusOne.Metadata[MetaRelation])
}

func TestAdvisor_LocationStats(t *testing.T) {
	c := NewCollector(nil)
	a := New(testLogger(), c, DefaultConfig(), WithRules())

	a.Start()
	c.Record(event("SELECT 1", 1, "a.go", 1))
	c.Record(event("SELECT 1", 1, "b.go", 1))
	c.Record(event("SELECT 1", 1, "b.go", 1))
	c.Record(event("SELECT 1", 50, "c.go", 1))

	report, ok := a.Stop()
	require.True(t, ok)

	require.Len(t, report.QueriesByLocation, 3)
	assert.Equal(t, "b.go:1", report.QueriesByLocation[0].Location)
	assert.Equal(t, 2, report.QueriesByLocation[0].Value)

	require.Len(t, report.TimeByLocation, 3)
	assert.Equal(t, "c.go:1", report.TimeByLocation[0].Location)

	count, ok := report.QueriesByLocation.Get("a.go:1")
	assert.True(t, ok)
	assert.Equal(t, 1, count)
}

func TestAdvisor_AnalysisDuration(t *testing.T) {
	ticks := []time.Time{
		time.Unix(0, 0),
		time.Unix(0, int64(3*time.Millisecond)),
	}

	a := New(testLogger(), NewCollector(nil), DefaultConfig(), WithClock(func() time.Time {
		now := ticks[0]
		ticks = ticks[1:]

		return now
	}))

	report := a.Analyze()
	assert.Equal(t, 3*time.Millisecond, report.AnalysisDuration)
}

func TestReport_ToExport(t *testing.T) {
	report := &Report{
		TotalQueries:  3,
		TotalTimeMS:   12.5,
		UniqueQueries: 2,
		Suggestions: []Suggestion{{
			Type:        TypeDuplicate,
			Severity:    SeverityInfo,
			Title:       "dup",
			Description: "desc",
			Location:    "a.go:1",
			Remediation: "line one\nline two",
			Metadata:    map[string]any{MetaCount: 2},
		}},
		QueriesByLocation: newLocationStats(map[string]int{"a.go:1": 1, "b.go:2": 2}),
		TimeByLocation:    newLocationStats(map[string]float64{"a.go:1": 10, "b.go:2": 2.5}),
	}

	data, err := json.Marshal(report.ToExport())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.InDelta(t, 3, decoded["total_queries"], 0)
	assert.Contains(t, string(data), `"queries_by_location":{"b.go:2":2,"a.go:1":1}`)
	assert.Contains(t, string(data), `"time_by_location":{"a.go:1":10,"b.go:2":2.5}`)

	suggestions, ok := decoded["suggestions"].([]any)
	require.True(t, ok)
	require.Len(t, suggestions, 1)

	s, ok := suggestions[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "line one\nline two", s["remediation"])
	assert.NotContains(t, s, "metadata")
}

func TestReport_EmptyExport(t *testing.T) {
	data, err := json.Marshal((&Report{}).ToExport())
	require.NoError(t, err)

	assert.Contains(t, string(data), `"suggestions":[]`)
	assert.Contains(t, string(data), `"queries_by_location":{}`)
}

func TestLocationStats_RoundTrip(t *testing.T) {
	in := newLocationStats(map[string]int{"x": 1, "y": 5})

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out LocationStats[int]
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, in, out)
}
