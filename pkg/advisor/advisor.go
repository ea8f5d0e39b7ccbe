package advisor

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Advisor runs the configured rules over a collector's queries.
type Advisor interface {
	// Start opens a collection window when the advisor is enabled.
	Start()

	// Stop closes the window and analyzes it. ok is false when the advisor
	// is disabled, in which case no analysis ran.
	Stop() (report *Report, ok bool)

	// Analyze runs every enabled rule over the collected queries.
	Analyze() *Report

	// IsEnabled reports whether both the explicit flag and Config.Enabled
	// are set.
	IsEnabled() bool
	SetEnabled(enabled bool)

	// AddRule appends a rule after the existing ones.
	AddRule(rule Rule)
	Rules() []Rule

	Collector() Collector
	Config() Config
}

// Option configures an Advisor.
type Option func(*advisor)

// WithRules replaces the default rule list.
func WithRules(rules ...Rule) Option {
	return func(a *advisor) {
		a.rules = append([]Rule(nil), rules...)
	}
}

// WithClock overrides the clock used to measure analysis duration.
func WithClock(now func() time.Time) Option {
	return func(a *advisor) {
		a.now = now
	}
}

// New creates an advisor over collector. The default rules are used unless
// WithRules is given.
func New(log logrus.FieldLogger, collector Collector, cfg Config, opts ...Option) Advisor {
	a := &advisor{
		log:       log.WithField("component", "advisor"),
		collector: collector,
		cfg:       cfg,
		enabled:   true,
		rules:     DefaultRules(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

type advisor struct {
	log       logrus.FieldLogger
	collector Collector
	cfg       Config
	now       func() time.Time

	mu      sync.RWMutex
	enabled bool
	rules   []Rule
}

// Ensure interface compliance.
var _ Advisor = (*advisor)(nil)

func (a *advisor) Start() {
	if !a.IsEnabled() {
		return
	}

	a.collector.Start()
}

func (a *advisor) Stop() (*Report, bool) {
	if !a.IsEnabled() {
		return nil, false
	}

	a.collector.Stop()

	return a.Analyze(), true
}

func (a *advisor) Analyze() *Report {
	started := a.now()

	var suggestions []Suggestion

	for _, rule := range a.Rules() {
		if !rule.IsEnabled(a.cfg) {
			continue
		}

		suggestions = append(suggestions, rule.Analyze(a.collector, a.cfg)...)
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Severity.Rank() < suggestions[j].Severity.Rank()
	})

	groups := a.collector.GroupByLocation()
	counts := make(map[string]int, len(groups))
	times := make(map[string]float64, len(groups))

	for location, group := range groups {
		counts[location] = len(group)
		times[location] = totalTime(group)
	}

	report := &Report{
		TotalQueries:      a.collector.Count(),
		TotalTimeMS:       a.collector.TotalTimeMS(),
		UniqueQueries:     a.collector.UniqueCount(),
		Suggestions:       suggestions,
		QueriesByLocation: newLocationStats(counts),
		TimeByLocation:    newLocationStats(times),
	}

	report.AnalysisDuration = a.now().Sub(started)

	a.log.WithFields(logrus.Fields{
		"queries":     report.TotalQueries,
		"suggestions": len(report.Suggestions),
		"critical":    report.CriticalCount(),
		"duration":    report.AnalysisDuration,
	}).Debug("Analyzed collected queries")

	return report
}

func (a *advisor) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.enabled && a.cfg.Enabled
}

func (a *advisor) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.enabled = enabled
}

func (a *advisor) AddRule(rule Rule) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rules = append(a.rules, rule)
}

func (a *advisor) Rules() []Rule {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Rule, len(a.rules))
	copy(out, a.rules)

	return out
}

func (a *advisor) Collector() Collector {
	return a.collector
}

func (a *advisor) Config() Config {
	return a.cfg
}
