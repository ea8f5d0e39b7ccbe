package advisor

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// Collector accumulates query executions during a measurement window and
// offers the grouping views the rules analyze.
type Collector interface {
	// Start opens a new collection window, discarding previously collected
	// queries. It is a no-op while a window is already active.
	Start()

	// Stop closes the window. Collected queries are kept.
	Stop()

	// Reset discards all collected queries.
	Reset()

	// IsActive reports whether a window is open.
	IsActive() bool

	// Record appends an event while active and silently drops it otherwise.
	Record(event QueryEvent)

	// Queries returns a copy of the collected queries in capture order.
	Queries() []CollectedQuery

	Count() int
	TotalTimeMS() float64
	UniqueCount() int

	// GroupByNormalized groups queries by normalized SQL.
	GroupByNormalized() map[string][]CollectedQuery

	// GroupByLocation groups queries by call-site location string.
	GroupByLocation() map[string][]CollectedQuery

	// SlowerThan returns queries whose time exceeds thresholdMS.
	SlowerThan(thresholdMS float64) []CollectedQuery
}

// NewCollector creates a collector that attributes backtraces with the
// given resolver. A nil resolver uses the default framework prefixes.
func NewCollector(resolver *CallSiteResolver) Collector {
	if resolver == nil {
		resolver = NewCallSiteResolver("")
	}

	return &collector{
		resolver: resolver,
		now:      time.Now,
	}
}

type collector struct {
	resolver *CallSiteResolver
	now      func() time.Time

	mu      sync.RWMutex
	active  bool
	queries []CollectedQuery
}

// Ensure interface compliance.
var _ Collector = (*collector)(nil)

func (c *collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return
	}

	c.queries = nil
	c.active = true
}

func (c *collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = false
}

func (c *collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queries = nil
}

func (c *collector) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.active
}

func (c *collector) Record(event QueryEvent) {
	// Late events are dropped before call-site resolution.
	if !c.IsActive() {
		return
	}

	site := event.CallSite
	if site == nil {
		site = c.resolver.Resolve(event.Backtrace)
	}

	bindings := make([]any, len(event.Bindings))
	copy(bindings, event.Bindings)

	q := CollectedQuery{
		SQL:           event.SQL,
		Bindings:      bindings,
		TimeMS:        event.TimeMS,
		Connection:    event.Connection,
		CallSite:      site,
		NormalizedSQL: NormalizeSQL(event.SQL),
		CapturedAt:    c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}

	c.queries = append(c.queries, q)
}

func (c *collector) Queries() []CollectedQuery {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]CollectedQuery, len(c.queries))
	copy(out, c.queries)

	return out
}

func (c *collector) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.queries)
}

func (c *collector) TotalTimeMS() float64 {
	return totalTime(c.Queries())
}

func (c *collector) UniqueCount() int {
	return len(lo.UniqBy(c.Queries(), func(q CollectedQuery) string {
		return q.NormalizedSQL
	}))
}

func (c *collector) GroupByNormalized() map[string][]CollectedQuery {
	return lo.GroupBy(c.Queries(), func(q CollectedQuery) string {
		return q.NormalizedSQL
	})
}

func (c *collector) GroupByLocation() map[string][]CollectedQuery {
	return lo.GroupBy(c.Queries(), func(q CollectedQuery) string {
		return q.Location()
	})
}

func (c *collector) SlowerThan(thresholdMS float64) []CollectedQuery {
	return lo.Filter(c.Queries(), func(q CollectedQuery, _ int) bool {
		return q.TimeMS > thresholdMS
	})
}

// totalTime sums execution times in milliseconds.
func totalTime(queries []CollectedQuery) float64 {
	return lo.SumBy(queries, func(q CollectedQuery) float64 {
		return q.TimeMS
	})
}
