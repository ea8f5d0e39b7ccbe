package advisor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(sql string, timeMS float64, file string, line int, bindings ...any) QueryEvent {
	return QueryEvent{
		SQL:        sql,
		Bindings:   bindings,
		TimeMS:     timeMS,
		Connection: "default",
		CallSite:   &CallSite{File: file, Line: line},
	}
}

func TestCollector_RecordOnlyWhileActive(t *testing.T) {
	c := NewCollector(nil)

	c.Record(event("SELECT 1", 1, "a.go", 1))
	assert.Equal(t, 0, c.Count(), "inactive collector must drop events")

	c.Start()
	c.Record(event("SELECT 1", 1, "a.go", 1))
	c.Stop()
	c.Record(event("SELECT 2", 1, "a.go", 2))

	assert.False(t, c.IsActive())
	assert.Equal(t, 1, c.Count(), "late events must be dropped")
}

func TestCollector_StartIsIdempotent(t *testing.T) {
	c := NewCollector(nil)

	c.Start()
	c.Record(event("SELECT 1", 1, "a.go", 1))
	c.Start()

	assert.Equal(t, 1, c.Count(), "second Start must not clear an active window")

	c.Stop()
	c.Start()

	assert.Equal(t, 0, c.Count(), "Start after Stop opens a fresh window")
}

func TestCollector_StopKeepsResetClears(t *testing.T) {
	c := NewCollector(nil)

	c.Start()
	c.Record(event("SELECT 1", 2, "a.go", 1))
	c.Stop()

	assert.Equal(t, 1, c.Count())

	c.Reset()
	assert.Equal(t, 0, c.Count())
	assert.Zero(t, c.TotalTimeMS())
}

func TestCollector_Accessors(t *testing.T) {
	c := NewCollector(nil)
	c.Start()

	c.Record(event("SELECT * FROM users WHERE id = 1", 10, "a.go", 1))
	c.Record(event("SELECT * FROM users WHERE id = 2", 20, "a.go", 1))
	c.Record(event("SELECT * FROM posts WHERE id = 3", 150, "b.go", 7))
	c.Record(QueryEvent{SQL: "SELECT 1", TimeMS: 5})

	c.Stop()

	assert.Equal(t, 4, c.Count())
	assert.InDelta(t, 185.0, c.TotalTimeMS(), 1e-9)
	assert.Equal(t, 3, c.UniqueCount())

	byNormalized := c.GroupByNormalized()
	assert.Len(t, byNormalized["SELECT * FROM users WHERE id = ?"], 2)

	byLocation := c.GroupByLocation()
	assert.Len(t, byLocation["a.go:1"], 2)
	assert.Len(t, byLocation["b.go:7"], 1)
	assert.Len(t, byLocation[UnknownLocation], 1)

	slow := c.SlowerThan(100)
	require.Len(t, slow, 1)
	assert.Equal(t, "b.go:7", slow[0].Location())

	assert.Empty(t, c.SlowerThan(150), "threshold is exclusive")
}

func TestCollector_BindingsAreCopied(t *testing.T) {
	c := NewCollector(nil)
	c.Start()

	bindings := []any{1, "x"}
	c.Record(QueryEvent{SQL: "SELECT ?", Bindings: bindings})
	bindings[0] = 99

	queries := c.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, []any{1, "x"}, queries[0].Bindings)
}

func TestCollector_ResolvesBacktrace(t *testing.T) {
	c := NewCollector(NewCallSiteResolver("/app"))
	c.Start()

	c.Record(QueryEvent{
		SQL: "SELECT 1",
		Backtrace: []Frame{
			{File: "/go/pkg/mod/gorm.io/gorm@v1.31.1/callbacks.go", Line: 10, Function: "gorm.io/gorm.(*processor).Execute"},
			{File: "/app/service/users.go", Line: 42, Function: "example.com/app/service.(*Users).Find"},
		},
	})

	queries := c.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "/app/service/users.go:42", queries[0].Location())
}

func TestCollector_ConcurrentRecord(t *testing.T) {
	c := NewCollector(nil)
	c.Start()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				c.Record(event("SELECT 1", 1, "a.go", 1))
			}
		}()
	}

	wg.Wait()
	c.Stop()

	assert.Equal(t, 800, c.Count())
}
