package baseline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethpandaops/dbbench/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "List Posts", want: "list_posts"},
		{name: "app/benchmarks:ListPosts", want: "app_benchmarks_listposts"},
		{name: "already_safe-key", want: "already_safe-key"},
		{name: "  __weird!!name__ ", want: "weird_name"},
		{name: "", want: "baseline"},
		{name: "!!!", want: "baseline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StorageKey(tt.name))
		})
	}
}

func TestFromIterations_Medians(t *testing.T) {
	samples := []stats.IterationSample{
		{ExecutionTime: 0.3, MemoryUsed: 300, PeakMemory: 3000, QueryCount: 30, DBTimeMS: 3, Score: 70},
		{ExecutionTime: 0.1, MemoryUsed: 100, PeakMemory: 1000, QueryCount: 10, DBTimeMS: 1, Score: 90},
		{ExecutionTime: 0.2, MemoryUsed: 200, PeakMemory: 2000, QueryCount: 20, DBTimeMS: 2, Score: 80},
	}

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := FromIterations(
		Identity{Name: "list posts", Class: "workloads/posts.yaml"},
		stats.FromIterations(samples, 1),
		nil,
		VCSInfo{Branch: "main", Commit: "abc123"},
		created,
	)

	assert.Equal(t, 3, r.Iterations)
	assert.InDelta(t, 0.2, r.ExecutionTime, 1e-9)
	assert.Equal(t, uint64(200), r.MemoryUsed)
	assert.Equal(t, uint64(2000), r.PeakMemory)
	assert.Equal(t, 20, r.TotalQueries)
	assert.InDelta(t, 2, r.TotalDBTime, 1e-9)
	assert.Equal(t, 80, r.PerformanceScore)
	assert.NotNil(t, r.Options)
	require.NotNil(t, r.Statistics)
	assert.Equal(t, 1, r.Statistics.Warmup)
	assert.Equal(t, "main", r.GitBranch)
}

func TestFromIterations_SingleIterationOmitsStatistics(t *testing.T) {
	r := FromIterations(
		Identity{Name: "one"},
		stats.FromIterations([]stats.IterationSample{{ExecutionTime: 1, QueryCount: 4, Score: 95}}, 0),
		map[string]any{"limit": 10.0},
		VCSInfo{},
		time.Now(),
	)

	assert.Equal(t, 1, r.Iterations)
	assert.Nil(t, r.Statistics)
	assert.Equal(t, 4, r.TotalQueries)
	assert.Equal(t, 95, r.PerformanceScore)
}

func sampleResult() *Result {
	samples := []stats.IterationSample{
		{ExecutionTime: 0.25, MemoryUsed: 1024, PeakMemory: 4096, QueryCount: 12, DBTimeMS: 4.5, Score: 88},
		{ExecutionTime: 0.5, MemoryUsed: 2048, PeakMemory: 8192, QueryCount: 12, DBTimeMS: 5.5, Score: 86},
	}

	return FromIterations(
		Identity{Name: "List Posts", Class: "workloads/posts.yaml"},
		stats.FromIterations(samples, 1),
		map[string]any{"limit": 50.0, "eager": true, "table": "posts"},
		VCSInfo{Branch: "feature/x", Commit: "deadbeef"},
		time.Date(2026, 5, 4, 10, 30, 15, 123456000, time.UTC),
	)
}

func TestResult_JSONRoundTrip(t *testing.T) {
	original := sampleResult()

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Result
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	decoded.CreatedAt = original.CreatedAt

	assert.Equal(t, original, &decoded)
}
