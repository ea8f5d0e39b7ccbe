// Package baseline stores benchmark snapshots and compares runs against them.
package baseline

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/ethpandaops/dbbench/pkg/stats"
)

// Result is a persisted snapshot of one benchmark run. With more than one
// iteration the scalar metrics are medians and Statistics holds the full
// per-metric breakdown.
type Result struct {
	BenchmarkName    string                 `json:"benchmark_name"`
	BenchmarkClass   string                 `json:"benchmark_class"`
	ExecutionTime    float64                `json:"execution_time"`
	MemoryUsed       uint64                 `json:"memory_used"`
	PeakMemory       uint64                 `json:"peak_memory"`
	TotalQueries     int                    `json:"total_queries"`
	TotalDBTime      float64                `json:"total_db_time"`
	PerformanceScore int                    `json:"performance_score"`
	Options          map[string]any         `json:"options"`
	CreatedAt        time.Time              `json:"created_at"`
	GitBranch        string                 `json:"git_branch,omitempty"`
	GitCommit        string                 `json:"git_commit,omitempty"`
	Iterations       int                    `json:"iterations"`
	Statistics       *stats.IterationResult `json:"statistics,omitempty"`
}

// VCSInfo identifies the revision a run was measured at.
type VCSInfo struct {
	Branch string
	Commit string
}

// Identity names the benchmark a result belongs to.
type Identity struct {
	Name string

	// Class is the fully qualified reference of the benchmark.
	Class string
}

// FromIterations builds a Result from measured iterations. Scalars are
// medians; statistics are embedded only when there is more than one
// iteration.
func FromIterations(
	id Identity,
	it *stats.IterationResult,
	options map[string]any,
	vcs VCSInfo,
	createdAt time.Time,
) *Result {
	r := &Result{
		BenchmarkName:  id.Name,
		BenchmarkClass: id.Class,
		Options:        normalizeOptions(options),
		CreatedAt:      createdAt.UTC(),
		GitBranch:      vcs.Branch,
		GitCommit:      vcs.Commit,
	}

	if it == nil {
		return r
	}

	r.Iterations = it.Iterations()
	r.ExecutionTime = it.ExecutionTime.Median
	r.MemoryUsed = uint64(math.Round(it.MemoryUsed.Median))
	r.PeakMemory = uint64(math.Round(it.PeakMemory.Median))
	r.TotalQueries = int(math.Round(it.QueryCount.Median))
	r.TotalDBTime = it.DBTime.Median
	r.PerformanceScore = int(math.Round(it.Score.Median))

	if r.Iterations > 1 {
		r.Statistics = it
	}

	return r
}

// normalizeOptions converts options to the shape they decode back to from
// JSON, so a stored result compares equal to the one that was saved.
// Values that cannot be encoded are kept as their formatted string.
func normalizeOptions(options map[string]any) map[string]any {
	out := make(map[string]any, len(options))

	for k, v := range options {
		data, err := json.Marshal(v)
		if err != nil {
			out[k] = fmt.Sprint(v)

			continue
		}

		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			out[k] = fmt.Sprint(v)

			continue
		}

		out[k] = decoded
	}

	return out
}

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// StorageKey returns the filesystem-safe key a benchmark's baseline is
// stored under.
func StorageKey(name string) string {
	key := unsafeKeyChars.ReplaceAllString(strings.ToLower(name), "_")
	key = strings.Trim(key, "_")

	if key == "" {
		return "baseline"
	}

	return key
}

// Key returns the storage key of r.
func (r *Result) Key() string {
	return StorageKey(r.BenchmarkName)
}
