package stats

// IterationSample is the raw outcome of one measured iteration.
type IterationSample struct {
	// ExecutionTime is the wall-clock time in seconds.
	ExecutionTime float64 `json:"execution_time"`

	// MemoryUsed is the number of bytes allocated during the iteration.
	MemoryUsed uint64 `json:"memory_used"`

	// PeakMemory is the highest resident set size observed, in bytes.
	PeakMemory uint64 `json:"peak_memory"`

	QueryCount int `json:"query_count"`

	// DBTimeMS is the summed query time in milliseconds.
	DBTimeMS float64 `json:"db_time_ms"`

	Score int `json:"score"`
}

// IterationResult bundles per-metric statistics over measured iterations.
type IterationResult struct {
	ExecutionTime BenchmarkStats    `json:"execution_time"`
	MemoryUsed    BenchmarkStats    `json:"memory_used"`
	PeakMemory    BenchmarkStats    `json:"peak_memory"`
	QueryCount    BenchmarkStats    `json:"query_count"`
	DBTime        BenchmarkStats    `json:"db_time"`
	Score         BenchmarkStats    `json:"score"`
	Samples       []IterationSample `json:"samples"`
	Warmup        int               `json:"warmup"`
}

// FromIterations computes statistics for every metric. samples must already
// exclude warmup iterations; warmup is recorded for display only.
func FromIterations(samples []IterationSample, warmup int) *IterationResult {
	n := len(samples)

	var (
		times   = make([]float64, 0, n)
		memory  = make([]float64, 0, n)
		peak    = make([]float64, 0, n)
		queries = make([]float64, 0, n)
		dbTime  = make([]float64, 0, n)
		scores  = make([]float64, 0, n)
	)

	for _, s := range samples {
		times = append(times, s.ExecutionTime)
		memory = append(memory, float64(s.MemoryUsed))
		peak = append(peak, float64(s.PeakMemory))
		queries = append(queries, float64(s.QueryCount))
		dbTime = append(dbTime, s.DBTimeMS)
		scores = append(scores, float64(s.Score))
	}

	cloned := make([]IterationSample, n)
	copy(cloned, samples)

	return &IterationResult{
		ExecutionTime: FromValues(times, warmup),
		MemoryUsed:    FromValues(memory, warmup),
		PeakMemory:    FromValues(peak, warmup),
		QueryCount:    FromValues(queries, warmup),
		DBTime:        FromValues(dbTime, warmup),
		Score:         FromValues(scores, warmup),
		Samples:       cloned,
		Warmup:        warmup,
	}
}

// Iterations returns the number of measured iterations.
func (r *IterationResult) Iterations() int {
	return len(r.Samples)
}
