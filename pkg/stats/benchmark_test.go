package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValues_Empty(t *testing.T) {
	s := FromValues(nil, 2)

	assert.Equal(t, 0, s.Iterations)
	assert.Equal(t, 2, s.Warmup)
	assert.Zero(t, s.Mean)
	assert.Zero(t, s.Median)
	assert.Zero(t, s.StdDev)
	assert.Zero(t, s.P95)
	assert.Empty(t, s.Values)
}

func TestFromValues(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		wantMean   float64
		wantMedian float64
		wantStdDev float64
		wantP95    float64
		wantP99    float64
	}{
		{
			name:       "single value",
			values:     []float64{4},
			wantMean:   4,
			wantMedian: 4,
			wantP95:    4,
			wantP99:    4,
		},
		{
			name:       "odd count",
			values:     []float64{3, 1, 2},
			wantMean:   2,
			wantMedian: 2,
			wantStdDev: 1,
			wantP95:    2.9,
			wantP99:    2.98,
		},
		{
			name:       "even count",
			values:     []float64{4, 1, 3, 2},
			wantMean:   2.5,
			wantMedian: 2.5,
			wantStdDev: 1.2909944487358056,
			wantP95:    3.85,
			wantP99:    3.97,
		},
		{
			name:       "identical values",
			values:     []float64{7, 7, 7, 7},
			wantMean:   7,
			wantMedian: 7,
			wantP95:    7,
			wantP99:    7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := FromValues(tt.values, 0)

			assert.Equal(t, len(tt.values), s.Iterations)
			assert.InDelta(t, tt.wantMean, s.Mean, 1e-9)
			assert.InDelta(t, tt.wantMedian, s.Median, 1e-9)
			assert.InDelta(t, tt.wantStdDev, s.StdDev, 1e-9)
			assert.InDelta(t, tt.wantP95, s.P95, 1e-9)
			assert.InDelta(t, tt.wantP99, s.P99, 1e-9)
		})
	}
}

func TestFromValues_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	s := FromValues(values, 0)

	assert.Equal(t, []float64{3, 1, 2}, values)
	assert.Equal(t, []float64{3, 1, 2}, s.Values)
}

func TestFromValues_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(30)
		values := make([]float64, n)

		for j := range values {
			values[j] = rng.Float64() * 1000
		}

		s := FromValues(values, 0)

		require.LessOrEqual(t, s.Min, s.Median)
		require.LessOrEqual(t, s.Median, s.Max)
		require.LessOrEqual(t, s.Min, s.Mean)
		require.LessOrEqual(t, s.Mean, s.Max)
		require.LessOrEqual(t, s.P95, s.P99)
		require.LessOrEqual(t, s.P99, s.Max)
		require.GreaterOrEqual(t, s.StdDev, 0.0)
	}
}

func TestStability(t *testing.T) {
	tests := []struct {
		percent    float64
		wantLabel  string
		wantStable bool
	}{
		{0, StabilityVeryStable, true},
		{5, StabilityVeryStable, true},
		{7.5, StabilityStable, true},
		{10, StabilityStable, true},
		{15, StabilityModerate, false},
		{20, StabilityModerate, false},
		{35, StabilityHigh, false},
	}

	for _, tt := range tests {
		s := BenchmarkStats{StdDevPercent: tt.percent}

		assert.Equal(t, tt.wantLabel, s.Stability(), "percent %.1f", tt.percent)
		assert.Equal(t, tt.wantStable, s.IsStable(DefaultStableThreshold), "percent %.1f", tt.percent)
	}
}

func TestStdDevPercent(t *testing.T) {
	s := FromValues([]float64{90, 110}, 0)
	assert.InDelta(t, 14.142135623730951, s.StdDevPercent, 1e-9)

	zeroMean := FromValues([]float64{-1, 1}, 0)
	assert.Zero(t, zeroMean.StdDevPercent)
}

func TestFromIterations(t *testing.T) {
	samples := []IterationSample{
		{ExecutionTime: 1.0, MemoryUsed: 100, PeakMemory: 1000, QueryCount: 10, DBTimeMS: 50, Score: 90},
		{ExecutionTime: 3.0, MemoryUsed: 300, PeakMemory: 3000, QueryCount: 10, DBTimeMS: 70, Score: 80},
		{ExecutionTime: 2.0, MemoryUsed: 200, PeakMemory: 2000, QueryCount: 10, DBTimeMS: 60, Score: 85},
	}

	r := FromIterations(samples, 1)

	assert.Equal(t, 3, r.Iterations())
	assert.Equal(t, 1, r.Warmup)
	assert.InDelta(t, 2.0, r.ExecutionTime.Median, 1e-9)
	assert.InDelta(t, 200.0, r.MemoryUsed.Median, 1e-9)
	assert.InDelta(t, 2000.0, r.PeakMemory.Median, 1e-9)
	assert.Zero(t, r.QueryCount.StdDev)
	assert.InDelta(t, 60.0, r.DBTime.Mean, 1e-9)
	assert.InDelta(t, 85.0, r.Score.Median, 1e-9)
	assert.Equal(t, 1, r.Score.Warmup)
}
