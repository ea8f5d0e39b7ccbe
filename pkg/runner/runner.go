package runner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethpandaops/dbbench/pkg/advisor"
	"github.com/ethpandaops/dbbench/pkg/baseline"
	"github.com/ethpandaops/dbbench/pkg/fsutil"
	"github.com/ethpandaops/dbbench/pkg/score"
	"github.com/ethpandaops/dbbench/pkg/stats"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	// DefaultIterations is the number of measured iterations.
	DefaultIterations = 5

	// DefaultSampleInterval is how often peak memory is sampled.
	DefaultSampleInterval = stats.DefaultSampleInterval
)

// Runner measures benchmarks.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error

	// Run executes warmup iterations followed by measured ones.
	Run(ctx context.Context, bench Benchmark) (*RunResult, error)
}

// Config for the runner.
type Config struct {
	Iterations     int
	Warmup         int
	ResultsDir     string
	ResultsOwner   *fsutil.OwnerConfig
	SampleInterval time.Duration

	// WorkDir is the directory VCS metadata is read from.
	WorkDir string
}

// RunResult is the outcome of one benchmark run.
type RunResult struct {
	ID         string                 `json:"id"`
	Benchmark  string                 `json:"benchmark"`
	Reference  string                 `json:"reference"`
	StartedAt  time.Time              `json:"started_at"`
	Duration   time.Duration          `json:"duration"`
	Statistics *stats.IterationResult `json:"statistics"`

	// Report and Score describe the last measured iteration. Report is nil
	// when the advisor is disabled.
	Report *advisor.Report `json:"report,omitempty"`
	Score  *score.Result   `json:"score"`

	Baseline *baseline.Result `json:"baseline"`
}

// NewRunner creates a runner measuring workloads against db. db must have
// the advisor's collector installed as a gorm plugin for queries to be
// observed.
func NewRunner(
	log logrus.FieldLogger,
	cfg *Config,
	db *gorm.DB,
	adv advisor.Advisor,
	reader stats.Reader,
) Runner {
	if cfg.Iterations < 1 {
		cfg.Iterations = DefaultIterations
	}

	if cfg.Warmup < 0 {
		cfg.Warmup = 0
	}

	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}

	return &runner{
		log:     log.WithField("component", "runner"),
		cfg:     cfg,
		db:      db,
		advisor: adv,
		reader:  reader,
		now:     time.Now,
	}
}

type runner struct {
	log     logrus.FieldLogger
	cfg     *Config
	db      *gorm.DB
	advisor advisor.Advisor
	reader  stats.Reader
	now     func() time.Time
}

// Ensure interface compliance.
var _ Runner = (*runner)(nil)

// iteration is the outcome of a single iteration.
type iteration struct {
	sample stats.IterationSample
	report *advisor.Report
	score  *score.Result
}

// Start initializes the runner.
func (r *runner) Start(_ context.Context) error {
	if r.cfg.ResultsDir != "" {
		if err := fsutil.MkdirAll(r.cfg.ResultsDir, 0o755, r.cfg.ResultsOwner); err != nil {
			return fmt.Errorf("creating results directory: %w", err)
		}
	}

	r.log.WithField("reader", r.reader.Type()).Debug("Runner started")

	return nil
}

// Stop cleans up the runner.
func (r *runner) Stop() error {
	if err := r.reader.Close(); err != nil {
		return fmt.Errorf("closing memory reader: %w", err)
	}

	r.log.Debug("Runner stopped")

	return nil
}

func (r *runner) Run(ctx context.Context, bench Benchmark) (*RunResult, error) {
	result := &RunResult{
		ID:        generateShortID(),
		Benchmark: bench.Name(),
		Reference: bench.Reference(),
		StartedAt: r.now().UTC(),
	}

	log := r.log.WithFields(logrus.Fields{
		"benchmark": result.Benchmark,
		"run_id":    result.ID,
	})
	log.WithFields(logrus.Fields{
		"iterations": r.cfg.Iterations,
		"warmup":     r.cfg.Warmup,
	}).Info("Starting benchmark")

	samples := make([]stats.IterationSample, 0, r.cfg.Iterations)

	var last *iteration

	for i := 0; i < r.cfg.Warmup+r.cfg.Iterations; i++ {
		it, err := r.iterate(ctx, bench)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i+1, err)
		}

		if i < r.cfg.Warmup {
			log.WithField("iteration", i+1).Debug("Warmup iteration complete")

			continue
		}

		log.WithFields(logrus.Fields{
			"iteration": i + 1 - r.cfg.Warmup,
			"time":      it.sample.ExecutionTime,
			"queries":   it.sample.QueryCount,
			"score":     it.sample.Score,
		}).Debug("Iteration complete")

		samples = append(samples, it.sample)
		last = it
	}

	result.Statistics = stats.FromIterations(samples, r.cfg.Warmup)
	result.Report = last.report
	result.Score = last.score
	result.Baseline = baseline.FromIterations(
		baseline.Identity{Name: bench.Name(), Class: bench.Reference()},
		result.Statistics,
		bench.Options(),
		DetectVCS(ctx, r.cfg.WorkDir),
		r.now(),
	)
	result.Duration = r.now().Sub(result.StartedAt)

	if err := r.writeResult(result); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"time":    result.Baseline.ExecutionTime,
		"queries": result.Baseline.TotalQueries,
		"score":   result.Baseline.PerformanceScore,
	}).Info("Benchmark complete")

	return result, nil
}

// iterate runs one iteration. Peak memory is sampled concurrently with the
// workload; the collection window covers only bench.Run.
func (r *runner) iterate(ctx context.Context, bench Benchmark) (*iteration, error) {
	if err := bench.Setup(ctx, r.db); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	defer func() {
		if err := bench.Teardown(context.WithoutCancel(ctx), r.db); err != nil {
			r.log.WithError(err).Warn("Teardown failed")
		}
	}()

	before, err := r.reader.ReadStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading memory: %w", err)
	}

	sampler := stats.NewPeakSampler(r.reader, r.cfg.SampleInterval)
	sampler.Observe(before)

	sampleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(sampleCtx)

	var elapsed time.Duration

	r.advisor.Start()

	g.Go(func() error {
		return sampler.Run(gctx)
	})

	g.Go(func() error {
		defer cancel()

		started := r.now()
		err := bench.Run(gctx, r.db)
		elapsed = r.now().Sub(started)

		if err != nil {
			return fmt.Errorf("running benchmark: %w", err)
		}

		return nil
	})

	runErr := g.Wait()

	report, _ := r.advisor.Stop()

	if runErr != nil {
		return nil, runErr
	}

	after, err := r.reader.ReadStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading memory: %w", err)
	}

	sampler.Observe(after)

	seconds := elapsed.Seconds()
	res := score.Calculate(report, seconds)

	sample := stats.IterationSample{
		ExecutionTime: seconds,
		PeakMemory:    sampler.Peak(),
		Score:         res.Score,
	}

	if delta := stats.ComputeDelta(before, after); delta != nil {
		sample.MemoryUsed = delta.Allocated
	}

	if report != nil {
		sample.QueryCount = report.TotalQueries
		sample.DBTimeMS = report.TotalTimeMS
	}

	return &iteration{sample: sample, report: report, score: &res}, nil
}

func (r *runner) writeResult(result *RunResult) error {
	if r.cfg.ResultsDir == "" {
		return nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	name := fmt.Sprintf("%d_%s_%s.json",
		result.StartedAt.Unix(), result.ID, baseline.StorageKey(result.Benchmark))
	path := filepath.Join(r.cfg.ResultsDir, name)

	if err := fsutil.WriteFile(path, data, 0o644, r.cfg.ResultsOwner); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	r.log.WithField("path", path).Debug("Wrote run result")

	return nil
}

// CompareWithBaseline compares current against the stored baseline of the
// same benchmark. It returns baseline.ErrNotFound when none is stored.
func CompareWithBaseline(
	ctx context.Context,
	store baseline.Store,
	detector *baseline.Detector,
	current *baseline.Result,
) (*baseline.ComparisonResult, error) {
	previous, err := store.Load(ctx, current.BenchmarkName)
	if err != nil {
		return nil, fmt.Errorf("loading baseline: %w", err)
	}

	return detector.Compare(previous, current), nil
}

// generateShortID generates a short random hex ID (8 characters).
func generateShortID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails.
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xFFFFFFFF)
	}

	return hex.EncodeToString(b)
}
