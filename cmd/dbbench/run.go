package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethpandaops/dbbench/pkg/advisor"
	"github.com/ethpandaops/dbbench/pkg/baseline"
	"github.com/ethpandaops/dbbench/pkg/config"
	"github.com/ethpandaops/dbbench/pkg/database"
	"github.com/ethpandaops/dbbench/pkg/fsutil"
	"github.com/ethpandaops/dbbench/pkg/report"
	"github.com/ethpandaops/dbbench/pkg/runner"
	"github.com/ethpandaops/dbbench/pkg/stats"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// maxMarkdownChars keeps markdown output under CI job summary limits.
const maxMarkdownChars = 65000

var (
	runWorkload     string
	runIterations   int
	runWarmup       int
	runSaveBaseline bool
	runCompare      bool
	runOutput       string
	runOutputFile   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workload benchmark",
	Long: `Run a workload against the target database, analyze its queries and
report timing, memory and a performance score. Optionally compare against
and store a baseline.`,
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runWorkload, "workload", "", "Path to the workload YAML file")
	runCmd.Flags().IntVar(&runIterations, "iterations", config.DefaultIterations,
		"Number of measured iterations")
	runCmd.Flags().IntVar(&runWarmup, "warmup", config.DefaultWarmup,
		"Number of discarded warmup iterations")
	runCmd.Flags().BoolVar(&runSaveBaseline, "save-baseline", false,
		"Store the result as the benchmark's baseline")
	runCmd.Flags().BoolVar(&runCompare, "compare", false,
		"Compare the result against the stored baseline")
	runCmd.Flags().StringVar(&runOutput, "output", string(report.FormatText),
		"Output format (text, markdown, json)")
	runCmd.Flags().StringVar(&runOutputFile, "output-file", "",
		"Write the report to this file instead of stdout")

	if err := runCmd.MarkFlagRequired("workload"); err != nil {
		panic(err)
	}
}

func runBenchmark(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("iterations") {
		cfg.Benchmark.Iterations = runIterations
	}

	if cmd.Flags().Changed("warmup") {
		cfg.Benchmark.Warmup = runWarmup
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	format, err := report.ParseFormat(runOutput)
	if err != nil {
		return err
	}

	workload, err := runner.LoadWorkload(runWorkload)
	if err != nil {
		return fmt.Errorf("loading workload: %w", err)
	}

	resultsOwner, err := fsutil.ParseOwner(cfg.Benchmark.ResultsOwner)
	if err != nil {
		return fmt.Errorf("parsing results_owner: %w", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	collector := advisor.NewCollector(advisor.NewCallSiteResolver(
		cfg.Advisor.ProjectRoot, cfg.Advisor.IgnoredPaths...,
	))

	db, err := database.Open(&cfg.Target, advisor.NewPlugin(collector, "target"))
	if err != nil {
		return fmt.Errorf("opening target database: %w", err)
	}

	defer func() {
		if err := database.Close(db); err != nil {
			log.WithError(err).Warn("Failed to close target database")
		}
	}()

	adv := advisor.New(log, collector, advisor.Config{
		Enabled: cfg.Advisor.Enabled,
		Rules:   cfg.Advisor.Rules,
	})

	r := runner.NewRunner(log, &runner.Config{
		Iterations:   cfg.Benchmark.Iterations,
		Warmup:       cfg.Benchmark.Warmup,
		ResultsDir:   cfg.Benchmark.ResultsDir,
		ResultsOwner: resultsOwner,
	}, db, adv, stats.NewReader(ctx, log))

	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("starting runner: %w", err)
	}

	defer func() {
		if err := r.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop runner")
		}
	}()

	log.WithFields(logrus.Fields{
		"workload":   workload.Name(),
		"iterations": cfg.Benchmark.Iterations,
		"warmup":     cfg.Benchmark.Warmup,
	}).Info("Running benchmark")

	res, err := r.Run(ctx, workload)
	if err != nil {
		return fmt.Errorf("running benchmark: %w", err)
	}

	data := &report.Data{Run: res}

	if runCompare || runSaveBaseline {
		if err := handleBaseline(ctx, cfg, data); err != nil {
			return err
		}
	}

	if err := writeReport(format, data, cfg); err != nil {
		return err
	}

	if cfg.Benchmark.FailOnCritical && data.Comparison != nil && data.Comparison.ShouldFailCI() {
		return errCIFailure
	}

	return nil
}

// handleBaseline compares against and then stores the run's baseline, as
// requested by flags. Comparing happens first so a run is never compared
// against itself.
func handleBaseline(ctx context.Context, cfg *config.Config, data *report.Data) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop baseline store")
		}
	}()

	current := data.Run.Baseline

	if runCompare {
		comparison, err := runner.CompareWithBaseline(
			ctx, store, baseline.NewDetectorFromConfig(&cfg.Regression), current,
		)

		switch {
		case errors.Is(err, baseline.ErrNotFound):
			log.WithField("baseline", current.Key()).Warn("No baseline stored")

			data.NoBaseline = true
		case err != nil:
			return fmt.Errorf("comparing with baseline: %w", err)
		default:
			data.Comparison = comparison
		}
	}

	if runSaveBaseline {
		if err := store.Save(ctx, current); err != nil {
			return fmt.Errorf("saving baseline: %w", err)
		}

		log.WithFields(logrus.Fields{
			"baseline": current.Key(),
			"store":    store.Type(),
		}).Info("Baseline saved")
	}

	return nil
}

// writeReport renders data to --output-file or stdout.
func writeReport(format report.Format, data *report.Data, cfg *config.Config) error {
	var (
		w      io.Writer = os.Stdout
		colors           = !color.NoColor
	)

	if runOutputFile != "" {
		f, err := os.Create(runOutputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}

		defer func() { _ = f.Close() }()

		w, colors = f, false
	}

	return report.Write(w, format, data, report.Options{
		UseColors:    colors,
		SavingsRatio: cfg.Score.NPlusOneSavingsRatio,
		MaxChars:     maxMarkdownChars,
	})
}
