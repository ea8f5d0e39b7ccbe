package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethpandaops/dbbench/pkg/baseline"
	"github.com/ethpandaops/dbbench/pkg/report"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	compareBaselineFile string
	compareCurrentFile  string
	compareOutput       string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two exported baseline files",
	Long:  `Compare a current baseline JSON file against a previous one and report regressions.`,
	RunE:  runCompareFiles,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringVar(&compareBaselineFile, "baseline", "",
		"Path to the baseline JSON file")
	compareCmd.Flags().StringVar(&compareCurrentFile, "current", "",
		"Path to the current JSON file")
	compareCmd.Flags().StringVar(&compareOutput, "output", string(report.FormatText),
		"Output format (text, markdown, json)")

	for _, name := range []string{"baseline", "current"} {
		if err := compareCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func runCompareFiles(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(compareOutput)
	if err != nil {
		return err
	}

	previous, err := readResultFile(compareBaselineFile)
	if err != nil {
		return err
	}

	current, err := readResultFile(compareCurrentFile)
	if err != nil {
		return err
	}

	comparison := baseline.NewDetectorFromConfig(&cfg.Regression).Compare(previous, current)

	if err := report.Write(os.Stdout, format, &report.Data{Comparison: comparison}, report.Options{
		UseColors:    !color.NoColor,
		SavingsRatio: cfg.Score.NPlusOneSavingsRatio,
	}); err != nil {
		return err
	}

	if cfg.Benchmark.FailOnCritical && comparison.ShouldFailCI() {
		return errCIFailure
	}

	return nil
}

// readResultFile reads a baseline result from a JSON file.
func readResultFile(path string) (*baseline.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var result baseline.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &result, nil
}
