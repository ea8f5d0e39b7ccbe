package main

import (
	"fmt"

	"github.com/ethpandaops/dbbench/pkg/api"
	"github.com/ethpandaops/dbbench/pkg/baseline"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the dbbench API server for storing and comparing baselines.`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Storage.Validate(); err != nil {
		return fmt.Errorf("validating storage config: %w", err)
	}

	store, err := baseline.NewStore(log, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating baseline store: %w", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	srv := api.NewServer(log, &cfg.API, store, baseline.NewDetectorFromConfig(&cfg.Regression))

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	// Wait for shutdown signal.
	<-ctx.Done()
	log.Info("Shutting down API server")

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping api server: %w", err)
	}

	return nil
}
