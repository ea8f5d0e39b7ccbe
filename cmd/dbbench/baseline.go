package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage stored baselines",
}

var baselineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored baselines",
	Args:  cobra.NoArgs,
	RunE:  runBaselineList,
}

var baselineShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a stored baseline as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runBaselineShow,
}

var baselineDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a stored baseline",
	Args:  cobra.ExactArgs(1),
	RunE:  runBaselineDelete,
}

func init() {
	rootCmd.AddCommand(baselineCmd)
	baselineCmd.AddCommand(baselineListCmd, baselineShowCmd, baselineDeleteCmd)
}

func runBaselineList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defer func() { _ = store.Stop() }()

	entries, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing baselines: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No baselines stored.")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Name", "Updated", "Size"})

	defer func() { _ = table.Close() }()

	data := make([][]string, 0, len(entries))

	for _, e := range entries {
		size := "-"
		if e.Size > 0 {
			size = units.BytesSize(float64(e.Size))
		}

		data = append(data, []string{
			e.Key, e.UpdatedAt.Local().Format("2006-01-02 15:04:05"), size,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}

	return table.Render()
}

func runBaselineShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defer func() { _ = store.Stop() }()

	result, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("loading baseline %q: %w", args[0], err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func runBaselineDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defer func() { _ = store.Stop() }()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deleting baseline %q: %w", args[0], err)
	}

	log.WithField("baseline", args[0]).Info("Baseline deleted")

	return nil
}
