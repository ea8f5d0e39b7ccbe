package main

import (
	"fmt"
	"os"

	"github.com/ethpandaops/dbbench/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  `Print the configuration after applying defaults and DBBENCH_ environment overrides.`,
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	redacted := *cfg
	redacted.Target.Postgres.Password = redact(cfg.Target.Postgres.Password)
	redacted.Storage.Database.Postgres.Password = redact(cfg.Storage.Database.Postgres.Password)
	redacted.Storage.S3.SecretAccessKey = redact(cfg.Storage.S3.SecretAccessKey)

	users := make([]config.BasicAuthUser, 0, len(cfg.API.Auth.Basic.Users))
	for _, u := range cfg.API.Auth.Basic.Users {
		users = append(users, config.BasicAuthUser{Username: u.Username, Password: redact(u.Password)})
	}

	redacted.API.Auth.Basic.Users = users

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)

	if err := enc.Encode(&redacted); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return enc.Close()
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}

	return "********"
}
