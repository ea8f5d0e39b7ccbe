package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultIterations, cfg.Benchmark.Iterations)
	assert.Equal(t, DefaultWarmup, cfg.Benchmark.Warmup)
	assert.True(t, cfg.Benchmark.FailOnCritical)
	assert.Equal(t, DriverSQLite, cfg.Target.Driver)
	assert.True(t, cfg.Advisor.Enabled)
	assert.InDelta(t, DefaultNPlusOneSavingsRatio, cfg.Score.NPlusOneSavingsRatio, 1e-9)
	assert.Equal(t, StorageLocal, cfg.Storage.Driver)
	assert.Equal(t, DefaultBaselineDir, cfg.Storage.Local.Dir)
	assert.Equal(t, DefaultAPIListen, cfg.API.Server.Listen)
	assert.Equal(t, DefaultThresholds(), cfg.Regression.Thresholds)

	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
global:
  log_level: debug
benchmark:
  iterations: 10
  warmup: 0
advisor:
  enabled: false
  ignored_paths:
    - example.com/app/internal/db
  rules:
    n_plus_one:
      threshold: 20
      critical_count: 40
    slow_query:
      enabled: false
regression:
  thresholds:
    execution_time:
      warning: 5
storage:
  driver: s3
  s3:
    bucket: baselines
    force_path_style: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, 10, cfg.Benchmark.Iterations)
	assert.Equal(t, 0, cfg.Benchmark.Warmup)
	assert.False(t, cfg.Advisor.Enabled)
	assert.Equal(t, []string{"example.com/app/internal/db"}, cfg.Advisor.IgnoredPaths)

	require.Contains(t, cfg.Advisor.Rules, "n_plus_one")
	assert.EqualValues(t, 20, cfg.Advisor.Rules["n_plus_one"]["threshold"])
	assert.Equal(t, false, cfg.Advisor.Rules["slow_query"]["enabled"])

	assert.Equal(t, ThresholdConfig{Warning: 5, Critical: 25}, cfg.Regression.Thresholds["execution_time"],
		"missing halves of a threshold pair use the default")
	assert.Equal(t, ThresholdConfig{Warning: 15, Critical: 30}, cfg.Regression.Thresholds["peak_memory"])

	assert.Equal(t, StorageS3, cfg.Storage.Driver)
	assert.Equal(t, "baselines", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Storage.S3.ForcePathStyle)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	path := writeConfig(t, `
global:
  log_level: info
benchmark:
  iterations: 3
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, 3, cfg.Benchmark.Iterations)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"DBBENCH_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "int override - iterations",
			envVars: map[string]string{
				"DBBENCH_BENCHMARK_ITERATIONS": "7",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7, cfg.Benchmark.Iterations)
			},
		},
		{
			name: "key absent from file",
			envVars: map[string]string{
				"DBBENCH_STORAGE_LOCAL_DIR": "/var/lib/dbbench",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/var/lib/dbbench", cfg.Storage.Local.Dir)
			},
		},
		{
			name: "boolean override - fail_on_critical",
			envVars: map[string]string{
				"DBBENCH_BENCHMARK_FAIL_ON_CRITICAL": "false",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Benchmark.FailOnCritical)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load(path)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "zero iterations",
			mutate:  func(cfg *Config) { cfg.Benchmark.Iterations = 0 },
			wantErr: "benchmark.iterations",
		},
		{
			name:    "negative warmup",
			mutate:  func(cfg *Config) { cfg.Benchmark.Warmup = -1 },
			wantErr: "benchmark.warmup",
		},
		{
			name:    "unknown target driver",
			mutate:  func(cfg *Config) { cfg.Target.Driver = "oracle" },
			wantErr: "unsupported database driver",
		},
		{
			name: "postgres without database",
			mutate: func(cfg *Config) {
				cfg.Target.Driver = DriverPostgres
				cfg.Target.Postgres.Database = ""
			},
			wantErr: "postgres.database",
		},
		{
			name: "critical below warning",
			mutate: func(cfg *Config) {
				cfg.Regression.Thresholds["execution_time"] = ThresholdConfig{Warning: 30, Critical: 20}
			},
			wantErr: "critical (20.0) is below warning (30.0)",
		},
		{
			name:    "savings ratio out of range",
			mutate:  func(cfg *Config) { cfg.Score.NPlusOneSavingsRatio = 1.5 },
			wantErr: "n_plus_one_savings_ratio",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(cfg *Config) { cfg.Storage.Driver = StorageS3 },
			wantErr: "storage.s3.bucket",
		},
		{
			name:    "unknown storage driver",
			mutate:  func(cfg *Config) { cfg.Storage.Driver = "ftp" },
			wantErr: "unsupported storage driver",
		},
		{
			name:   "database storage",
			mutate: func(cfg *Config) { cfg.Storage.Driver = StorageDatabase },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
