package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment variable overrides.
	EnvPrefix = "DBBENCH"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultResultsDir is the default directory for run results.
	DefaultResultsDir = "./results"

	// DefaultIterations is the default number of measured iterations.
	DefaultIterations = 5

	// DefaultWarmup is the default number of discarded warmup iterations.
	DefaultWarmup = 1

	// DefaultBaselineDir is the default directory of the local baseline store.
	DefaultBaselineDir = "./baselines"

	// DefaultSQLitePath is the default target database.
	DefaultSQLitePath = "file::memory:?cache=shared"

	// DefaultNPlusOneSavingsRatio is the share of an N+1 group's time
	// assumed recoverable when the rule gives no estimate of its own.
	DefaultNPlusOneSavingsRatio = 0.8
)

// Storage drivers.
const (
	StorageLocal    = "local"
	StorageS3       = "s3"
	StorageDatabase = "database"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the root configuration for dbbench.
type Config struct {
	Global     GlobalConfig     `yaml:"global" mapstructure:"global"`
	Benchmark  BenchmarkConfig  `yaml:"benchmark" mapstructure:"benchmark"`
	Target     DatabaseConfig   `yaml:"target" mapstructure:"target"`
	Advisor    AdvisorConfig    `yaml:"advisor" mapstructure:"advisor"`
	Score      ScoreConfig      `yaml:"score" mapstructure:"score"`
	Regression RegressionConfig `yaml:"regression" mapstructure:"regression"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	API        APIConfig        `yaml:"api" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// BenchmarkConfig contains measurement settings.
type BenchmarkConfig struct {
	Iterations     int    `yaml:"iterations" mapstructure:"iterations"`
	Warmup         int    `yaml:"warmup" mapstructure:"warmup"`
	ResultsDir     string `yaml:"results_dir" mapstructure:"results_dir"`
	ResultsOwner   string `yaml:"results_owner,omitempty" mapstructure:"results_owner"`
	FailOnCritical bool   `yaml:"fail_on_critical" mapstructure:"fail_on_critical"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// AdvisorConfig configures the query advisor.
type AdvisorConfig struct {
	Enabled      bool     `yaml:"enabled" mapstructure:"enabled"`
	ProjectRoot  string   `yaml:"project_root,omitempty" mapstructure:"project_root"`
	IgnoredPaths []string `yaml:"ignored_paths,omitempty" mapstructure:"ignored_paths"`

	// Rules maps a rule name to its options. Missing keys use the rule's
	// defaults.
	Rules map[string]map[string]any `yaml:"rules,omitempty" mapstructure:"rules"`
}

// ScoreConfig configures the performance score's savings estimate.
type ScoreConfig struct {
	NPlusOneSavingsRatio float64 `yaml:"n_plus_one_savings_ratio" mapstructure:"n_plus_one_savings_ratio"`
}

// RegressionConfig configures baseline comparison.
type RegressionConfig struct {
	// Thresholds maps a metric name to its warning and critical percentages.
	Thresholds map[string]ThresholdConfig `yaml:"thresholds,omitempty" mapstructure:"thresholds"`

	ImprovementFloor      float64 `yaml:"improvement_floor" mapstructure:"improvement_floor"`
	ScoreImprovementFloor float64 `yaml:"score_improvement_floor" mapstructure:"score_improvement_floor"`
}

// ThresholdConfig is a warning/critical percentage pair.
type ThresholdConfig struct {
	Warning  float64 `yaml:"warning" mapstructure:"warning"`
	Critical float64 `yaml:"critical" mapstructure:"critical"`
}

// StorageConfig selects and configures the baseline store.
type StorageConfig struct {
	Driver   string             `yaml:"driver" mapstructure:"driver"`
	Local    LocalStorageConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3       S3StorageConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
	Database DatabaseConfig     `yaml:"database,omitempty" mapstructure:"database"`
}

// LocalStorageConfig stores baselines as JSON files in a directory.
type LocalStorageConfig struct {
	Dir   string `yaml:"dir" mapstructure:"dir"`
	Owner string `yaml:"owner,omitempty" mapstructure:"owner"`
}

// S3StorageConfig stores baselines as objects in an S3 bucket.
type S3StorageConfig struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// Load reads a configuration file, applies DBBENCH_ environment overrides
// and fills in defaults. An empty path loads defaults and environment
// overrides only.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	return v
}

// setDefaults registers every scalar key so environment overrides apply
// even when the key is absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("benchmark.iterations", DefaultIterations)
	v.SetDefault("benchmark.warmup", DefaultWarmup)
	v.SetDefault("benchmark.results_dir", DefaultResultsDir)
	v.SetDefault("benchmark.results_owner", "")
	v.SetDefault("benchmark.fail_on_critical", true)

	setDatabaseDefaults(v, "target", DefaultSQLitePath)

	v.SetDefault("advisor.enabled", true)
	v.SetDefault("advisor.project_root", "")

	v.SetDefault("score.n_plus_one_savings_ratio", DefaultNPlusOneSavingsRatio)

	v.SetDefault("regression.improvement_floor", 10.0)
	v.SetDefault("regression.score_improvement_floor", 5.0)

	v.SetDefault("storage.driver", StorageLocal)
	v.SetDefault("storage.local.dir", DefaultBaselineDir)
	v.SetDefault("storage.local.owner", "")
	v.SetDefault("storage.s3.endpoint_url", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "baselines")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.force_path_style", false)
	setDatabaseDefaults(v, "storage.database", "./baselines.db")

	v.SetDefault("api.server.listen", DefaultAPIListen)
	v.SetDefault("api.server.rate_limit.enabled", false)
	v.SetDefault("api.server.rate_limit.requests_per_minute", DefaultRequestsPerMinute)
	v.SetDefault("api.auth.basic.enabled", false)
}

func setDatabaseDefaults(v *viper.Viper, prefix, sqlitePath string) {
	v.SetDefault(prefix+".driver", DriverSQLite)
	v.SetDefault(prefix+".sqlite.path", sqlitePath)
	v.SetDefault(prefix+".postgres.host", "localhost")
	v.SetDefault(prefix+".postgres.port", 5432)
	v.SetDefault(prefix+".postgres.user", "")
	v.SetDefault(prefix+".postgres.password", "")
	v.SetDefault(prefix+".postgres.database", "")
	v.SetDefault(prefix+".postgres.ssl_mode", "disable")
}

// applyDefaults fills values viper cannot express as scalar defaults.
func (c *Config) applyDefaults() {
	if c.Advisor.Rules == nil {
		c.Advisor.Rules = make(map[string]map[string]any, 4)
	}

	if c.Regression.Thresholds == nil {
		c.Regression.Thresholds = make(map[string]ThresholdConfig, 4)
	}

	for metric, def := range DefaultThresholds() {
		t := c.Regression.Thresholds[metric]

		if t.Warning == 0 {
			t.Warning = def.Warning
		}

		if t.Critical == 0 {
			t.Critical = def.Critical
		}

		c.Regression.Thresholds[metric] = t
	}
}

// DefaultThresholds returns the default regression thresholds per metric.
func DefaultThresholds() map[string]ThresholdConfig {
	return map[string]ThresholdConfig{
		"execution_time":    {Warning: 10, Critical: 25},
		"peak_memory":       {Warning: 15, Critical: 30},
		"total_queries":     {Warning: 20, Critical: 50},
		"performance_score": {Warning: 10, Critical: 20},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Benchmark.Iterations < 1 {
		return fmt.Errorf("benchmark.iterations must be at least 1")
	}

	if c.Benchmark.Warmup < 0 {
		return fmt.Errorf("benchmark.warmup must not be negative")
	}

	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}

	for metric, t := range c.Regression.Thresholds {
		if t.Warning < 0 || t.Critical < 0 {
			return fmt.Errorf("regression.thresholds.%s: thresholds must not be negative", metric)
		}

		if t.Critical < t.Warning {
			return fmt.Errorf(
				"regression.thresholds.%s: critical (%.1f) is below warning (%.1f)",
				metric, t.Critical, t.Warning,
			)
		}
	}

	if c.Score.NPlusOneSavingsRatio < 0 || c.Score.NPlusOneSavingsRatio > 1 {
		return fmt.Errorf("score.n_plus_one_savings_ratio must be between 0 and 1")
	}

	return c.Storage.Validate()
}

// Validate checks the database settings.
func (d *DatabaseConfig) Validate() error {
	switch d.Driver {
	case DriverSQLite:
		if d.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	case DriverPostgres:
		if d.Postgres.Host == "" {
			return fmt.Errorf("postgres.host is required")
		}

		if d.Postgres.Database == "" {
			return fmt.Errorf("postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", d.Driver)
	}

	return nil
}

// Validate checks the storage settings.
func (s *StorageConfig) Validate() error {
	switch s.Driver {
	case StorageLocal:
		if s.Local.Dir == "" {
			return fmt.Errorf("storage.local.dir is required")
		}
	case StorageS3:
		if s.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	case StorageDatabase:
		if err := s.Database.Validate(); err != nil {
			return fmt.Errorf("storage.database: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage driver: %q", s.Driver)
	}

	return nil
}
