package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethpandaops/dbbench/pkg/advisor"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Benchmark is a measured workload. Setup and Teardown run outside the
// measurement window of every iteration.
type Benchmark interface {
	Name() string

	// Reference is the fully qualified identity of the benchmark.
	Reference() string

	// Options are recorded alongside baselines.
	Options() map[string]any

	Setup(ctx context.Context, db *gorm.DB) error
	Run(ctx context.Context, db *gorm.DB) error
	Teardown(ctx context.Context, db *gorm.DB) error
}

// repeatIndexArg is replaced by the repeat index in step arguments.
const repeatIndexArg = "$i"

// WorkloadStep is one statement of a SQL workload.
type WorkloadStep struct {
	SQL  string `yaml:"sql"`
	Args []any  `yaml:"args,omitempty"`

	// Repeat runs the statement this many times. Zero means once.
	Repeat int `yaml:"repeat,omitempty"`

	// Location is reported as the query's call site, as "file:line" or a
	// free-form label.
	Location string `yaml:"location,omitempty"`
}

// SQLWorkload is a Benchmark defined by a YAML file of SQL statements.
type SQLWorkload struct {
	WorkloadName string         `yaml:"name"`
	Description  string         `yaml:"description,omitempty"`
	SetupSQL     []string       `yaml:"setup,omitempty"`
	TeardownSQL  []string       `yaml:"teardown,omitempty"`
	Steps        []WorkloadStep `yaml:"steps"`
	Params       map[string]any `yaml:"options,omitempty"`

	path string
}

// Ensure interface compliance.
var _ Benchmark = (*SQLWorkload)(nil)

// LoadWorkload reads a workload definition from path.
func LoadWorkload(path string) (*SQLWorkload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload: %w", err)
	}

	return ParseWorkload(data, path)
}

// ParseWorkload decodes a workload definition. source names the definition
// in references and default step locations.
func ParseWorkload(data []byte, source string) (*SQLWorkload, error) {
	var w SQLWorkload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing workload %s: %w", source, err)
	}

	w.path = filepath.Clean(source)

	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload %s: %w", source, err)
	}

	return &w, nil
}

// Validate checks the workload for errors.
func (w *SQLWorkload) Validate() error {
	if len(w.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	for i, step := range w.Steps {
		if strings.TrimSpace(step.SQL) == "" {
			return fmt.Errorf("step %d: sql is required", i+1)
		}

		if step.Repeat < 0 {
			return fmt.Errorf("step %d: repeat must not be negative", i+1)
		}
	}

	return nil
}

// Name returns the configured name, or the file name without extension.
func (w *SQLWorkload) Name() string {
	if w.WorkloadName != "" {
		return w.WorkloadName
	}

	base := filepath.Base(w.path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (w *SQLWorkload) Reference() string {
	return w.path
}

func (w *SQLWorkload) Options() map[string]any {
	out := make(map[string]any, len(w.Params))
	for k, v := range w.Params {
		out[k] = v
	}

	return out
}

func (w *SQLWorkload) Setup(ctx context.Context, db *gorm.DB) error {
	return execAll(ctx, db, w.SetupSQL, "setup")
}

func (w *SQLWorkload) Teardown(ctx context.Context, db *gorm.DB) error {
	return execAll(ctx, db, w.TeardownSQL, "teardown")
}

// Run executes every step. Each statement carries its step's call site so
// queries are attributed to the workload rather than to this package.
func (w *SQLWorkload) Run(ctx context.Context, db *gorm.DB) error {
	for i, step := range w.Steps {
		stepCtx := advisor.WithCallSite(ctx, w.callSite(i, step))

		repeat := max(step.Repeat, 1)

		for n := 0; n < repeat; n++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := runStatement(stepCtx, db, step.SQL, expandArgs(step.Args, n)); err != nil {
				return fmt.Errorf("step %d (iteration %d): %w", i+1, n, err)
			}
		}
	}

	return nil
}

func (w *SQLWorkload) callSite(index int, step WorkloadStep) advisor.CallSite {
	if step.Location == "" {
		return advisor.CallSite{File: fmt.Sprintf("%s:step%d", filepath.Base(w.path), index+1)}
	}

	if i := strings.LastIndex(step.Location, ":"); i > 0 {
		if line, err := strconv.Atoi(step.Location[i+1:]); err == nil {
			return advisor.CallSite{File: step.Location[:i], Line: line}
		}
	}

	return advisor.CallSite{File: step.Location}
}

// runStatement executes sql, draining result rows for reads.
func runStatement(ctx context.Context, db *gorm.DB, sql string, args []any) error {
	tx := db.WithContext(ctx)

	if isRead(sql) {
		var rows []map[string]any

		return tx.Raw(sql, args...).Scan(&rows).Error
	}

	return tx.Exec(sql, args...).Error
}

func isRead(sql string) bool {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "EXPLAIN", "PRAGMA", "SHOW":
		return true
	default:
		return false
	}
}

// expandArgs substitutes the repeat index for "$i" in string arguments.
func expandArgs(args []any, index int) []any {
	if len(args) == 0 {
		return nil
	}

	out := make([]any, len(args))

	for i, arg := range args {
		s, ok := arg.(string)
		switch {
		case !ok:
			out[i] = arg
		case s == repeatIndexArg:
			out[i] = index
		default:
			out[i] = strings.ReplaceAll(s, repeatIndexArg, strconv.Itoa(index))
		}
	}

	return out
}

func execAll(ctx context.Context, db *gorm.DB, statements []string, phase string) error {
	for i, sql := range statements {
		if err := db.WithContext(ctx).Exec(sql).Error; err != nil {
			return fmt.Errorf("%s statement %d: %w", phase, i+1, err)
		}
	}

	return nil
}
