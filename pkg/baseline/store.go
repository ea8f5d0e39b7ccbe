package baseline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/dbbench/pkg/config"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when no baseline exists for a benchmark.
var ErrNotFound = errors.New("baseline not found")

// Entry describes a stored baseline.
type Entry struct {
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updated_at"`
	Size      int64     `json:"size,omitempty"`
}

// Store persists baselines keyed by StorageKey of the benchmark name.
// Saving overwrites any previous baseline for the same benchmark.
type Store interface {
	// Start prepares the backend.
	Start(ctx context.Context) error

	// Stop releases backend resources.
	Stop() error

	// Save writes r under its storage key.
	Save(ctx context.Context, r *Result) error

	// Load returns the baseline of the named benchmark or ErrNotFound.
	Load(ctx context.Context, name string) (*Result, error)

	// Delete removes the baseline of the named benchmark or returns
	// ErrNotFound.
	Delete(ctx context.Context, name string) error

	// List returns all stored baselines ordered by key.
	List(ctx context.Context) ([]Entry, error)

	// Type returns the backend name.
	Type() string
}

// NewStore creates the store selected by cfg.Driver.
func NewStore(log logrus.FieldLogger, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.StorageLocal, "":
		return NewLocalStore(log, &cfg.Local)
	case config.StorageS3:
		return NewS3Store(log, &cfg.S3), nil
	case config.StorageDatabase:
		return NewDatabaseStore(log, &cfg.Database), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Driver)
	}
}
