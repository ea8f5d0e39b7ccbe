package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethpandaops/dbbench/pkg/config"
	"github.com/ethpandaops/dbbench/pkg/fsutil"
	"github.com/sirupsen/logrus"
)

const baselineExt = ".json"

// localStore keeps one JSON file per benchmark in a directory.
type localStore struct {
	log   logrus.FieldLogger
	dir   string
	owner *fsutil.OwnerConfig
}

// Ensure interface compliance.
var _ Store = (*localStore)(nil)

// NewLocalStore creates a store rooted at cfg.Dir.
func NewLocalStore(log logrus.FieldLogger, cfg *config.LocalStorageConfig) (Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = config.DefaultBaselineDir
	}

	owner, err := fsutil.ParseOwner(cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("parsing owner: %w", err)
	}

	return &localStore{
		log:   log.WithField("component", "baseline-local"),
		dir:   filepath.Clean(dir),
		owner: owner,
	}, nil
}

func (s *localStore) Type() string {
	return config.StorageLocal
}

func (s *localStore) Start(_ context.Context) error {
	if err := fsutil.MkdirAll(s.dir, 0o755, s.owner); err != nil {
		return fmt.Errorf("creating baseline directory: %w", err)
	}

	s.log.WithField("dir", s.dir).Debug("Baseline store ready")

	return nil
}

func (s *localStore) Stop() error {
	return nil
}

func (s *localStore) Save(_ context.Context, r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}

	path := s.path(r.Key())

	if err := fsutil.WriteFileAtomic(path, data, 0o644, s.owner); err != nil {
		return fmt.Errorf("writing baseline %s: %w", path, err)
	}

	s.log.WithFields(logrus.Fields{
		"benchmark": r.BenchmarkName,
		"path":      path,
	}).Info("Saved baseline")

	return nil
}

func (s *localStore) Load(_ context.Context, name string) (*Result, error) {
	data, err := os.ReadFile(s.path(StorageKey(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("reading baseline: %w", err)
	}

	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding baseline: %w", err)
	}

	return &r, nil
}

func (s *localStore) Delete(_ context.Context, name string) error {
	if err := os.Remove(s.path(StorageKey(name))); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}

		return fmt.Errorf("removing baseline: %w", err)
	}

	return nil
}

func (s *localStore) List(_ context.Context) ([]Entry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}

		return nil, fmt.Errorf("reading baseline directory: %w", err)
	}

	entries := make([]Entry, 0, len(files))

	for _, f := range files {
		name := f.Name()
		if f.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, baselineExt) {
			continue
		}

		info, err := f.Info()
		if err != nil {
			continue
		}

		entries = append(entries, Entry{
			Key:       strings.TrimSuffix(name, baselineExt),
			UpdatedAt: info.ModTime().UTC(),
			Size:      info.Size(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	return entries, nil
}

func (s *localStore) path(key string) string {
	return filepath.Join(s.dir, key+baselineExt)
}
