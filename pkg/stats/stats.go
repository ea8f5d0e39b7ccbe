package stats

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
)

// Snapshot is a point-in-time reading of this process's memory.
type Snapshot struct {
	RSS        uint64 // Resident set size (bytes)
	HeapAlloc  uint64 // Live heap (bytes)
	TotalAlloc uint64 // Heap allocated since start (bytes, cumulative)
}

// Delta represents the difference between two Snapshots.
type Delta struct {
	Allocated uint64 // Heap bytes allocated in between
	RSSDelta  int64  // Can be negative if memory was returned to the OS
}

// Reader reads memory usage of the running process.
// Implemented by processReader (gopsutil) and runtimeReader (Go runtime).
type Reader interface {
	// ReadStats returns the current memory usage.
	ReadStats(ctx context.Context) (*Snapshot, error)
	// Close releases any resources held by the reader.
	Close() error
	// Type returns the reader implementation type for logging.
	Type() string // "process" or "runtime"
}

// NewReader creates the best available reader for the current process.
// Priority: 1) OS process stats (includes cgo and driver memory),
// 2) Go runtime stats (fallback)
func NewReader(ctx context.Context, log logrus.FieldLogger) Reader {
	r, err := newProcessReader(ctx, log)
	if err == nil {
		log.Debug("Using process stats reader")

		return r
	}

	log.WithError(err).Info("Process stats not available, using runtime reader")

	return newRuntimeReader()
}

// ComputeDelta calculates the difference between after and before.
func ComputeDelta(before, after *Snapshot) *Delta {
	if before == nil || after == nil {
		return nil
	}

	delta := &Delta{
		RSSDelta: int64(after.RSS) - int64(before.RSS),
	}

	// TotalAlloc is cumulative, so after should be >= before.
	if after.TotalAlloc >= before.TotalAlloc {
		delta.Allocated = after.TotalAlloc - before.TotalAlloc
	}

	return delta
}

// processReader implements Reader using gopsutil.
type processReader struct {
	log  logrus.FieldLogger
	proc *process.Process
}

// Ensure interface compliance.
var _ Reader = (*processReader)(nil)

func newProcessReader(ctx context.Context, log logrus.FieldLogger) (*processReader, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return nil, fmt.Errorf("opening process: %w", err)
	}

	r := &processReader{
		log:  log.WithField("reader", "process"),
		proc: proc,
	}

	// Probe once so unsupported platforms fall back immediately.
	if _, err := r.ReadStats(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *processReader) Type() string {
	return "process"
}

func (r *processReader) Close() error {
	return nil
}

func (r *processReader) ReadStats(ctx context.Context) (*Snapshot, error) {
	info, err := r.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading process memory: %w", err)
	}

	snap := readRuntime()
	snap.RSS = info.RSS

	return snap, nil
}

// runtimeReader implements Reader using runtime.ReadMemStats. RSS is
// approximated by the memory obtained from the OS.
type runtimeReader struct{}

// Ensure interface compliance.
var _ Reader = (*runtimeReader)(nil)

func newRuntimeReader() *runtimeReader {
	return &runtimeReader{}
}

func (r *runtimeReader) Type() string {
	return "runtime"
}

func (r *runtimeReader) Close() error {
	return nil
}

func (r *runtimeReader) ReadStats(_ context.Context) (*Snapshot, error) {
	return readRuntime(), nil
}

func readRuntime() *Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return &Snapshot{
		RSS:        ms.Sys,
		HeapAlloc:  ms.HeapAlloc,
		TotalAlloc: ms.TotalAlloc,
	}
}
