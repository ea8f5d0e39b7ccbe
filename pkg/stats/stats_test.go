package stats

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReader(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	r := NewReader(context.Background(), log)
	defer func() { _ = r.Close() }()

	assert.Contains(t, []string{"process", "runtime"}, r.Type())

	snap, err := r.ReadStats(context.Background())
	require.NoError(t, err)
	assert.Positive(t, snap.RSS)
	assert.Positive(t, snap.TotalAlloc)
}

func TestComputeDelta(t *testing.T) {
	assert.Nil(t, ComputeDelta(nil, &Snapshot{}))

	d := ComputeDelta(
		&Snapshot{RSS: 1000, TotalAlloc: 500},
		&Snapshot{RSS: 800, TotalAlloc: 1500},
	)
	require.NotNil(t, d)
	assert.Equal(t, uint64(1000), d.Allocated)
	assert.Equal(t, int64(-200), d.RSSDelta)

	d = ComputeDelta(&Snapshot{TotalAlloc: 10}, &Snapshot{TotalAlloc: 5})
	assert.Zero(t, d.Allocated)
}

type fakeReader struct {
	values []uint64
	calls  atomic.Int32
}

func (r *fakeReader) ReadStats(_ context.Context) (*Snapshot, error) {
	i := int(r.calls.Add(1)) - 1
	if i >= len(r.values) {
		return nil, errors.New("exhausted")
	}

	return &Snapshot{RSS: r.values[i]}, nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Type() string { return "fake" }

func TestPeakSampler(t *testing.T) {
	reader := &fakeReader{values: []uint64{100, 900, 300}}
	sampler := NewPeakSampler(reader, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sampler.Run(ctx) }()

	require.Eventually(t, func() bool {
		return reader.calls.Load() > int32(len(reader.values))
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, uint64(900), sampler.Peak())

	sampler.Observe(&Snapshot{RSS: 5000})
	assert.Equal(t, uint64(5000), sampler.Peak())
}
