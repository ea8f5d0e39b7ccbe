package stats

import (
	"context"
	"sync"
	"time"
)

// DefaultSampleInterval is how often a PeakSampler polls its reader.
const DefaultSampleInterval = 5 * time.Millisecond

// PeakSampler polls a Reader and keeps the highest RSS it has seen.
type PeakSampler struct {
	reader   Reader
	interval time.Duration

	mu   sync.Mutex
	peak uint64
}

// NewPeakSampler creates a sampler polling reader every interval.
func NewPeakSampler(reader Reader, interval time.Duration) *PeakSampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}

	return &PeakSampler{
		reader:   reader,
		interval: interval,
	}
}

// Run samples until ctx is cancelled. Read errors skip the sample.
func (s *PeakSampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sample(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

// Observe records an externally taken snapshot.
func (s *PeakSampler) Observe(snap *Snapshot) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.RSS > s.peak {
		s.peak = snap.RSS
	}
}

// Peak returns the highest RSS observed so far.
func (s *PeakSampler) Peak() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.peak
}

func (s *PeakSampler) sample(ctx context.Context) {
	snap, err := s.reader.ReadStats(ctx)
	if err != nil {
		return
	}

	s.Observe(snap)
}
