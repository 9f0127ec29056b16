// Package timeseries tracks a cumulative counter and derives rolling rates
// from periodic samples of it.
//
// The analyzer samples the number of lines consumed on every dashboard tick
// and shows the recent lines/sec next to the overall average.
//
// Thread-safe: Set() uses atomic int64, Rates() acquires read lock.
package timeseries

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringBufferSize is the number of samples to retain (2 minutes at 1 sample/sec)
	ringBufferSize = 120

	// Window durations for rolling averages
	window1s  = 1 * time.Second
	window10s = 10 * time.Second
	window60s = 60 * time.Second
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// sample represents a point-in-time snapshot of the counter.
type sample struct {
	timestamp time.Time
	value     int64
}

// RateTracker tracks a cumulative count and computes rolling rates over
// fixed windows.
//
// Usage:
//
//	tracker := NewRateTracker()
//	tracker.Set(linesRead) // whenever a new total is known
//	tracker.RecordSample() // periodically, e.g. on every TUI tick
//	rates := tracker.Rates()
type RateTracker struct {
	// total is the latest cumulative count
	total atomic.Int64

	// Ring buffer of samples for rolling average calculation
	samples  []sample
	writeIdx int // Next write position in ring buffer
	mu       sync.RWMutex

	// Start time for overall average calculation
	startTime time.Time

	clock Clock
}

// Rates contains computed rolling averages at a point in time.
type Rates struct {
	Total int64

	// Rolling averages (units per second)
	Avg1s  float64
	Avg10s float64
	Avg60s float64

	// AvgOverall is the average rate since tracking started
	AvgOverall float64
}

// NewRateTracker creates a new tracker with real clock.
func NewRateTracker() *RateTracker {
	return NewRateTrackerWithClock(realClock{})
}

// NewRateTrackerWithClock creates a tracker with custom clock for testing.
func NewRateTrackerWithClock(clock Clock) *RateTracker {
	now := clock.Now()
	t := &RateTracker{
		samples:   make([]sample, 0, ringBufferSize),
		startTime: now,
		clock:     clock,
	}
	// Initial sample at t=0 with a zero count
	t.samples = append(t.samples, sample{timestamp: now, value: 0})
	return t
}

// Set stores the current cumulative count. Values lower than the stored
// one are ignored, the count never goes backwards.
func (t *RateTracker) Set(total int64) {
	for {
		cur := t.total.Load()
		if total <= cur {
			return
		}
		if t.total.CompareAndSwap(cur, total) {
			return
		}
	}
}

// Add increments the cumulative count by n.
func (t *RateTracker) Add(n int64) {
	if n > 0 {
		t.total.Add(n)
	}
}

// RecordSample records the current count with a timestamp.
func (t *RateTracker) RecordSample() {
	now := t.clock.Now()
	current := t.total.Load()

	t.mu.Lock()
	defer t.mu.Unlock()

	s := sample{timestamp: now, value: current}
	if len(t.samples) < ringBufferSize {
		t.samples = append(t.samples, s)
	} else {
		// Buffer full - overwrite oldest
		t.samples[t.writeIdx] = s
		t.writeIdx = (t.writeIdx + 1) % ringBufferSize
	}
}

// Rates computes the current rolling rates.
func (t *RateTracker) Rates() Rates {
	now := t.clock.Now()
	current := t.total.Load()

	t.mu.RLock()
	defer t.mu.RUnlock()

	r := Rates{Total: current}

	elapsed := now.Sub(t.startTime).Seconds()
	if elapsed > 0 {
		r.AvgOverall = float64(current) / elapsed
	}

	r.Avg1s = t.avgOverWindow(now, current, window1s)
	r.Avg10s = t.avgOverWindow(now, current, window10s)
	r.Avg60s = t.avgOverWindow(now, current, window60s)

	return r
}

// avgOverWindow calculates the rate over the specified window.
// Must be called with mu held (at least RLock).
func (t *RateTracker) avgOverWindow(now time.Time, current int64, window time.Duration) float64 {
	targetTime := now.Add(-window)

	// Closest sample at or before targetTime
	var best *sample
	var bestDiff time.Duration = -1
	for i := range t.samples {
		s := &t.samples[i]
		if s.timestamp.After(targetTime) {
			continue
		}
		diff := targetTime.Sub(s.timestamp)
		if bestDiff < 0 || diff < bestDiff {
			best = s
			bestDiff = diff
		}
	}

	// No sample old enough: use the oldest we have
	if best == nil {
		best = t.oldestSample()
	}
	if best == nil {
		return 0
	}

	elapsed := now.Sub(best.timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(current-best.value) / elapsed
}

// oldestSample returns the oldest sample in the ring buffer.
// Must be called with mu held.
func (t *RateTracker) oldestSample() *sample {
	if len(t.samples) == 0 {
		return nil
	}
	if len(t.samples) < ringBufferSize {
		return &t.samples[0]
	}
	return &t.samples[t.writeIdx]
}

// SampleCount returns the number of samples in the ring buffer.
func (t *RateTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}
