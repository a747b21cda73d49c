package utils

import (
	"sort"
	"sync"
	"time"
)

// analysisSample is one completed analysis: wall-clock duration and the
// number of reasoning rounds it took.
type analysisSample struct {
	duration time.Duration
	steps    int
}

// LatencyTracker keeps a bounded window of completed-analysis samples for
// the health endpoint and periodic reporting. The window is a ring: once
// full, each new sample overwrites the oldest.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []analysisSample
	next    int
	full    bool
}

// NewLatencyTracker creates a tracker windowed to the last `window` analyses.
func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = 512
	}
	return &LatencyTracker{samples: make([]analysisSample, window)}
}

// Observe records one completed analysis.
func (l *LatencyTracker) Observe(d time.Duration, steps int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[l.next] = analysisSample{duration: d, steps: steps}
	l.next++
	if l.next == len(l.samples) {
		l.next = 0
		l.full = true
	}
}

// Count returns the number of samples currently in the window.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count()
}

// Percentile returns the duration at percentile p (0-100) over the current
// window. Returns zero with no samples.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.count()
	if n == 0 {
		return 0
	}
	sorted := make([]time.Duration, n)
	for i := 0; i < n; i++ {
		sorted[i] = l.samples[i].duration
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return sorted[int((p/100.0)*float64(n-1))]
}

// MeanSteps returns the average number of reasoning rounds per analysis in
// the current window. Returns zero with no samples.
func (l *LatencyTracker) MeanSteps() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.count()
	if n == 0 {
		return 0
	}
	total := 0
	for i := 0; i < n; i++ {
		total += l.samples[i].steps
	}
	return float64(total) / float64(n)
}

func (l *LatencyTracker) count() int {
	if l.full {
		return len(l.samples)
	}
	return l.next
}
