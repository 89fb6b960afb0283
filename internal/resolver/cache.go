package resolver

import (
	"sync"
	"time"
)

// FailureTracker counts consecutive resolution failures per (chain, address)
// key. A key whose count reaches the threshold is quarantined until a
// success anywhere resets it.
type FailureTracker struct {
	mu        sync.Mutex
	counts    map[string]int
	threshold int
}

func NewFailureTracker(threshold int) *FailureTracker {
	return &FailureTracker{
		counts:    make(map[string]int),
		threshold: threshold,
	}
}

// Increment bumps the failure count for key and returns the new count.
func (f *FailureTracker) Increment(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key]
}

// Reset clears the failure count for key.
func (f *FailureTracker) Reset(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, key)
}

// Count returns the current failure count for key.
func (f *FailureTracker) Count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

// Quarantined reports whether key has failed at least threshold times in a
// row.
func (f *FailureTracker) Quarantined(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key] >= f.threshold
}

// PricePoint is one observation in the rolling history.
type PricePoint struct {
	At    time.Time
	Price float64
}

// History keeps an append-only rolling window of price observations per
// key, pruned on append.
type History struct {
	mu     sync.Mutex
	points map[string][]PricePoint
	window time.Duration
}

func NewHistory(window time.Duration) *History {
	return &History{
		points: make(map[string][]PricePoint),
		window: window,
	}
}

// Append records an observation and drops points older than the window.
func (h *History) Append(key string, price float64, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pts := append(h.points[key], PricePoint{At: at, Price: price})
	cutoff := at.Add(-h.window)
	start := 0
	for start < len(pts) && pts[start].At.Before(cutoff) {
		start++
	}
	h.points[key] = pts[start:]
}

// Snapshot returns a copy of the stored points for key.
func (h *History) Snapshot(key string) []PricePoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	pts := h.points[key]
	out := make([]PricePoint, len(pts))
	copy(out, pts)
	return out
}
