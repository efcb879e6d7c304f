// Package telemetry collects lightweight in-process query metrics.
package telemetry

import (
	"math"
	"sync/atomic"
	"time"
)

// Tracker accumulates query counters. All methods are safe for
// concurrent use and never block the query path.
type Tracker struct {
	totalQueries  atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	failures      atomic.Int64
	lowConfidence atomic.Int64

	confidenceSumBits atomic.Uint64 // float64 bits, CAS-accumulated
	latencySumNanos   atomic.Int64
}

// Summary is a point-in-time aggregate of tracked queries.
type Summary struct {
	TotalQueries  int64   `json:"total_queries"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	Failures      int64   `json:"failures"`
	LowConfidence int64   `json:"low_confidence"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	FailureRate   float64 `json:"failure_rate"`
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordQuery records one completed query.
func (t *Tracker) RecordQuery(confidence float64, low bool, latency time.Duration, cacheHit bool) {
	t.totalQueries.Add(1)
	if cacheHit {
		t.cacheHits.Add(1)
	} else {
		t.cacheMisses.Add(1)
	}
	if low {
		t.lowConfidence.Add(1)
	}
	t.addConfidence(confidence)
	t.latencySumNanos.Add(int64(latency))
}

// RecordFailure records a query that returned an error.
func (t *Tracker) RecordFailure(latency time.Duration) {
	t.totalQueries.Add(1)
	t.failures.Add(1)
	t.latencySumNanos.Add(int64(latency))
}

func (t *Tracker) addConfidence(v float64) {
	for {
		old := t.confidenceSumBits.Load()
		updated := math.Float64bits(math.Float64frombits(old) + v)
		if t.confidenceSumBits.CompareAndSwap(old, updated) {
			return
		}
	}
}

// Summary computes aggregate rates over everything recorded so far.
func (t *Tracker) Summary() Summary {
	total := t.totalQueries.Load()
	hits := t.cacheHits.Load()
	misses := t.cacheMisses.Load()
	failures := t.failures.Load()
	succeeded := total - failures

	s := Summary{
		TotalQueries:  total,
		CacheHits:     hits,
		CacheMisses:   misses,
		Failures:      failures,
		LowConfidence: t.lowConfidence.Load(),
	}

	if lookups := hits + misses; lookups > 0 {
		s.CacheHitRate = float64(hits) / float64(lookups)
	}
	if succeeded > 0 {
		s.AvgConfidence = math.Float64frombits(t.confidenceSumBits.Load()) / float64(succeeded)
	}
	if total > 0 {
		s.AvgLatencyMs = float64(t.latencySumNanos.Load()) / float64(total) / 1e6
		s.FailureRate = float64(failures) / float64(total)
	}
	return s
}

// Reset clears all counters.
func (t *Tracker) Reset() {
	t.totalQueries.Store(0)
	t.cacheHits.Store(0)
	t.cacheMisses.Store(0)
	t.failures.Store(0)
	t.lowConfidence.Store(0)
	t.confidenceSumBits.Store(0)
	t.latencySumNanos.Store(0)
}
