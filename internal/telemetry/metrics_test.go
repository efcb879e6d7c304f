package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_EmptySummaryIsZero(t *testing.T) {
	tr := NewTracker()

	s := tr.Summary()

	assert.Zero(t, s.TotalQueries)
	assert.Zero(t, s.CacheHitRate)
	assert.Zero(t, s.AvgConfidence)
	assert.Zero(t, s.AvgLatencyMs)
	assert.Zero(t, s.FailureRate)
}

func TestTracker_AggregatesQueries(t *testing.T) {
	tr := NewTracker()

	tr.RecordQuery(0.8, false, 10*time.Millisecond, true)
	tr.RecordQuery(0.6, false, 20*time.Millisecond, false)
	tr.RecordQuery(0.4, true, 30*time.Millisecond, false)
	tr.RecordFailure(40 * time.Millisecond)

	s := tr.Summary()

	assert.Equal(t, int64(4), s.TotalQueries)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(2), s.CacheMisses)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, int64(1), s.LowConfidence)
	assert.InDelta(t, 1.0/3.0, s.CacheHitRate, 1e-9)
	assert.InDelta(t, 0.6, s.AvgConfidence, 1e-9)
	assert.InDelta(t, 25.0, s.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 0.25, s.FailureRate, 1e-9)
}

func TestTracker_ResetClearsCounters(t *testing.T) {
	tr := NewTracker()
	tr.RecordQuery(0.9, false, time.Millisecond, true)

	tr.Reset()

	s := tr.Summary()
	assert.Zero(t, s.TotalQueries)
	assert.Zero(t, s.AvgConfidence)
}

func TestTracker_ConcurrentRecording(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.RecordQuery(0.5, false, time.Millisecond, j%2 == 0)
			}
		}()
	}
	wg.Wait()

	s := tr.Summary()
	assert.Equal(t, int64(1000), s.TotalQueries)
	assert.Equal(t, int64(500), s.CacheHits)
	assert.InDelta(t, 0.5, s.AvgConfidence, 1e-9)
}
