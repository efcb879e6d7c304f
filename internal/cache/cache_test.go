package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache[string] {
	c, err := New[string](16, ttl)
	require.NoError(t, err)
	return c
}

func constant(v string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return v, nil }
}

func TestCache_MissThenHit(t *testing.T) {
	c := newTestCache(t, time.Hour)
	key := Key{Query: "cash-secured put", TopK: 5}

	v, status, err := c.GetOrCompute(context.Background(), key, false, constant("first"))
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, status)
	assert.Equal(t, "first", v)

	v, status, err = c.GetOrCompute(context.Background(), key, false, constant("second"))
	require.NoError(t, err)
	assert.Equal(t, StatusHit, status)
	assert.Equal(t, "first", v, "hit must serve the cached value")
}

func TestCache_NormalizedQueriesShareEntry(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_, status, err := c.GetOrCompute(context.Background(),
		Key{Query: "Cash-Secured   Put", TopK: 5}, false, constant("a"))
	require.NoError(t, err)
	require.Equal(t, StatusMiss, status)

	_, status, err = c.GetOrCompute(context.Background(),
		Key{Query: "cash-secured put", TopK: 5}, false, constant("b"))
	require.NoError(t, err)
	assert.Equal(t, StatusHit, status)
}

func TestCache_DifferentFiltersOrTopKAreDistinct(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	_, s1, _ := c.GetOrCompute(ctx, Key{Query: "q", TopK: 5}, false, constant("a"))
	_, s2, _ := c.GetOrCompute(ctx, Key{Query: "q", TopK: 10}, false, constant("b"))
	_, s3, _ := c.GetOrCompute(ctx, Key{Query: "q", TopK: 5, Filters: map[string]string{"source": "docs"}}, false, constant("c"))

	assert.Equal(t, StatusMiss, s1)
	assert.Equal(t, StatusMiss, s2)
	assert.Equal(t, StatusMiss, s3)
	assert.Equal(t, 3, c.Len())
}

func TestCache_ExpiredEntryIsStale(t *testing.T) {
	c := newTestCache(t, time.Hour)
	now := time.Now()
	c.clock = func() time.Time { return now }
	key := Key{Query: "theta decay", TopK: 5}

	_, _, err := c.GetOrCompute(context.Background(), key, false, constant("old"))
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)

	v, status, err := c.GetOrCompute(context.Background(), key, false, constant("new"))
	require.NoError(t, err)
	assert.Equal(t, StatusStale, status)
	assert.Equal(t, "new", v, "stale lookups must serve the recomputed value")

	v, status, _ = c.GetOrCompute(context.Background(), key, false, constant("newer"))
	assert.Equal(t, StatusHit, status)
	assert.Equal(t, "new", v)
}

func TestCache_ForceRefreshBypassesLookupButWritesBack(t *testing.T) {
	c := newTestCache(t, time.Hour)
	key := Key{Query: "margin call", TopK: 5}
	ctx := context.Background()

	_, _, err := c.GetOrCompute(ctx, key, false, constant("cached"))
	require.NoError(t, err)

	v, status, err := c.GetOrCompute(ctx, key, true, constant("fresh"))
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, status)
	assert.Equal(t, "fresh", v)

	v, status, _ = c.GetOrCompute(ctx, key, false, constant("unused"))
	assert.Equal(t, StatusHit, status)
	assert.Equal(t, "fresh", v, "forced refresh must replace the stored entry")
}

func TestCache_ComputeErrorsAreNotCached(t *testing.T) {
	c := newTestCache(t, time.Hour)
	key := Key{Query: "broken", TopK: 5}
	ctx := context.Background()

	_, _, err := c.GetOrCompute(ctx, key, false, func(context.Context) (string, error) {
		return "", errors.New("backend down")
	})
	require.Error(t, err)
	assert.Zero(t, c.Len())

	v, status, err := c.GetOrCompute(ctx, key, false, constant("recovered"))
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, status)
	assert.Equal(t, "recovered", v)
}

func TestCache_ClearByPattern(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	_, _, _ = c.GetOrCompute(ctx, Key{Query: "covered call income", TopK: 5}, false, constant("a"))
	_, _, _ = c.GetOrCompute(ctx, Key{Query: "cash-secured put income", TopK: 5}, false, constant("b"))
	_, _, _ = c.GetOrCompute(ctx, Key{Query: "bond ladder", TopK: 5}, false, constant("c"))

	removed := c.Clear("income")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	removed = c.Clear("")
	assert.Equal(t, 1, removed)
	assert.Zero(t, c.Len())
}

func TestCache_ConcurrentLookupsCoalesce(t *testing.T) {
	c := newTestCache(t, time.Hour)
	key := Key{Query: "volatility smile", TopK: 5}

	var computations atomic.Int64
	compute := func(context.Context) (string, error) {
		computations.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), key, false, compute)
			assert.NoError(t, err)
			assert.Equal(t, "value", v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), computations.Load(),
		"concurrent identical lookups should share one computation")
}
