package store

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 8

func newTestHNSW(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(testDims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// axisVector returns a unit vector along the given axis.
func axisVector(axis int) []float32 {
	v := make([]float32, testDims)
	v[axis] = 1
	return v
}

func randomVectors(n int) [][]float32 {
	rng := rand.New(rand.NewSource(42))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, testDims)
		for j := range v {
			v[j] = rng.Float32()
		}
		vecs[i] = v
	}
	return vecs
}

func TestHNSWStore_AddAndSearch(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{axisVector(0), axisVector(1), axisVector(2)}))

	results, err := s.Search(ctx, axisVector(1), 2)

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "b", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5,
		"identical vectors score 1.0")
}

func TestHNSWStore_DimensionMismatchRejected(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()

	err := s.Add(ctx, []string{"a"}, [][]float32{make([]float32, testDims+1)})
	assert.Error(t, err)

	_, err = s.Search(ctx, make([]float32, testDims-1), 1)
	assert.Error(t, err)
}

func TestHNSWStore_GetReturnsStoredVectors(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"a", "b"},
		[][]float32{axisVector(0), axisVector(1)}))

	vecs, err := s.Get(ctx, []string{"b", "a"})

	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.InDelta(t, 1.0, float64(vecs[0][1]), 1e-6, "order follows the requested IDs")
	assert.InDelta(t, 1.0, float64(vecs[1][0]), 1e-6)

	_, err = s.Get(ctx, []string{"a", "ghost"})
	assert.Error(t, err, "a missing ID is an error")
}

func TestHNSWStore_DeleteHidesVectors(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"a", "b"},
		[][]float32{axisVector(0), axisVector(1)}))
	require.NoError(t, s.Delete(ctx, []string{"a"}))

	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, axisVector(0), 2)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ID, "deleted vectors must not surface")
	}
}

func TestHNSWStore_SearchFillsKDespiteDeletions(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()

	ids := []string{"a", "b", "c", "d", "e", "f"}
	require.NoError(t, s.Add(ctx, ids, randomVectors(len(ids))))
	require.NoError(t, s.Delete(ctx, []string{"a", "b", "c"}))

	results, err := s.Search(ctx, axisVector(0), 3)

	require.NoError(t, err)
	assert.Len(t, results, 3,
		"lazy deletion must not shrink result counts while live vectors remain")
}

func TestHNSWStore_ReAddReplacesVector(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{axisVector(0)}))
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{axisVector(3)}))

	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, axisVector(3), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWStore_EmptySearchReturnsEmpty(t *testing.T) {
	s := newTestHNSW(t)

	results, err := s.Search(context.Background(), axisVector(0), 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_SaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	s := newTestHNSW(t)
	require.NoError(t, s.Add(ctx,
		[]string{"a", "b"},
		[][]float32{axisVector(0), axisVector(1)}))
	require.NoError(t, s.Save(path))

	restored, err := NewHNSWStore(DefaultVectorStoreConfig(testDims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = restored.Close() })
	require.NoError(t, restored.Load(path))

	assert.Equal(t, 2, restored.Count())
	results, err := restored.Search(ctx, axisVector(1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestHNSWStore_ClosedStoreRejectsOperations(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(testDims))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.Add(context.Background(), []string{"a"}, [][]float32{axisVector(0)}))
	_, err = s.Search(context.Background(), axisVector(0), 1)
	assert.Error(t, err)
	assert.Zero(t, s.Count())
}

func TestDistanceToScore(t *testing.T) {
	assert.InDelta(t, 1.0, float64(distanceToScore(0, "cos")), 1e-9)
	assert.InDelta(t, 0.5, float64(distanceToScore(1, "cos")), 1e-9)
	assert.InDelta(t, 0.0, float64(distanceToScore(2, "cos")), 1e-9)
	assert.InDelta(t, 1.0, float64(distanceToScore(0, "l2")), 1e-9)
	assert.InDelta(t, 0.5, float64(distanceToScore(1, "l2")), 1e-9)
}
