package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVector(t *testing.T, dims int) *VectorIndex {
	t.Helper()
	idx, err := NewVectorIndex(VectorConfig{Dimensions: dims})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestVectorIndex_SearchReturnsNearest(t *testing.T) {
	idx := newTestVector(t, 3)
	ctx := context.Background()

	err := idx.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
		})
	require.NoError(t, err)

	results, err := idx.Search(ctx, []float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.InDelta(t, 1.0, results[0].Score, 0.05)
}

func TestVectorIndex_ReplaceExistingID(t *testing.T) {
	idx := newTestVector(t, 2)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{0, 1}}))

	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
}

func TestVectorIndex_RemovedIDsNeverSurface(t *testing.T) {
	idx := newTestVector(t, 2)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"keep", "drop"},
		[][]float32{{1, 0}, {0.99, 0.14}}))
	require.NoError(t, idx.Remove(ctx, []string{"drop"}))

	assert.Equal(t, 1, idx.Count())
	assert.False(t, idx.Contains("drop"))
	assert.True(t, idx.Contains("keep"))

	results, err := idx.Search(ctx, []float32{0.99, 0.14}, 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep", results[0].ID)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := newTestVector(t, 3)
	ctx := context.Background()

	err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "dimension mismatch")

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	require.Error(t, err)
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestVectorIndex_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	ctx := context.Background()

	idx := newTestVector(t, 2)
	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Save(path))

	loaded, err := LoadVectorIndex(path)
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()

	assert.Equal(t, 2, loaded.Count())
	assert.Equal(t, 2, loaded.Dimensions())

	results, err := loaded.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestVectorIndex_EmptySearch(t *testing.T) {
	idx := newTestVector(t, 2)

	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewVectorIndex_RequiresDimensions(t *testing.T) {
	_, err := NewVectorIndex(VectorConfig{})
	assert.Error(t, err)
}
