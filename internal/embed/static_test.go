package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	first, err := e.Embed(ctx, "refund policy for annual plans")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "refund policy for annual plans")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStaticEmbedder_UnitLength(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "billing invoices are issued monthly")
	require.NoError(t, err)
	require.Len(t, vec, StaticDimensions)

	assert.InDelta(t, 1.0, math.Sqrt(dot(vec, vec)), 1e-5)
}

func TestStaticEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "   \n ")
	require.NoError(t, err)
	require.Len(t, vec, StaticDimensions)

	assert.Zero(t, dot(vec, vec))
}

func TestStaticEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	query, err := e.Embed(ctx, "how do I get a refund")
	require.NoError(t, err)
	related, err := e.Embed(ctx, "refund requests are processed in five days")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "zebra quantum violin xylophone")
	require.NoError(t, err)

	assert.Greater(t, dot(query, related), dot(query, unrelated))
}

func TestStaticEmbedder_EmbedBatch(t *testing.T) {
	e := NewStaticEmbedder()

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	single, err := e.Embed(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[1])
}

func TestStaticEmbedder_ClosedRejectsEmbed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	assert.False(t, e.Available(context.Background()))
	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}
