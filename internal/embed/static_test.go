package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (vectorMagnitude(a) * vectorMagnitude(b))
}

func TestStaticEmbedder_Embed_ReturnsCorrectDimensions(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.Embed(context.Background(), "a cash-secured put is an options strategy")

	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
}

func TestStaticEmbedder_Embed_VectorIsNormalized(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.Embed(context.Background(), "selling puts while holding cash collateral")
	require.NoError(t, err)

	magnitude := vectorMagnitude(embedding)
	assert.InDelta(t, 1.0, magnitude, 0.001, "vector should be normalized to unit length")
}

func TestStaticEmbedder_Embed_IsDeterministic(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	text := "covered calls generate income from long stock positions"

	emb1, err1 := embedder.Embed(context.Background(), text)
	emb2, err2 := embedder.Embed(context.Background(), text)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, emb1, emb2, "same input must produce identical vectors")
}

func TestStaticEmbedder_Embed_EmptyInputReturnsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.Embed(context.Background(), "   \n\t ")

	require.NoError(t, err)
	require.Len(t, embedding, StaticDimensions)
	for _, v := range embedding {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_Embed_SharedTermsIncreaseSimilarity(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	ctx := context.Background()
	query, err := embedder.Embed(ctx, "cash-secured put")
	require.NoError(t, err)

	relevant, err := embedder.Embed(ctx, "A cash-secured put is an options strategy where the seller holds enough cash to buy the stock if assigned.")
	require.NoError(t, err)

	unrelated, err := embedder.Embed(ctx, "Compound interest accrues on both the principal and previously earned interest over time.")
	require.NoError(t, err)

	simRelevant := cosineSimilarity(query, relevant)
	simUnrelated := cosineSimilarity(query, unrelated)
	assert.Greater(t, simRelevant, simUnrelated,
		"overlapping vocabulary should score higher than unrelated text")
}

func TestStaticEmbedder_Embed_HyphenatedCompoundMatchesParts(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	ctx := context.Background()
	compound, err := embedder.Embed(ctx, "cash-secured")
	require.NoError(t, err)

	spelled, err := embedder.Embed(ctx, "cash secured")
	require.NoError(t, err)

	assert.Greater(t, cosineSimilarity(compound, spelled), 0.5,
		"hyphenated form should stay close to the spelled-out form")
}

func TestStaticEmbedder_EmbedBatch_MatchesSingleEmbed(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	ctx := context.Background()
	texts := []string{"strike price", "expiration date", "implied volatility"}

	batch, err := embedder.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := embedder.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestStaticEmbedder_EmbedBatch_EmptyInput(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	batch, err := embedder.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestStaticEmbedder_Embed_AfterCloseFails(t *testing.T) {
	embedder := NewStaticEmbedder()
	require.NoError(t, embedder.Close())

	_, err := embedder.Embed(context.Background(), "anything")
	assert.Error(t, err)
	assert.False(t, embedder.Available(context.Background()))
}
