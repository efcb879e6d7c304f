package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsightlab/recall/internal/chunk"
	"github.com/finsightlab/recall/internal/config"
	"github.com/finsightlab/recall/internal/embed"
	"github.com/finsightlab/recall/internal/store"
)

type fixture struct {
	indexer  *Indexer
	embedder embed.Embedder
	vectors  store.VectorStore
	lexical  store.LexicalIndex
	metadata store.MetadataStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithEmbedder(t, embed.NewStaticEmbedder())
}

func newFixtureWithEmbedder(t *testing.T, embedder embed.Embedder) *fixture {
	t.Helper()

	t.Cleanup(func() { _ = embedder.Close() })

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embed.StaticDimensions))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	lexical, err := store.NewBleveLexicalIndex("", store.DefaultLexicalConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	metadata, err := store.NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = metadata.Close() })

	indexer := NewIndexer(
		chunk.NewChunker(config.Default().Chunking),
		embedder, vectors, lexical, metadata, nil,
	)

	return &fixture{
		indexer:  indexer,
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		metadata: metadata,
	}
}

func testDoc(id, content string) *store.Document {
	return &store.Document{
		ID:      id,
		Title:   "Test Document",
		Source:  "test",
		Content: content,
	}
}

const putContent = "# Cash-Secured Puts\n\nA cash-secured put is an options strategy where the seller holds enough cash to buy the underlying stock at the strike price if the option is assigned."

func TestIndexer_IndexWritesAllStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.indexer.Index(ctx, testDoc("doc-1", putContent))

	require.NoError(t, err)
	assert.False(t, result.Unchanged)
	assert.Greater(t, result.ChunksWritten, 0)
	assert.Zero(t, result.ChunksSkipped)

	assert.Equal(t, result.ChunksWritten, f.vectors.Count())
	assert.Equal(t, result.ChunksWritten, f.lexical.Count())

	count, err := f.metadata.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.ChunksWritten, count)
}

func TestIndexer_ReindexUnchangedContentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.indexer.Index(ctx, testDoc("doc-1", putContent))
	require.NoError(t, err)

	second, err := f.indexer.Index(ctx, testDoc("doc-1", putContent))
	require.NoError(t, err)

	assert.True(t, second.Unchanged)
	assert.Zero(t, second.ChunksWritten)
	assert.Equal(t, first.ChunksWritten, f.vectors.Count(),
		"reindexing unchanged content must not grow the index")
	assert.Equal(t, first.ChunksWritten, f.lexical.Count())
}

func TestIndexer_ChangedContentReplacesChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.indexer.Index(ctx, testDoc("doc-1", putContent))
	require.NoError(t, err)

	updated := putContent + "\n\nAssignment converts the short put into a long stock position at the strike price."
	result, err := f.indexer.Index(ctx, testDoc("doc-1", updated))
	require.NoError(t, err)

	assert.False(t, result.Unchanged)
	assert.Equal(t, result.ChunksWritten, f.vectors.Count(),
		"old chunks must be removed when content changes")
	assert.Equal(t, result.ChunksWritten, f.lexical.Count())

	ids, err := f.metadata.ChunkIDsForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, ids, result.ChunksWritten)
}

func TestIndexer_RemoveDeletesFromAllStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.indexer.Index(ctx, testDoc("doc-1", putContent))
	require.NoError(t, err)
	_, err = f.indexer.Index(ctx, testDoc("doc-2", "# Bond Ladders\n\nA bond ladder staggers maturities so principal returns at regular intervals."))
	require.NoError(t, err)

	found, err := f.indexer.Remove(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, found)

	ids, err := f.metadata.ChunkIDsForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, ids, "metadata rows for the removed document must be gone")

	remaining, err := f.metadata.ChunkIDsForDocument(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, len(remaining), f.vectors.Count(),
		"vector entries must exactly match surviving chunks")
	assert.Equal(t, len(remaining), f.lexical.Count(),
		"lexical entries must exactly match surviving chunks")
}

func TestIndexer_RemoveMissingDocumentReturnsFalse(t *testing.T) {
	f := newFixture(t)

	found, err := f.indexer.Remove(context.Background(), "never-indexed")

	require.NoError(t, err)
	assert.False(t, found)
}

func TestIndexer_EmptyDocumentIDRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.indexer.Index(context.Background(), testDoc("", "content"))
	assert.Error(t, err)

	_, err = f.indexer.Remove(context.Background(), "")
	assert.Error(t, err)
}

// faultyLexical wraps a real lexical index and fails writes on demand.
type faultyLexical struct {
	store.LexicalIndex
	failWrites bool
}

func (f *faultyLexical) Index(ctx context.Context, chunks []*store.Chunk) error {
	if f.failWrites {
		return errors.New("lexical index write failed")
	}
	return f.LexicalIndex.Index(ctx, chunks)
}

func newFaultyLexicalFixture(t *testing.T) (*fixture, *faultyLexical) {
	t.Helper()

	embedder := embed.NewStaticEmbedder()
	t.Cleanup(func() { _ = embedder.Close() })

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embed.StaticDimensions))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	inner, err := store.NewBleveLexicalIndex("", store.DefaultLexicalConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = inner.Close() })
	lexical := &faultyLexical{LexicalIndex: inner}

	metadata, err := store.NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = metadata.Close() })

	indexer := NewIndexer(
		chunk.NewChunker(config.Default().Chunking),
		embedder, vectors, lexical, metadata, nil,
	)

	return &fixture{
		indexer:  indexer,
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		metadata: metadata,
	}, lexical
}

func TestIndexer_FailedReplaceKeepsPreviousVersion(t *testing.T) {
	f, lexical := newFaultyLexicalFixture(t)
	ctx := context.Background()

	first, err := f.indexer.Index(ctx, testDoc("doc-1", putContent))
	require.NoError(t, err)

	lexical.failWrites = true
	updated := putContent + "\n\nAssignment converts the short put into a long stock position."
	_, err = f.indexer.Index(ctx, testDoc("doc-1", updated))
	require.Error(t, err)
	lexical.failWrites = false

	ids, err := f.metadata.ChunkIDsForDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, ids, first.ChunksWritten,
		"previous chunks must remain after a failed replace")
	assert.Equal(t, first.ChunksWritten, f.vectors.Count())
	assert.Equal(t, first.ChunksWritten, f.lexical.Count())

	hits, err := f.lexical.Search(ctx, "cash-secured put", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hits, "previous content must stay queryable")

	retry, err := f.indexer.Index(ctx, testDoc("doc-1", putContent))
	require.NoError(t, err)
	assert.True(t, retry.Unchanged, "the restored version is the previous one")
}

func TestIndexer_FailedFirstIndexLeavesNoTrace(t *testing.T) {
	f, lexical := newFaultyLexicalFixture(t)
	ctx := context.Background()

	lexical.failWrites = true
	_, err := f.indexer.Index(ctx, testDoc("doc-1", putContent))
	require.Error(t, err)
	lexical.failWrites = false

	hash, err := f.metadata.GetDocumentHash(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, hash, "a failed first index must not record the document")
	assert.Zero(t, f.vectors.Count())

	result, err := f.indexer.Index(ctx, testDoc("doc-1", putContent))
	require.NoError(t, err)
	assert.False(t, result.Unchanged)
	assert.Greater(t, result.ChunksWritten, 0)
}

// failingEmbedder fails embedding for chunks containing a marker.
type failingEmbedder struct {
	*embed.StaticEmbedder
	marker string
}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, f.marker) {
		return nil, errors.New("embedding backend rejected input")
	}
	return f.StaticEmbedder.Embed(ctx, text)
}

func TestIndexer_ChunkEmbeddingFailureSkipsChunkOnly(t *testing.T) {
	embedder := &failingEmbedder{StaticEmbedder: embed.NewStaticEmbedder(), marker: "POISON"}
	f := newFixtureWithEmbedder(t, embedder)
	ctx := context.Background()

	var sb strings.Builder
	sb.WriteString("# Section One\n\n")
	sb.WriteString(strings.Repeat("The first section explains how premium is collected when selling puts against cash. ", 15))
	sb.WriteString("\n\n# Section Two\n\nPOISON ")
	sb.WriteString(strings.Repeat("this section cannot be embedded by the backend for some reason. ", 15))

	result, err := f.indexer.Index(ctx, testDoc("doc-1", sb.String()))

	require.NoError(t, err)
	assert.Greater(t, result.ChunksWritten, 0)
	assert.Greater(t, result.ChunksSkipped, 0, "the failing chunk should be skipped, not fatal")
	assert.Equal(t, result.ChunksWritten, f.vectors.Count())
	assert.Equal(t, result.ChunksWritten, f.lexical.Count())
}

func TestIndexer_AllChunksFailingIsAnError(t *testing.T) {
	embedder := &failingEmbedder{StaticEmbedder: embed.NewStaticEmbedder(), marker: "put"}
	f := newFixtureWithEmbedder(t, embedder)

	_, err := f.indexer.Index(context.Background(), testDoc("doc-1", putContent))

	assert.Error(t, err)
	assert.Zero(t, f.vectors.Count(), "nothing may be written when no chunk embeds")
}
