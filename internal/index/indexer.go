// Package index coordinates writing documents into the vector,
// lexical, and metadata stores.
package index

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/finsightlab/recall/internal/chunk"
	"github.com/finsightlab/recall/internal/embed"
	enginerrors "github.com/finsightlab/recall/internal/errors"
	"github.com/finsightlab/recall/internal/store"
)

// Result reports what one Index call did.
type Result struct {
	DocumentID    string
	ChunksWritten int
	ChunksSkipped int  // Chunks dropped due to embedding failures
	Unchanged     bool // Content hash matched; nothing was written
}

// Indexer chunks, embeds, and writes documents. Writes to the same
// document are serialized; different documents index concurrently.
type Indexer struct {
	chunker  *chunk.Chunker
	embedder embed.Embedder
	vectors  store.VectorStore
	lexical  store.LexicalIndex
	metadata store.MetadataStore
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIndexer wires the indexing pipeline.
func NewIndexer(
	chunker *chunk.Chunker,
	embedder embed.Embedder,
	vectors store.VectorStore,
	lexical store.LexicalIndex,
	metadata store.MetadataStore,
	logger *slog.Logger,
) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		chunker:  chunker,
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		metadata: metadata,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// docLock returns the mutex serializing writes for one document.
func (ix *Indexer) docLock(documentID string) *sync.Mutex {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	l, ok := ix.locks[documentID]
	if !ok {
		l = &sync.Mutex{}
		ix.locks[documentID] = l
	}
	return l
}

// Index writes a document into all stores. Re-indexing unchanged
// content is a no-op. Changed content is replaced by writing the new
// version first and pruning leftovers last, so a failed write leaves
// the previous version intact and queryable.
func (ix *Indexer) Index(ctx context.Context, doc *store.Document) (*Result, error) {
	if doc == nil || doc.ID == "" {
		return nil, enginerrors.New(enginerrors.ErrCodeInvalidInput, "document id must not be empty", nil)
	}

	hash := chunk.HashContent(doc.Content)

	lock := ix.docLock(doc.ID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := ix.metadata.GetDocumentHash(ctx, doc.ID)
	if err != nil {
		return nil, enginerrors.New(enginerrors.ErrCodeMetadataFailed, "read document hash", err)
	}
	if existing == hash {
		ix.logger.Debug("document unchanged, skipping",
			slog.String("document_id", doc.ID))
		return &Result{DocumentID: doc.ID, Unchanged: true}, nil
	}

	// Chunk and embed fully before touching any store, so a failed
	// embedding never leaves a half-replaced document behind.
	chunks := ix.chunker.Chunk(doc.ID, doc.Content)

	embedded, skipped := ix.embedChunks(ctx, chunks)
	if len(embedded) == 0 && len(chunks) > 0 {
		return nil, enginerrors.New(enginerrors.ErrCodeEmbeddingFailed,
			"no chunks could be embedded", nil)
	}

	// Snapshot the current version so a failed replace can put it back.
	snap, err := ix.snapshotDocument(ctx, doc.ID, existing != "")
	if err != nil {
		return nil, err
	}

	newIDs := make([]string, len(embedded))
	newChunks := make([]*store.Chunk, len(embedded))
	newVectors := make([][]float32, len(embedded))
	for i, ec := range embedded {
		newIDs[i] = ec.chunk.ID
		newChunks[i] = ec.chunk
		newVectors[i] = ec.vector
	}
	staleIDs := subtractIDs(snap.chunkIDs, newIDs)

	// Write the new version over the old one. Overlapping chunk IDs
	// are replaced in place; nothing old is deleted yet.
	if err := ix.vectors.Add(ctx, newIDs, newVectors); err != nil {
		ix.restoreVectors(ctx, snap, newIDs)
		return nil, enginerrors.New(enginerrors.ErrCodeIndexFailed, "write vectors", err)
	}
	if err := ix.lexical.Index(ctx, newChunks); err != nil {
		// A failed lexical batch applies nothing, so only the vector
		// entries need to be put back.
		ix.restoreVectors(ctx, snap, newIDs)
		return nil, enginerrors.New(enginerrors.ErrCodeIndexFailed, "write lexical entries", err)
	}

	stored := *doc
	stored.ContentHash = hash
	stored.IndexedAt = time.Now().UTC()
	if err := ix.swapMetadata(ctx, &stored, newChunks, staleIDs); err != nil {
		ix.restoreVectors(ctx, snap, newIDs)
		ix.restoreLexical(ctx, snap, newIDs)
		ix.restoreMetadata(ctx, snap, newIDs)
		return nil, err
	}

	// The new version is committed. Stale entries from a longer
	// previous version are pruned best-effort; leftovers have no
	// metadata row and are dropped at enrichment.
	if len(staleIDs) > 0 {
		if err := ix.vectors.Delete(ctx, staleIDs); err != nil {
			ix.logger.Warn("pruning stale vectors failed",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()))
		}
		if err := ix.lexical.Delete(ctx, staleIDs); err != nil {
			ix.logger.Warn("pruning stale lexical entries failed",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()))
		}
	}

	ix.logger.Info("document indexed",
		slog.String("document_id", doc.ID),
		slog.Int("chunks_written", len(embedded)),
		slog.Int("chunks_skipped", skipped))

	return &Result{
		DocumentID:    doc.ID,
		ChunksWritten: len(embedded),
		ChunksSkipped: skipped,
	}, nil
}

// embeddedChunk pairs a chunk with its vector.
type embeddedChunk struct {
	chunk  *store.Chunk
	vector []float32
}

// embedChunks embeds each chunk, skipping and logging individual
// failures instead of failing the whole document.
func (ix *Indexer) embedChunks(ctx context.Context, chunks []*store.Chunk) ([]embeddedChunk, int) {
	embedded := make([]embeddedChunk, 0, len(chunks))
	skipped := 0

	for _, ch := range chunks {
		vec, err := ix.embedder.Embed(ctx, ch.Content)
		if err != nil {
			skipped++
			ix.logger.Warn("skipping chunk, embedding failed",
				slog.String("chunk_id", ch.ID),
				slog.String("error", err.Error()))
			continue
		}
		embedded = append(embedded, embeddedChunk{chunk: ch, vector: vec})
	}

	return embedded, skipped
}

// swapMetadata replaces the document's metadata with the new version.
func (ix *Indexer) swapMetadata(ctx context.Context, doc *store.Document, chunks []*store.Chunk, staleIDs []string) error {
	if err := ix.metadata.SaveDocument(ctx, doc); err != nil {
		return enginerrors.New(enginerrors.ErrCodeMetadataFailed, "save document", err)
	}
	if err := ix.metadata.SaveChunks(ctx, chunks); err != nil {
		return enginerrors.New(enginerrors.ErrCodeMetadataFailed, "save chunks", err)
	}
	if len(staleIDs) > 0 {
		if err := ix.metadata.DeleteChunks(ctx, staleIDs); err != nil {
			return enginerrors.New(enginerrors.ErrCodeMetadataFailed, "delete stale chunk metadata", err)
		}
	}
	return nil
}

// docSnapshot captures everything needed to put a document's indexed
// version back after a failed replace.
type docSnapshot struct {
	id       string
	doc      *store.Document // nil when the document was not indexed before
	chunks   []*store.Chunk
	chunkIDs []string
	vectors  [][]float32
}

// snapshotDocument reads the currently indexed version of a document.
func (ix *Indexer) snapshotDocument(ctx context.Context, documentID string, exists bool) (*docSnapshot, error) {
	snap := &docSnapshot{id: documentID}
	if !exists {
		return snap, nil
	}

	doc, err := ix.metadata.GetDocument(ctx, documentID)
	if err != nil {
		return nil, enginerrors.New(enginerrors.ErrCodeMetadataFailed, "read current document", err)
	}
	snap.doc = doc

	snap.chunkIDs, err = ix.metadata.ChunkIDsForDocument(ctx, documentID)
	if err != nil {
		return nil, enginerrors.New(enginerrors.ErrCodeMetadataFailed, "list existing chunks", err)
	}
	snap.chunks, err = ix.metadata.GetChunks(ctx, snap.chunkIDs)
	if err != nil {
		return nil, enginerrors.New(enginerrors.ErrCodeMetadataFailed, "read existing chunks", err)
	}
	snap.vectors, err = ix.vectors.Get(ctx, snap.chunkIDs)
	if err != nil {
		return nil, enginerrors.New(enginerrors.ErrCodeIndexFailed, "read existing vectors", err)
	}

	return snap, nil
}

// restoreVectors removes the new version's vectors and re-adds the
// snapshotted ones.
func (ix *Indexer) restoreVectors(ctx context.Context, snap *docSnapshot, newIDs []string) {
	if err := ix.vectors.Delete(ctx, newIDs); err != nil {
		ix.logRestoreErr(snap.id, "delete new vectors", err)
	}
	if len(snap.chunkIDs) > 0 {
		if err := ix.vectors.Add(ctx, snap.chunkIDs, snap.vectors); err != nil {
			ix.logRestoreErr(snap.id, "re-add previous vectors", err)
		}
	}
}

// restoreLexical removes the new version's lexical entries and
// re-indexes the snapshotted chunks.
func (ix *Indexer) restoreLexical(ctx context.Context, snap *docSnapshot, newIDs []string) {
	if err := ix.lexical.Delete(ctx, newIDs); err != nil {
		ix.logRestoreErr(snap.id, "delete new lexical entries", err)
	}
	if len(snap.chunks) > 0 {
		if err := ix.lexical.Index(ctx, snap.chunks); err != nil {
			ix.logRestoreErr(snap.id, "re-index previous lexical entries", err)
		}
	}
}

// restoreMetadata puts the snapshotted metadata rows back after a
// partially applied swap.
func (ix *Indexer) restoreMetadata(ctx context.Context, snap *docSnapshot, newIDs []string) {
	if snap.doc == nil {
		if err := ix.metadata.DeleteChunks(ctx, newIDs); err != nil {
			ix.logRestoreErr(snap.id, "delete new chunk metadata", err)
		}
		if err := ix.metadata.DeleteDocument(ctx, snap.id); err != nil {
			ix.logRestoreErr(snap.id, "delete document row", err)
		}
		return
	}

	if extra := subtractIDs(newIDs, snap.chunkIDs); len(extra) > 0 {
		if err := ix.metadata.DeleteChunks(ctx, extra); err != nil {
			ix.logRestoreErr(snap.id, "delete new chunk metadata", err)
		}
	}
	if err := ix.metadata.SaveDocument(ctx, snap.doc); err != nil {
		ix.logRestoreErr(snap.id, "re-save document", err)
	}
	if err := ix.metadata.SaveChunks(ctx, snap.chunks); err != nil {
		ix.logRestoreErr(snap.id, "re-save chunks", err)
	}
}

func (ix *Indexer) logRestoreErr(documentID, step string, err error) {
	ix.logger.Error("restore after failed replace: "+step,
		slog.String("document_id", documentID),
		slog.String("error", err.Error()))
}

// subtractIDs returns the IDs in a that are not in b.
func subtractIDs(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	inB := make(map[string]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := inB[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Remove deletes a document and its chunks from every store. Returns
// false if the document was not indexed.
func (ix *Indexer) Remove(ctx context.Context, documentID string) (bool, error) {
	if documentID == "" {
		return false, enginerrors.New(enginerrors.ErrCodeInvalidInput, "document id must not be empty", nil)
	}

	lock := ix.docLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	hash, err := ix.metadata.GetDocumentHash(ctx, documentID)
	if err != nil {
		return false, enginerrors.New(enginerrors.ErrCodeMetadataFailed, "read document hash", err)
	}
	if hash == "" {
		return false, nil
	}

	chunkIDs, err := ix.metadata.ChunkIDsForDocument(ctx, documentID)
	if err != nil {
		return false, enginerrors.New(enginerrors.ErrCodeMetadataFailed, "list chunks", err)
	}

	if err := ix.deleteChunks(ctx, chunkIDs); err != nil {
		return false, err
	}
	if err := ix.metadata.DeleteDocument(ctx, documentID); err != nil {
		return false, enginerrors.New(enginerrors.ErrCodeMetadataFailed, "delete document", err)
	}

	ix.logger.Info("document removed",
		slog.String("document_id", documentID),
		slog.Int("chunks_removed", len(chunkIDs)))

	return true, nil
}

// deleteChunks removes chunk IDs from the vector and lexical stores.
func (ix *Indexer) deleteChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if err := ix.vectors.Delete(ctx, chunkIDs); err != nil {
		return enginerrors.New(enginerrors.ErrCodeIndexFailed, "delete old vectors", err)
	}
	if err := ix.lexical.Delete(ctx, chunkIDs); err != nil {
		return enginerrors.New(enginerrors.ErrCodeIndexFailed, "delete old lexical entries", err)
	}
	return nil
}
