// Package store provides the persistence layer for indexed content:
// vector storage (HNSW), the lexical index (Bleve), and chunk/document
// metadata (SQLite).
package store

import (
	"context"
	"fmt"
	"time"
)

// Document is a named unit of source content handed to the indexer.
type Document struct {
	ID          string            // Stable source identifier
	Title       string            // Display title
	Source      string            // Where the content came from (url, path, connector name)
	Content     string            // Full body text
	ContentHash string            // SHA256 of Content, set by the indexer
	Metadata    map[string]string // Optional key-value tags
	IndexedAt   time.Time
}

// Chunk is the atomic retrievable unit derived from exactly one document.
type Chunk struct {
	ID          string // documentID + ":" + Seq
	DocumentID  string
	Seq         int    // Position within the document, 0-indexed
	Content     string // Chunk text, overlap prefix included
	Overlap     string // Trailing context carried over from the previous chunk
	Heading     string // Section heading if one was detected
	ContentHash string // SHA256 of Content, for dedup
	CreatedAt   time.Time
}

// ChunkID derives the stable chunk identifier from document id and sequence.
func ChunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s:%d", documentID, seq)
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Cosine distance, 0-2, lower is more similar
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the embedding dimension, fixed by the embedding provider.
	Dimensions int

	// Metric is the distance metric: "cos" (default) or "l2".
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides nearest-neighbor lookup over chunk embeddings.
// Implementations must support concurrent reads.
type VectorStore interface {
	// Add inserts vectors with their IDs. An existing ID is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds the k nearest neighbors to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Get returns the stored vectors for the given IDs, in order.
	// A missing ID is an error.
	Get(ctx context.Context, ids []string) ([][]float32, error)

	// Delete removes vectors by ID. Missing IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Contains reports whether an ID exists.
	Contains(id string) bool

	// Count returns the number of stored vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// LexicalResult is a single keyword-search hit.
type LexicalResult struct {
	ChunkID      string
	Score        float64 // Raw BM25 score, unbounded
	MatchedTerms []string
}

// LexicalConfig configures the lexical index.
type LexicalConfig struct {
	// StopWords are filtered out during analysis.
	StopWords []string

	// MinTokenLength is the minimum token length to index.
	MinTokenLength int
}

// DefaultLexicalConfig returns the default lexical index configuration.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// LexicalIndex provides frequency-weighted keyword search over chunk text.
// Implementations must support concurrent reads.
type LexicalIndex interface {
	// Index adds chunks to the index.
	Index(ctx context.Context, chunks []*Chunk) error

	// Search returns chunks matching the query, best first.
	Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error)

	// Delete removes chunks from the index. Missing IDs are ignored.
	Delete(ctx context.Context, chunkIDs []string) error

	// Contains reports whether a chunk ID exists in the index.
	Contains(chunkID string) (bool, error)

	// Count returns the number of indexed chunks.
	Count() int

	Close() error
}

// MetadataStore persists document and chunk metadata.
// It is the source of truth for what is indexed.
type MetadataStore interface {
	// Document operations
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetDocumentHash(ctx context.Context, id string) (string, error)
	DeleteDocument(ctx context.Context, id string) error

	// Chunk operations
	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	ChunkIDsForDocument(ctx context.Context, documentID string) ([]string, error)
	DeleteChunks(ctx context.Context, ids []string) error

	// Counts for stats reporting
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)

	Close() error
}

// ErrDimensionMismatch indicates a vector dimension mismatch between the
// stored index and the active embedder.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
