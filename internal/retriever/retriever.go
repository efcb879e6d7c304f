// Package retriever is the top-level facade: it owns the stores and
// runs the full query pipeline of cache lookup, complexity
// classification, hybrid search, reranking, confidence scoring, and
// metrics.
package retriever

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/finsightlab/recall/internal/cache"
	"github.com/finsightlab/recall/internal/chunk"
	"github.com/finsightlab/recall/internal/config"
	"github.com/finsightlab/recall/internal/embed"
	enginerrors "github.com/finsightlab/recall/internal/errors"
	"github.com/finsightlab/recall/internal/index"
	"github.com/finsightlab/recall/internal/search"
	"github.com/finsightlab/recall/internal/store"
	"github.com/finsightlab/recall/internal/telemetry"
)

// QueryRequest describes a single retrieval query.
type QueryRequest struct {
	Query        string
	Filters      map[string]string // Document metadata equality filters
	TopK         int               // 0 uses the configured default
	ForceRefresh bool              // Bypass the cache lookup, recompute, write back
}

// RetrievedDocument is one ranked result.
type RetrievedDocument struct {
	ChunkID       string            `json:"chunk_id"`
	DocumentID    string            `json:"document_id"`
	Title         string            `json:"title"`
	Source        string            `json:"source"`
	Heading       string            `json:"heading,omitempty"`
	Content       string            `json:"content"`
	Score         float64           `json:"score"`
	SemanticScore float64           `json:"semantic_score"`
	LexicalScore  float64           `json:"lexical_score"`
	MatchedTerms  []string          `json:"matched_terms,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// QueryResult is the full answer to one query.
type QueryResult struct {
	Results       []RetrievedDocument `json:"results"`
	Confidence    float64             `json:"confidence"`
	LowConfidence bool                `json:"low_confidence"`
	Tier          search.Tier         `json:"tier"`
	CacheStatus   cache.Status        `json:"cache_status"`
	Took          time.Duration       `json:"took"`
}

// queryPayload is the cacheable part of a result; cache status and
// latency are per-call. Cached payloads are immutable: readers get a
// copy of the results slice.
type queryPayload struct {
	Results       []RetrievedDocument
	Confidence    float64
	LowConfidence bool
	Tier          search.Tier
}

// Retriever wires every pipeline stage together.
type Retriever struct {
	cfg        *config.Config
	classifier *search.Classifier
	engine     *search.Engine
	scorer     *search.ConfidenceScorer
	cache      *cache.Cache[*queryPayload]
	tracker    *telemetry.Tracker
	indexer    *index.Indexer

	embedder embed.Embedder
	vectors  store.VectorStore
	lexical  store.LexicalIndex
	metadata store.MetadataStore

	vectorPath string
	logger     *slog.Logger
}

// Open builds a retriever backed by stores under cfg.DataDir. An
// empty DataDir keeps everything in memory.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Retriever, error) {
	if logger == nil {
		logger = slog.Default()
	}

	embedder, err := embed.NewFromConfig(ctx, cfg.Embeddings, logger)
	if err != nil {
		return nil, err
	}

	var vectorPath, lexicalPath, metadataPath string
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, enginerrors.New(enginerrors.ErrCodeIndexUnavailable, "create data directory", err)
		}
		vectorPath = filepath.Join(cfg.DataDir, "vectors.hnsw")
		lexicalPath = filepath.Join(cfg.DataDir, "lexical.bleve")
		metadataPath = filepath.Join(cfg.DataDir, "metadata.db")
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		return nil, err
	}
	if vectorPath != "" {
		if err := vectors.Load(vectorPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, enginerrors.New(enginerrors.ErrCodeIndexUnavailable, "load vector index", err)
		}
	}

	lexical, err := store.NewBleveLexicalIndex(lexicalPath, store.DefaultLexicalConfig())
	if err != nil {
		return nil, enginerrors.New(enginerrors.ErrCodeIndexUnavailable, "open lexical index", err)
	}

	metadata, err := store.NewSQLiteMetadataStore(metadataPath)
	if err != nil {
		return nil, enginerrors.New(enginerrors.ErrCodeIndexUnavailable, "open metadata store", err)
	}

	return New(cfg, embedder, vectors, lexical, metadata, vectorPath, logger)
}

// New assembles a retriever from explicit stores. Used by Open and by
// tests that inject in-memory components.
func New(
	cfg *config.Config,
	embedder embed.Embedder,
	vectors store.VectorStore,
	lexical store.LexicalIndex,
	metadata store.MetadataStore,
	vectorPath string,
	logger *slog.Logger,
) (*Retriever, error) {
	if logger == nil {
		logger = slog.Default()
	}

	resultCache, err := cache.New[*queryPayload](cfg.Cache.MaxEntries, cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}

	engine := search.NewEngine(
		vectors, lexical, metadata, embedder,
		search.NewFusion(cfg.Search.SemanticWeight),
		search.NewReranker(cfg.Rerank),
		logger,
	)

	return &Retriever{
		cfg:        cfg,
		classifier: search.NewClassifier(cfg.Search),
		engine:     engine,
		scorer:     search.NewConfidenceScorer(cfg.Confidence),
		cache:      resultCache,
		tracker:    telemetry.NewTracker(),
		indexer: index.NewIndexer(
			chunk.NewChunker(cfg.Chunking),
			embedder, vectors, lexical, metadata, logger,
		),
		embedder:   embedder,
		vectors:    vectors,
		lexical:    lexical,
		metadata:   metadata,
		vectorPath: vectorPath,
		logger:     logger,
	}, nil
}

// Query runs the full pipeline for one request.
func (r *Retriever) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	start := time.Now()
	queryID := uuid.NewString()

	if req.Query == "" {
		return nil, enginerrors.New(enginerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = r.cfg.Search.DefaultTopK
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Search.Timeout)
	defer cancel()

	key := cache.Key{Query: req.Query, Filters: req.Filters, TopK: topK}
	forceRefresh := req.ForceRefresh || !r.cfg.Cache.Enabled

	payload, status, err := r.cache.GetOrCompute(ctx, key, forceRefresh,
		func(ctx context.Context) (*queryPayload, error) {
			return r.executeQuery(ctx, req.Query, req.Filters, topK)
		})

	took := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = enginerrors.New(enginerrors.ErrCodeQueryTimeout, "query timed out", err)
		}
		r.tracker.RecordFailure(took)
		r.logger.Error("query failed",
			slog.String("query_id", queryID),
			slog.String("error", err.Error()))
		return nil, err
	}

	r.tracker.RecordQuery(payload.Confidence, payload.LowConfidence, took, status == cache.StatusHit)
	r.logger.Info("query served",
		slog.String("query_id", queryID),
		slog.String("tier", string(payload.Tier)),
		slog.String("cache", string(status)),
		slog.Int("results", len(payload.Results)),
		slog.Float64("confidence", payload.Confidence),
		slog.Duration("took", took))

	results := make([]RetrievedDocument, len(payload.Results))
	copy(results, payload.Results)

	return &QueryResult{
		Results:       results,
		Confidence:    payload.Confidence,
		LowConfidence: payload.LowConfidence,
		Tier:          payload.Tier,
		CacheStatus:   status,
		Took:          took,
	}, nil
}

// executeQuery is the uncached pipeline: classify, search, filter,
// truncate, score.
func (r *Retriever) executeQuery(ctx context.Context, query string, filters map[string]string, topK int) (*queryPayload, error) {
	plan := r.classifier.Classify(query)

	candidates, pooledScores, err := r.engine.Search(ctx, query, plan)
	if err != nil {
		return nil, err
	}

	if len(filters) > 0 {
		kept := candidates[:0]
		for _, c := range candidates {
			if matchesFilters(c.Metadata, filters) {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	confidence, low := r.scorer.Score(candidates, pooledScores, plan.Depth)

	results := make([]RetrievedDocument, len(candidates))
	for i, c := range candidates {
		results[i] = RetrievedDocument{
			ChunkID:       c.ChunkID,
			DocumentID:    c.DocumentID,
			Title:         c.Title,
			Source:        c.Source,
			Heading:       c.Heading,
			Content:       c.Content,
			Score:         c.Score,
			SemanticScore: c.SemanticScore,
			LexicalScore:  c.LexicalScore,
			MatchedTerms:  c.MatchedTerms,
			Metadata:      c.Metadata,
		}
	}

	return &queryPayload{
		Results:       results,
		Confidence:    confidence,
		LowConfidence: low,
		Tier:          plan.Tier,
	}, nil
}

func matchesFilters(metadata, filters map[string]string) bool {
	for k, want := range filters {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

// Index writes a document and invalidates cached results.
func (r *Retriever) Index(ctx context.Context, doc *store.Document) (*index.Result, error) {
	result, err := r.indexer.Index(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !result.Unchanged {
		r.cache.Clear("")
	}
	return result, nil
}

// Remove deletes a document and invalidates cached results.
func (r *Retriever) Remove(ctx context.Context, documentID string) (bool, error) {
	found, err := r.indexer.Remove(ctx, documentID)
	if err != nil {
		return false, err
	}
	if found {
		r.cache.Clear("")
	}
	return found, nil
}

// ClearCache removes cached results matching pattern; empty pattern
// clears everything. Returns the number of entries removed.
func (r *Retriever) ClearCache(pattern string) int {
	return r.cache.Clear(pattern)
}

// MetricsSummary returns aggregate query metrics.
func (r *Retriever) MetricsSummary() telemetry.Summary {
	return r.tracker.Summary()
}

// Stats reports corpus size.
func (r *Retriever) Stats(ctx context.Context) (documents, chunks int, err error) {
	documents, err = r.metadata.CountDocuments(ctx)
	if err != nil {
		return 0, 0, err
	}
	chunks, err = r.metadata.CountChunks(ctx)
	if err != nil {
		return 0, 0, err
	}
	return documents, chunks, nil
}

// Close persists the vector index when backed by disk and releases
// every store.
func (r *Retriever) Close() error {
	var firstErr error

	if r.vectorPath != "" {
		if err := r.vectors.Save(r.vectorPath); err != nil {
			firstErr = err
		}
	}
	for _, c := range []interface{ Close() error }{r.vectors, r.lexical, r.metadata, r.embedder} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
