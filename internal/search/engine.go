package search

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/finsightlab/recall/internal/embed"
	enginerrors "github.com/finsightlab/recall/internal/errors"
	"github.com/finsightlab/recall/internal/store"
)

// Engine runs the retrieval pipeline for a single query: embed, fan
// out to the enabled paths, fuse, enrich, optionally rerank.
type Engine struct {
	vectors  store.VectorStore
	lexical  store.LexicalIndex
	metadata store.MetadataStore
	embedder embed.Embedder
	fusion   *Fusion
	reranker *Reranker
	logger   *slog.Logger
}

// NewEngine wires the retrieval pipeline.
func NewEngine(
	vectors store.VectorStore,
	lexical store.LexicalIndex,
	metadata store.MetadataStore,
	embedder embed.Embedder,
	fusion *Fusion,
	reranker *Reranker,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		vectors:  vectors,
		lexical:  lexical,
		metadata: metadata,
		embedder: embedder,
		fusion:   fusion,
		reranker: reranker,
		logger:   logger,
	}
}

// Search executes the plan for a query and returns enriched, ranked
// candidates, truncated to the plan's depth. The second return is the
// fused score of every pooled candidate before truncation, for
// confidence estimation. A failure on any enabled path fails the
// whole query.
func (e *Engine) Search(ctx context.Context, query string, plan Plan) ([]*Candidate, []float64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil, enginerrors.New(enginerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	var (
		semantic []*store.VectorResult
		lexical  []*store.LexicalResult
	)

	g, gctx := errgroup.WithContext(ctx)

	var semanticErr error
	g.Go(func() error {
		vec, err := e.embedder.Embed(gctx, query)
		if err != nil {
			semanticErr = err
			return nil
		}
		results, err := e.vectors.Search(gctx, vec, plan.Depth)
		if err != nil {
			semanticErr = err
			return nil
		}
		semantic = results
		return nil
	})

	var lexicalErr error
	if plan.UseHybrid {
		g.Go(func() error {
			results, err := e.lexical.Search(gctx, query, plan.Depth)
			if err != nil {
				lexicalErr = err
				return nil
			}
			lexical = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	// A dead retrieval path is surfaced, not papered over with the
	// other path's results.
	if semanticErr != nil {
		return nil, nil, enginerrors.New(enginerrors.ErrCodeSearchFailed, "semantic retrieval failed", semanticErr)
	}
	if lexicalErr != nil {
		return nil, nil, enginerrors.New(enginerrors.ErrCodeSearchFailed, "lexical retrieval failed", lexicalErr)
	}

	candidates := e.fusion.Fuse(semantic, lexical)

	pooledScores := make([]float64, len(candidates))
	for i, c := range candidates {
		pooledScores[i] = c.Score
	}
	if plan.Depth > 0 && len(candidates) > plan.Depth {
		candidates = candidates[:plan.Depth]
	}

	candidates, err := e.enrich(ctx, candidates)
	if err != nil {
		return nil, nil, err
	}

	if plan.UseRerank {
		candidates = e.reranker.Rerank(query, candidates)
	}

	return candidates, pooledScores, nil
}

// enrich fills in chunk content and document attribution from the
// metadata store. Candidates whose chunk has vanished are dropped
// rather than returned empty.
func (e *Engine) enrich(ctx context.Context, candidates []*Candidate) ([]*Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ChunkID
	}

	chunks, err := e.metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, enginerrors.New(enginerrors.ErrCodeMetadataFailed, "load chunk metadata", err)
	}

	byID := make(map[string]*store.Chunk, len(chunks))
	for _, ch := range chunks {
		byID[ch.ID] = ch
	}

	docs := make(map[string]*store.Document)

	kept := candidates[:0]
	for _, c := range candidates {
		ch, ok := byID[c.ChunkID]
		if !ok {
			e.logger.Warn("dropping result with missing chunk metadata",
				slog.String("chunk_id", c.ChunkID))
			continue
		}
		c.DocumentID = ch.DocumentID
		c.Content = ch.Content
		c.Heading = ch.Heading

		doc, ok := docs[ch.DocumentID]
		if !ok {
			doc, err = e.metadata.GetDocument(ctx, ch.DocumentID)
			if err != nil {
				return nil, enginerrors.New(enginerrors.ErrCodeMetadataFailed, "load document metadata", err)
			}
			docs[ch.DocumentID] = doc
		}
		if doc != nil {
			c.Title = doc.Title
			c.Source = doc.Source
			c.Metadata = doc.Metadata
		}

		kept = append(kept, c)
	}

	return kept, nil
}
