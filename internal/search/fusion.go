package search

import (
	"sort"

	"github.com/finsightlab/recall/internal/store"
)

// DefaultSemanticWeight favors semantic similarity over exact term
// overlap for typical natural-language queries.
const DefaultSemanticWeight = 0.7

// Fusion combines semantic and lexical results with a weighted sum:
//
//	fused = semanticWeight*semantic + (1-semanticWeight)*lexical
//
// Semantic scores arrive already normalized to [0,1] by the vector
// store. Lexical scores are max-normalized to [0,1] per result set
// before fusion. Fused scores are not re-normalized afterwards, so a
// result can only reach 1.0 by scoring perfectly on both paths.
type Fusion struct {
	SemanticWeight float64
	LexicalWeight  float64
}

// NewFusion creates a fusion stage with the given semantic weight.
// Weights outside (0,1] fall back to the default split.
func NewFusion(semanticWeight float64) *Fusion {
	if semanticWeight <= 0 || semanticWeight > 1 {
		semanticWeight = DefaultSemanticWeight
	}
	return &Fusion{
		SemanticWeight: semanticWeight,
		LexicalWeight:  1 - semanticWeight,
	}
}

// Fuse merges the two result lists into scored candidates, sorted by
// fused score. A chunk found by only one path contributes zero for
// the missing component.
//
// Ordering is deterministic: Score (desc), then InBoth (true first),
// then LexicalScore (desc), then ChunkID (asc).
func (f *Fusion) Fuse(semantic []*store.VectorResult, lexical []*store.LexicalResult) []*Candidate {
	if len(semantic) == 0 && len(lexical) == 0 {
		return []*Candidate{}
	}

	byID := make(map[string]*Candidate, len(semantic)+len(lexical))

	for _, r := range semantic {
		c := f.getOrCreate(byID, r.ID)
		c.SemanticScore = float64(r.Score)
	}

	var maxLexical float64
	for _, r := range lexical {
		if r.Score > maxLexical {
			maxLexical = r.Score
		}
	}
	for _, r := range lexical {
		c := f.getOrCreate(byID, r.ChunkID)
		if maxLexical > 0 {
			c.LexicalScore = r.Score / maxLexical
		}
		c.MatchedTerms = r.MatchedTerms
		if c.SemanticScore > 0 {
			c.InBoth = true
		}
	}

	// When only one path ran, its score carries full weight so
	// single-path tiers are not capped below 1.0.
	semWeight, lexWeight := f.SemanticWeight, f.LexicalWeight
	if len(lexical) == 0 {
		semWeight, lexWeight = 1, 0
	} else if len(semantic) == 0 {
		semWeight, lexWeight = 0, 1
	}

	results := make([]*Candidate, 0, len(byID))
	for _, c := range byID {
		c.Score = semWeight*c.SemanticScore + lexWeight*c.LexicalScore
		results = append(results, c)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.InBoth != b.InBoth {
			return a.InBoth
		}
		if a.LexicalScore != b.LexicalScore {
			return a.LexicalScore > b.LexicalScore
		}
		return a.ChunkID < b.ChunkID
	})

	return results
}

func (f *Fusion) getOrCreate(byID map[string]*Candidate, chunkID string) *Candidate {
	if c, ok := byID[chunkID]; ok {
		return c
	}
	c := &Candidate{ChunkID: chunkID}
	byID[chunkID] = c
	return c
}
