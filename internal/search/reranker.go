package search

import (
	"sort"
	"strings"

	"github.com/finsightlab/recall/internal/config"
)

// Reranker applies deterministic multiplicative adjustments on top of
// fused scores, then re-sorts. No model calls, no randomness.
type Reranker struct {
	exactPhraseBoost  float64
	headingBoost      float64
	overlongPenalty   float64
	overlongThreshold int
}

// NewReranker creates a reranker from config.
func NewReranker(cfg config.RerankConfig) *Reranker {
	return &Reranker{
		exactPhraseBoost:  cfg.ExactPhraseBoost,
		headingBoost:      cfg.HeadingBoost,
		overlongPenalty:   cfg.OverlongPenalty,
		overlongThreshold: cfg.OverlongThreshold,
	}
}

// Rerank adjusts candidate scores in place and re-sorts with the same
// tie-break order as fusion. The input slice is returned for chaining.
func (r *Reranker) Rerank(query string, candidates []*Candidate) []*Candidate {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTerms := strings.Fields(queryLower)

	for _, c := range candidates {
		factor := 1.0

		if queryLower != "" && strings.Contains(strings.ToLower(c.Content), queryLower) {
			factor *= r.exactPhraseBoost
		}
		if c.Heading != "" && headingMatches(c.Heading, queryTerms) {
			factor *= r.headingBoost
		}
		if r.overlongThreshold > 0 && len(c.Content) > r.overlongThreshold {
			factor *= r.overlongPenalty
		}

		c.Score *= factor
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
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

	return candidates
}

// headingMatches reports whether any query term appears in the
// heading.
func headingMatches(heading string, queryTerms []string) bool {
	headingLower := strings.ToLower(heading)
	for _, term := range queryTerms {
		if len(term) < 3 {
			continue
		}
		if strings.Contains(headingLower, term) {
			return true
		}
	}
	return false
}
