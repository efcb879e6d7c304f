package search

import (
	"math"

	"github.com/finsightlab/recall/internal/config"
)

// Confidence component weights. Top score dominates, separation from
// the runner-up signals discrimination, and the count of strong
// results signals corroboration.
const (
	topScoreWeight    = 0.5
	separationWeight  = 0.3
	supportWeight     = 0.2
	supportSaturation = 3
	underFetchFactor  = 0.9
)

// ConfidenceScorer estimates how trustworthy a result set is, on a
// [0,1] scale. Purely arithmetic over the fused scores.
type ConfidenceScorer struct {
	lowThreshold     float64
	strongScoreFloor float64
}

// NewConfidenceScorer creates a scorer from config.
func NewConfidenceScorer(cfg config.ConfidenceConfig) *ConfidenceScorer {
	return &ConfidenceScorer{
		lowThreshold:     cfg.LowThreshold,
		strongScoreFloor: cfg.StrongScoreFloor,
	}
}

// Score computes the confidence for a ranked result set. pooledScores
// holds the fused score of every candidate the search pooled before
// truncating to depth; when more pooled candidates clear the strong
// floor than depth could return, the retrieval was too shallow and a
// penalty applies. The second return is true when confidence falls
// below the low threshold.
func (s *ConfidenceScorer) Score(candidates []*Candidate, pooledScores []float64, depth int) (float64, bool) {
	if len(candidates) == 0 {
		return 0, true
	}

	top := candidates[0].Score

	// A single result has nothing to separate from; treat it as
	// fully separated rather than penalizing sparse corpora twice.
	separation := 1.0
	if len(candidates) > 1 {
		gap := top - candidates[1].Score
		separation = math.Min(1, gap*10)
	}

	strong := 0
	for _, score := range pooledScores {
		if score >= s.strongScoreFloor {
			strong++
		}
	}
	support := math.Min(1, float64(strong)/supportSaturation)

	confidence := topScoreWeight*top + separationWeight*separation + supportWeight*support

	if depth > 0 && strong > depth {
		confidence *= underFetchFactor
	}

	confidence = math.Max(0, math.Min(1, confidence))
	return confidence, confidence < s.lowThreshold
}

// LowThreshold exposes the configured low-confidence cutoff.
func (s *ConfidenceScorer) LowThreshold() float64 {
	return s.lowThreshold
}
