package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finsightlab/recall/internal/config"
)

func newTestScorer() *ConfidenceScorer {
	return NewConfidenceScorer(config.ConfidenceConfig{
		LowThreshold:     0.6,
		StrongScoreFloor: 0.5,
	})
}

// scoresOf flattens candidates into a pooled score list for the common
// case where nothing was truncated away.
func scoresOf(candidates []*Candidate) []float64 {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.Score
	}
	return scores
}

func TestConfidenceScorer_EmptyResultsAreZeroAndLow(t *testing.T) {
	s := newTestScorer()

	confidence, low := s.Score(nil, nil, 5)

	assert.Zero(t, confidence)
	assert.True(t, low)
}

func TestConfidenceScorer_StaysWithinBounds(t *testing.T) {
	s := newTestScorer()

	cases := [][]*Candidate{
		{{Score: 1.0}, {Score: 0.0}, {Score: 0.0}},
		{{Score: 1.0}, {Score: 1.0}, {Score: 1.0}},
		{{Score: 0.01}},
		{{Score: 0.9}, {Score: 0.89}, {Score: 0.88}, {Score: 0.87}, {Score: 0.86}},
	}

	for _, candidates := range cases {
		confidence, _ := s.Score(candidates, scoresOf(candidates), len(candidates))
		assert.GreaterOrEqual(t, confidence, 0.0)
		assert.LessOrEqual(t, confidence, 1.0)
	}
}

func TestConfidenceScorer_ClearWinnerScoresHigh(t *testing.T) {
	s := newTestScorer()

	candidates := []*Candidate{
		{Score: 0.85},
		{Score: 0.40},
		{Score: 0.35},
	}
	confidence, low := s.Score(candidates, scoresOf(candidates), 3)

	// 0.5*0.85 + 0.3*1.0 + 0.2*(1/3) = 0.7917
	assert.InDelta(t, 0.7917, confidence, 0.001)
	assert.False(t, low)
}

func TestConfidenceScorer_TightClusterScoresLower(t *testing.T) {
	s := newTestScorer()

	clusteredCands := []*Candidate{
		{Score: 0.45},
		{Score: 0.44},
		{Score: 0.43},
	}
	clustered, _ := s.Score(clusteredCands, scoresOf(clusteredCands), 3)

	separatedCands := []*Candidate{
		{Score: 0.45},
		{Score: 0.20},
		{Score: 0.15},
	}
	separated, _ := s.Score(separatedCands, scoresOf(separatedCands), 3)

	assert.Less(t, clustered, separated,
		"indistinguishable results should lower confidence")
}

func TestConfidenceScorer_LowScoresFlaggedLow(t *testing.T) {
	s := newTestScorer()

	candidates := []*Candidate{
		{Score: 0.2},
		{Score: 0.18},
		{Score: 0.15},
	}
	confidence, low := s.Score(candidates, scoresOf(candidates), 3)

	assert.Less(t, confidence, 0.6)
	assert.True(t, low)
}

func TestConfidenceScorer_SingleResultNotDoublePenalized(t *testing.T) {
	s := newTestScorer()

	confidence, low := s.Score([]*Candidate{{Score: 0.9}}, []float64{0.9}, 1)

	// 0.5*0.9 + 0.3*1.0 + 0.2*(1/3) = 0.8167
	assert.InDelta(t, 0.8167, confidence, 0.001)
	assert.False(t, low)
}

func TestConfidenceScorer_ShallowDepthAppliesPenalty(t *testing.T) {
	s := newTestScorer()

	// Five pooled candidates clear the strong-score floor but the
	// plan only kept the top two, so the tier was likely too shallow.
	candidates := []*Candidate{{Score: 0.9}, {Score: 0.7}}
	pooled := []float64{0.9, 0.7, 0.65, 0.6, 0.55, 0.3}

	deep, _ := s.Score(candidates, pooled, 5)
	shallow, _ := s.Score(candidates, pooled, 2)

	assert.Less(t, shallow, deep,
		"more floor-clearing candidates than the tier's depth lowers confidence")
	assert.InDelta(t, deep*0.9, shallow, 1e-9)
}
