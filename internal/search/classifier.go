package search

import (
	"regexp"
	"strings"

	"github.com/finsightlab/recall/internal/config"
)

// Compiled regex patterns for query classification.
// Compiled at package init for performance.
var (
	// Comparative and superlative phrasing
	comparativePattern = regexp.MustCompile(`(?i)\b(better|best|worse|worst|versus|vs\.?|compare[ds]?|comparison|difference|differ|most|least|highest|lowest|largest|smallest|fastest|cheapest|safest|greatest)\b`)

	// Analytical question starters
	analyticalPattern = regexp.MustCompile(`(?i)^(how|why|explain|describe|walk me through)\b`)

	// Multi-clause connectors
	multiClausePattern = regexp.MustCompile(`(?i)(,|;|\band\b|\bor\b|\bbut\b|\bwhile\b|\bwhereas\b)`)

	// Constraint phrasing ("with at most", "under", "excluding")
	constraintPattern = regexp.MustCompile(`(?i)\b(at most|at least|under|over|within|without|excluding|except|only if|given)\b`)
)

// Classification thresholds.
const (
	simpleMaxTokens  = 6
	complexMinTokens = 12
)

// Classifier buckets queries into complexity tiers using deterministic
// pattern heuristics, then maps each tier to a retrieval plan.
type Classifier struct {
	simpleDepth  int
	mediumDepth  int
	complexDepth int
}

// NewClassifier creates a classifier with tier depths from config.
func NewClassifier(cfg config.SearchConfig) *Classifier {
	return &Classifier{
		simpleDepth:  cfg.SimpleDepth,
		mediumDepth:  cfg.MediumDepth,
		complexDepth: cfg.ComplexDepth,
	}
}

// Classify determines the retrieval plan for a query. The same query
// always yields the same plan.
func (c *Classifier) Classify(query string) Plan {
	tier := c.classifyTier(strings.TrimSpace(query))

	switch tier {
	case TierSimple:
		return Plan{Tier: TierSimple, Depth: c.simpleDepth, UseHybrid: false, UseRerank: false}
	case TierComplex:
		return Plan{Tier: TierComplex, Depth: c.complexDepth, UseHybrid: true, UseRerank: true}
	default:
		return Plan{Tier: TierMedium, Depth: c.mediumDepth, UseHybrid: true, UseRerank: false}
	}
}

func (c *Classifier) classifyTier(query string) Tier {
	if query == "" {
		return TierSimple
	}

	tokens := len(strings.Fields(query))

	// Comparative or multi-clause queries need deep hybrid retrieval
	// regardless of length.
	clauses := multiClausePattern.FindAllString(query, -1)
	if comparativePattern.MatchString(query) && (len(clauses) > 0 || tokens >= simpleMaxTokens) {
		return TierComplex
	}
	if len(clauses) >= 2 {
		return TierComplex
	}
	if constraintPattern.MatchString(query) && tokens >= simpleMaxTokens {
		return TierComplex
	}
	if tokens >= complexMinTokens {
		return TierComplex
	}

	// Short queries without analytical phrasing are simple lookups.
	if tokens < simpleMaxTokens && !analyticalPattern.MatchString(query) {
		return TierSimple
	}

	return TierMedium
}
