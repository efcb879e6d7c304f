// Package search provides hybrid retrieval combining lexical and
// semantic search, with complexity-adaptive depth, score fusion,
// deterministic reranking, and confidence estimation.
package search

// Tier is the complexity classification of a query.
type Tier string

const (
	// TierSimple covers short factual lookups served by semantic
	// search alone at shallow depth.
	TierSimple Tier = "simple"

	// TierMedium covers typical questions served by hybrid search.
	TierMedium Tier = "medium"

	// TierComplex covers comparative or multi-clause queries served
	// by deep hybrid search plus reranking.
	TierComplex Tier = "complex"
)

// Plan is the retrieval strategy chosen for a query.
type Plan struct {
	Tier      Tier
	Depth     int  // Candidates fetched per retrieval path
	UseHybrid bool // Lexical path enabled alongside semantic
	UseRerank bool // Deterministic reranking pass enabled
}

// Candidate is a single result flowing through the retrieval
// pipeline. Scores are filled in stage by stage.
type Candidate struct {
	ChunkID       string
	DocumentID    string
	Content       string
	Heading       string
	Title         string
	Source        string
	Metadata      map[string]string
	SemanticScore float64 // Normalized semantic similarity in [0,1], 0 if absent
	LexicalScore  float64 // Max-normalized lexical score in [0,1], 0 if absent
	Score         float64 // Fused (and possibly reranked) score
	InBoth        bool    // Present in both retrieval paths
	MatchedTerms  []string
}
