package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder generates embeddings using a hash-based approach.
// Works without external dependencies (no network, no model download).
// Provides deterministic, fast embeddings with reduced semantic quality.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// proseStopWords contains common English function words to filter out
// before hashing, so embeddings are dominated by content-bearing terms.
var proseStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "of": true, "to": true, "in": true, "on": true,
	"at": true, "for": true, "with": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "it": true,
	"its": true, "this": true, "that": true, "as": true, "by": true,
}

// Weights for vector generation
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// embedTokenRegex matches alphanumeric sequences, keeping hyphenated
// compounds like "cash-secured" intact.
var embedTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*`)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	vector := e.generateVector(trimmed)

	return normalizeVector(vector), nil
}

// generateVector creates a hash-based vector from text.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	tokens := embedTokenize(text)
	tokens = filterProseStopWords(tokens)

	for _, token := range tokens {
		index := hashToIndex(token, StaticDimensions)
		vector[index] += tokenWeight
	}

	normalized := normalizeForNgrams(text)
	ngrams := extractNgrams(normalized, ngramSize)
	for _, ngram := range ngrams {
		index := hashToIndex(ngram, StaticDimensions)
		vector[index] += ngramWeight
	}

	return vector
}

// embedTokenize splits text into lowercase tokens. Hyphenated
// compounds contribute both the full compound and its parts, so a
// query for "cash-secured" also overlaps chunks that spell it out.
func embedTokenize(text string) []string {
	var tokens []string

	words := embedTokenRegex.FindAllString(text, -1)
	for _, word := range words {
		lower := strings.ToLower(word)
		tokens = append(tokens, lower)
		if strings.Contains(lower, "-") {
			for _, part := range strings.Split(lower, "-") {
				if part != "" {
					tokens = append(tokens, part)
				}
			}
		}
	}

	return tokens
}

// filterProseStopWords removes common English function words.
func filterProseStopWords(tokens []string) []string {
	var filtered []string
	for _, t := range tokens {
		if !proseStopWords[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// normalizeForNgrams prepares text for n-gram extraction.
func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// extractNgrams extracts n-character sliding windows.
func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}

	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

// hashToIndex uses FNV-64 to map a string to an index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}

	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static"
}

// Available checks if the embedder is ready (always true for static).
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
