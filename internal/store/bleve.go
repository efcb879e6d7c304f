package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// TextTokenizerName is the name of the custom prose tokenizer.
	TextTokenizerName = "text_tokenizer"

	// TextStopFilterName is the name of the custom stop word filter.
	TextStopFilterName = "text_stop"

	// TextAnalyzerName is the name of the custom prose analyzer.
	TextAnalyzerName = "text_analyzer"
)

func init() {
	registry.RegisterTokenizer(TextTokenizerName, textTokenizerConstructor)
	registry.RegisterTokenFilter(TextStopFilterName, textStopFilterConstructor)
}

// BleveLexicalIndex wraps Bleve v2 for frequency-weighted keyword search.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config LexicalConfig
	closed bool
}

// bleveChunkDoc is the document structure handed to Bleve.
type bleveChunkDoc struct {
	Content string `json:"content"`
	Heading string `json:"heading"`
}

// NewBleveLexicalIndex creates a new lexical index.
// If path is empty, the index lives in memory (used by tests).
func NewBleveLexicalIndex(path string, config LexicalConfig) (*BleveLexicalIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create/open index: %w", err)
	}

	return &BleveLexicalIndex{
		index:  idx,
		path:   path,
		config: config,
	}, nil
}

// createIndexMapping builds the Bleve mapping with the prose analyzer.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": TextTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			TextStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = TextAnalyzerName
	return indexMapping, nil
}

// Index adds chunks to the index in a single batch.
func (b *BleveLexicalIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := bleveChunkDoc{Content: c.Content, Heading: c.Heading}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}

	return nil
}

// Search returns chunks matching the query, scored by term-frequency weighting.
func (b *BleveLexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]*LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*LexicalResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true // for matched terms

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{
			ChunkID:      hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	return results, nil
}

// Delete removes chunks from the index.
func (b *BleveLexicalIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	return nil
}

// Contains reports whether a chunk ID exists in the index.
func (b *BleveLexicalIndex) Contains(chunkID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("index is closed")
	}

	doc, err := b.index.Document(chunkID)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// Count returns the number of indexed chunks.
func (b *BleveLexicalIndex) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	count, _ := b.index.DocCount()
	return int(count)
}

// Close closes the index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// extractMatchedTerms extracts matched terms from a search hit.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "content" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

// Verify interface implementation
var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// textTokenizerConstructor creates the prose tokenizer for Bleve.
func textTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveTextTokenizer{}, nil
}

// bleveTextTokenizer implements analysis.Tokenizer using TokenizeText.
type bleveTextTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveTextTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeText(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// textStopFilterConstructor creates the stop word filter for Bleve.
func textStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveTextStopFilter{
		stopWords: BuildStopWordMap(DefaultStopWords),
	}, nil
}

// bleveTextStopFilter implements analysis.TokenFilter for English stop words.
type bleveTextStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveTextStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
