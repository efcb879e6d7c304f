package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore implements VectorStore using the coder/hnsw pure Go graph.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	// ID mapping (string <-> uint64)
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// hnswMetadata stores ID mappings for persistence.
type hnswMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorStoreConfig
}

// NewHNSWStore creates a new HNSW-based vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Add inserts vectors with their IDs. An existing ID is updated via lazy
// deletion: the old graph node is orphaned rather than removed, which avoids
// a coder/hnsw issue when deleting the last node.
func (s *HNSWStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
	}

	return nil
}

// Search finds the k nearest neighbors to the query vector.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(normalized)
	}

	// Over-fetch to compensate for lazily deleted orphans still in the graph.
	orphans := s.graph.Len() - len(s.idMap)
	nodes := s.graph.Search(normalized, k+orphans)

	results := make([]*VectorResult, 0, k)
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			continue // orphaned by lazy deletion
		}

		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, &VectorResult{
			ID:       id,
			Distance: distance,
			Score:    distanceToScore(distance, s.config.Metric),
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Get returns the stored vectors for the given IDs, in order.
func (s *HNSWStore) Get(ctx context.Context, ids []string) ([][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	vectors := make([][]float32, len(ids))
	for i, id := range ids {
		key, exists := s.idMap[id]
		if !exists {
			return nil, fmt.Errorf("vector %q not found", id)
		}
		vec, ok := s.graph.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("vector %q missing from graph", id)
		}
		out := make([]float32, len(vec))
		copy(out, vec)
		vectors[i] = out
	}

	return vectors, nil
}

// Delete removes vectors by ID using lazy deletion: nodes stay in the graph
// but are dropped from the ID mappings and never surface in results.
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
	}

	return nil
}

// Contains reports whether an ID exists.
func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, exists := s.idMap[id]
	return exists
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Save persists the graph and ID mappings to disk using temp-file + rename.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	if err := s.saveMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}

	return nil
}

func (s *HNSWStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswMetadata{
		IDMap:   s.idMap,
		NextKey: s.nextKey,
		Config:  s.config,
	}

	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp file during cleanup", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load restores the graph and ID mappings from disk.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	return nil
}

func (s *HNSWStore) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode hnsw metadata: %w", err)
	}

	s.idMap = meta.IDMap
	s.keyMap = make(map[uint64]string, len(meta.IDMap))
	s.nextKey = meta.NextKey
	s.config = meta.Config
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}

	return nil
}

// Close releases resources.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// Verify interface implementation
var _ VectorStore = (*HNSWStore)(nil)

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance to a 0-1 similarity score.
// Cosine distance ranges 0-2; L2 ranges 0-infinity.
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
