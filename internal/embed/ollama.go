package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Ollama defaults
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"

	ollamaConnectTimeout = 5 * time.Second
	ollamaPoolSize       = 4
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration

	// SkipHealthCheck bypasses the startup availability check (tests).
	SkipHealthCheck bool
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaModelListResponse struct {
	Models []ollamaModelInfo `json:"models"`
}

type ollamaModelInfo struct {
	Name string `json:"name"`
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates a new Ollama embedder and verifies the
// configured model is present on the server.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        ollamaPoolSize,
		MaxIdleConnsPerHost: ollamaPoolSize,
		IdleConnTimeout:     10 * time.Second,
	}

	// Timeouts are applied per request via context so a cold model
	// load does not count against subsequent warm calls.
	client := &http.Client{Transport: transport}

	e := &OllamaEmbedder{
		client:    client,
		transport: transport,
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		if err := e.checkModel(checkCtx); err != nil {
			transport.CloseIdleConnections()
			return nil, err
		}
	}

	return e, nil
}

// checkModel verifies the configured model is available on the server.
func (e *OllamaEmbedder) checkModel(ctx context.Context) error {
	url := e.config.Host + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create model list request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable at %s: %w", e.config.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama model list returned status %d", resp.StatusCode)
	}

	var list ollamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("decode model list: %w", err)
	}

	for _, m := range list.Models {
		if m.Name == e.modelName || m.Name == e.modelName+":latest" {
			return nil
		}
	}
	return fmt.Errorf("model %q not found on ollama server", e.modelName)
}

// Embed generates embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.doEmbed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts, batching
// requests to keep payloads bounded.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.doEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(vectors))
		}
		results = append(results, vectors...)
	}

	return results, nil
}

// doEmbed issues a single /api/embed request. input is a string or
// []string per the Ollama API.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, input any) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	url := e.config.Host + "/api/embed"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(msg))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	vectors := make([][]float32, len(parsed.Embeddings))
	for i, emb := range parsed.Embeddings {
		v := make([]float32, len(emb))
		for j, val := range emb {
			v[j] = float32(val)
		}
		if e.dims > 0 && len(v) != e.dims {
			return nil, fmt.Errorf("embedding dimension %d does not match configured %d", len(v), e.dims)
		}
		vectors[i] = normalizeVector(v)
	}

	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.modelName
}

// Available checks whether the server responds and the model exists.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, ollamaConnectTimeout)
	defer cancel()
	return e.checkModel(checkCtx) == nil
}

// Close releases HTTP connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
