package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finsightlab/recall/internal/config"
	enginerrors "github.com/finsightlab/recall/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderStatic uses deterministic hash-based embeddings (no external dependencies)
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses the Ollama HTTP API for embeddings
	ProviderOllama ProviderType = "ollama"
)

var _ Embedder = (*StaticEmbedder)(nil)

// NewFromConfig constructs the configured embedding provider, wrapped
// with retry behavior.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig, logger *slog.Logger) (Embedder, error) {
	var inner Embedder

	switch ProviderType(cfg.Provider) {
	case ProviderStatic:
		inner = NewStaticEmbedder()

	case ProviderOllama:
		e, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, enginerrors.New(enginerrors.ErrCodeEmbedderUnavailable,
				fmt.Sprintf("ollama embedder unavailable: %v", err), err)
		}
		inner = e

	default:
		return nil, enginerrors.New(enginerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil)
	}

	return NewRetryingEmbedder(inner, cfg.MaxRetries, logger), nil
}
