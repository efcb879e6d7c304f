package embed

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	enginerrors "github.com/finsightlab/recall/internal/errors"
)

// RetryingEmbedder wraps an Embedder with exponential backoff retries.
// Validation failures are permanent; transport errors are retried.
type RetryingEmbedder struct {
	inner      Embedder
	maxRetries int
	logger     *slog.Logger
}

var _ Embedder = (*RetryingEmbedder)(nil)

// NewRetryingEmbedder wraps inner with up to maxRetries retry attempts.
func NewRetryingEmbedder(inner Embedder, maxRetries int, logger *slog.Logger) *RetryingEmbedder {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingEmbedder{
		inner:      inner,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (r *RetryingEmbedder) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxRetries)), ctx)
}

// Embed generates embedding for a single text, retrying on failure.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	attempt := 0

	op := func() error {
		attempt++
		vec, err := r.inner.Embed(ctx, text)
		if err != nil {
			if !enginerrors.IsRetryable(err) && enginerrors.GetCode(err) != "" {
				return backoff.Permanent(err)
			}
			r.logger.Warn("embedding attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return err
		}
		result = vec
		return nil
	}

	if err := backoff.Retry(op, r.newBackOff(ctx)); err != nil {
		return nil, enginerrors.New(enginerrors.ErrCodeEmbeddingFailed,
			"embedding failed after retries", err)
	}
	return result, nil
}

// EmbedBatch generates embeddings for multiple texts, retrying the
// whole batch on failure.
func (r *RetryingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	attempt := 0

	op := func() error {
		attempt++
		vecs, err := r.inner.EmbedBatch(ctx, texts)
		if err != nil {
			if !enginerrors.IsRetryable(err) && enginerrors.GetCode(err) != "" {
				return backoff.Permanent(err)
			}
			r.logger.Warn("batch embedding attempt failed",
				slog.Int("attempt", attempt),
				slog.Int("batch_size", len(texts)),
				slog.String("error", err.Error()))
			return err
		}
		result = vecs
		return nil
	}

	if err := backoff.Retry(op, r.newBackOff(ctx)); err != nil {
		return nil, enginerrors.New(enginerrors.ErrCodeEmbeddingFailed,
			"batch embedding failed after retries", err)
	}
	return result, nil
}

// Dimensions returns the embedding dimension.
func (r *RetryingEmbedder) Dimensions() int { return r.inner.Dimensions() }

// ModelName returns the model identifier.
func (r *RetryingEmbedder) ModelName() string { return r.inner.ModelName() }

// Available checks if the underlying embedder is ready.
func (r *RetryingEmbedder) Available(ctx context.Context) bool { return r.inner.Available(ctx) }

// Close releases resources.
func (r *RetryingEmbedder) Close() error { return r.inner.Close() }
