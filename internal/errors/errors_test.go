package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeIndexUnavailable, CategoryStorage, SeverityFatal, false},
		{ErrCodeCorruptCache, CategoryStorage, SeverityError, false},
		{ErrCodeEmbeddingFailed, CategoryEmbedding, SeverityWarning, true},
		{ErrCodeEmbedderUnavailable, CategoryEmbedding, SeverityWarning, true},
		{ErrCodeQueryEmpty, CategoryValidation, SeverityError, false},
		{ErrCodeQueryTimeout, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestErrorMessageIncludesCode(t *testing.T) {
	err := New(ErrCodeQueryEmpty, "query must not be empty", nil)

	assert.Equal(t, "[ERR_402_QUERY_EMPTY] query must not be empty", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")

	err := Wrap(ErrCodeMetadataFailed, cause)

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "disk full", err.Message)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("op failed: %w", EmbeddingError("provider down", nil))

	assert.ErrorIs(t, err, New(ErrCodeEmbeddingFailed, "", nil))
	assert.NotErrorIs(t, err, New(ErrCodeIndexUnavailable, "", nil))
}

func TestGetCode(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", TimeoutError("query timed out", nil))

	assert.Equal(t, ErrCodeQueryTimeout, GetCode(wrapped))
	assert.Empty(t, GetCode(stderrors.New("plain")))
	assert.Empty(t, GetCode(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(EmbeddingError("transient", nil)))
	assert.False(t, IsRetryable(ValidationError("bad input", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := IndexUnavailableError("vector store unreachable", nil).
		WithDetail("store", "hnsw").
		WithDetail("path", "/data/vectors.hnsw")

	assert.Equal(t, "hnsw", err.Details["store"])
	assert.Equal(t, "/data/vectors.hnsw", err.Details["path"])
}
