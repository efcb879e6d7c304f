// Package errors provides structured error handling for the retrieval engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage/index errors
//   - 3XX: Embedding provider errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates vector/lexical/metadata store errors.
	CategoryStorage Category = "STORAGE"
	// CategoryEmbedding indicates embedding provider errors.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error; abort the operation.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeIndexUnavailable = "ERR_201_INDEX_UNAVAILABLE"
	ErrCodeCorruptCache     = "ERR_202_CACHE_CORRUPT"
	ErrCodeMetadataFailed   = "ERR_203_METADATA_FAILED"

	// Embedding errors (300-399)
	ErrCodeEmbeddingFailed     = "ERR_301_EMBEDDING_FAILED"
	ErrCodeEmbedderUnavailable = "ERR_302_EMBEDDER_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty        = "ERR_402_QUERY_EMPTY"
	ErrCodeDimensionMismatch = "ERR_403_DIMENSION_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeIndexFailed  = "ERR_503_INDEX_FAILED"
	ErrCodeQueryTimeout = "ERR_504_QUERY_TIMEOUT"
)

// categoryFromCode extracts the category from an error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on the error code.
func severityFromCode(code string) Severity {
	if code == ErrCodeIndexUnavailable {
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable failure.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingFailed, ErrCodeEmbedderUnavailable:
		return true
	default:
		return false
	}
}
