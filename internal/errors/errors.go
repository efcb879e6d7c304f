package errors

import (
	"errors"
	"fmt"
)

// EngineError is the structured error type for the retrieval engine.
type EngineError struct {
	// Code is the unique error code (e.g., "ERR_301_EMBEDDING_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Embedding, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is matches the target error by code, enabling errors.Is.
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *EngineError) WithDetail(key, value string) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new EngineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an EngineError from an existing error.
func Wrap(code string, err error) *EngineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// EmbeddingError creates an embedding-provider error. Retryable.
func EmbeddingError(message string, cause error) *EngineError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// IndexUnavailableError creates a store-unreachable error. Queries fail fast.
func IndexUnavailableError(message string, cause error) *EngineError {
	return New(ErrCodeIndexUnavailable, message, cause)
}

// TimeoutError creates a deadline-exceeded error for a cancelled query.
func TimeoutError(message string, cause error) *EngineError {
	return New(ErrCodeQueryTimeout, message, cause)
}

// CacheCorruptionError creates an unreadable-cache-entry error.
// Callers treat it as a cache miss and evict the entry.
func CacheCorruptionError(message string, cause error) *EngineError {
	return New(ErrCodeCorruptCache, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *EngineError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// GetCode extracts the error code, or empty string for foreign errors.
func GetCode(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
