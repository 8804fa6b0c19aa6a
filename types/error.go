package types

import "fmt"

// ErrorCode represents a unified error code across the retrieval core.
type ErrorCode string

// Retrieval error codes
const (
	// ErrLowQualityResults: no candidate cleared the quality threshold.
	// Recoverable, user-facing, never cached.
	ErrLowQualityResults ErrorCode = "LOW_QUALITY_RESULTS"

	// ErrInsufficientClearance: a matching result exists but the requester's
	// scope does not match. Recoverable, user-facing.
	ErrInsufficientClearance ErrorCode = "INSUFFICIENT_CLEARANCE"

	// ErrRetrievalBackendUnavailable: vector store unreachable. Fatal for
	// the request, no internal retry.
	ErrRetrievalBackendUnavailable ErrorCode = "RETRIEVAL_BACKEND_UNAVAILABLE"

	// ErrRerankerUnavailable: reranker fault. Absorbed internally, callers
	// degrade to similarity-only scoring and never surface this code.
	ErrRerankerUnavailable ErrorCode = "RERANKER_UNAVAILABLE"

	ErrEmbeddingFailed  ErrorCode = "EMBEDDING_FAILED"
	ErrCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrInternalError    ErrorCode = "INTERNAL_ERROR"
)

// DenialScope 标记 INSUFFICIENT_CLEARANCE 的拦截维度。
type DenialScope string

const (
	DenialScopeNone           DenialScope = ""
	DenialScopeOrganizational DenialScope = "organizational"
	DenialScopeDepartmental   DenialScope = "departmental"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Scope     DenialScope `json:"scope,omitempty"`
	Retryable bool        `json:"retryable"`
	Cause     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithScope tags the error with the denial scope.
func (e *Error) WithScope(scope DenialScope) *Error {
	e.Scope = scope
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
