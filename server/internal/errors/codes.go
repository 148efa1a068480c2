package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error type for retrieval operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters, such as a malformed embedding.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeClassificationFailed indicates the query could not be classified. Always recovered.
	ErrCodeClassificationFailed ErrorCode = "CLASSIFICATION_FAILED"
	// ErrCodeAdapterTimeout indicates an adapter exceeded its time budget.
	ErrCodeAdapterTimeout ErrorCode = "ADAPTER_TIMEOUT"
	// ErrCodeAdapterFailed indicates an adapter returned an error.
	ErrCodeAdapterFailed ErrorCode = "ADAPTER_FAILED"
	// ErrCodeTransportRetryable indicates a transient transport failure that may be retried.
	ErrCodeTransportRetryable ErrorCode = "TRANSPORT_RETRYABLE"
	// ErrCodeServiceUnavailable indicates the service is not available.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
)

// AIError represents a structured error for retrieval operations.
type AIError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AIError) WithContext(key string, value interface{}) *AIError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Convenience constructors for common error types.

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AIError {
	return &AIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// ClassificationFailed wraps the cause of a failed classification.
func ClassificationFailed(cause error) *AIError {
	return &AIError{Code: ErrCodeClassificationFailed, Message: "query classification failed", Cause: cause}
}

// AdapterTimeout creates a timeout error for the named adapter.
func AdapterTimeout(adapter string, cause error) *AIError {
	return &AIError{
		Code:    ErrCodeAdapterTimeout,
		Message: fmt.Sprintf("adapter %s timed out", adapter),
		Cause:   cause,
	}
}

// AdapterFailed creates a failure error for the named adapter.
func AdapterFailed(adapter string, cause error) *AIError {
	return &AIError{
		Code:    ErrCodeAdapterFailed,
		Message: fmt.Sprintf("adapter %s failed", adapter),
		Cause:   cause,
	}
}

// ServiceUnavailable creates a service unavailable error.
func ServiceUnavailable(msg string) *AIError {
	return &AIError{Code: ErrCodeServiceUnavailable, Message: msg}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *AIError {
	return &AIError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *AIError {
	return &AIError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error, or any error it wraps, carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an AIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code
	}
	return defaultCode
}
