package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error type for tag operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates an administrative operation referenced a missing tag.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodePersistence indicates the storage engine failed and the transaction was rolled back.
	ErrCodePersistence ErrorCode = "PERSISTENCE"
	// ErrCodeIndexing indicates the search indexer could not be updated.
	ErrCodeIndexing ErrorCode = "INDEXING"
	// ErrCodeCapabilityNotImplemented indicates a module does not satisfy the taggable contract.
	ErrCodeCapabilityNotImplemented ErrorCode = "CAPABILITY_NOT_IMPLEMENTED"
)

// Error represents a structured error for tag operations.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
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

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *Error) GetCode() ErrorCode {
	return e.Code
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *Error {
	return &Error{Code: ErrCodeInvalidArgument, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: msg}
}

// Persistence creates a persistence error.
func Persistence(msg string, cause error) *Error {
	return &Error{Code: ErrCodePersistence, Message: msg, Cause: cause}
}

// Indexing creates an indexing error.
func Indexing(msg string, cause error) *Error {
	return &Error{Code: ErrCodeIndexing, Message: msg, Cause: cause}
}

// CapabilityNotImplemented creates an error for a module that cannot be tagged.
func CapabilityNotImplemented(module string) *Error {
	return &Error{
		Code:    ErrCodeCapabilityNotImplemented,
		Message: fmt.Sprintf("module %q does not implement the taggable contract", module),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error, or any error it wraps, is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var tagErr *Error
	if stderrors.As(err, &tagErr) {
		return tagErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an *Error.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var tagErr *Error
	if stderrors.As(err, &tagErr) {
		return tagErr.Code
	}
	return defaultCode
}
