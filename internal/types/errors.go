package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for council errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
	CONFIG_NOT_FOUND         ErrorCode = "CONFIG_NOT_FOUND"
)

// Database error codes
const (
	DB_OPEN_FAILED      ErrorCode = "DB_OPEN_FAILED"
	DB_MIGRATION_FAILED ErrorCode = "DB_MIGRATION_FAILED"
	DB_QUERY_FAILED     ErrorCode = "DB_QUERY_FAILED"
	DB_NOT_FOUND        ErrorCode = "DB_NOT_FOUND"
)

// CouncilError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type CouncilError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *CouncilError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *CouncilError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CouncilError carrying the same Code.
func (e *CouncilError) Is(target error) bool {
	var councilErr *CouncilError
	if errors.As(target, &councilErr) {
		return e.Code == councilErr.Code
	}
	return false
}

// NewError creates a new non-retryable CouncilError with the given code and message.
func NewError(code ErrorCode, message string) *CouncilError {
	return &CouncilError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable CouncilError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *CouncilError {
	return &CouncilError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable CouncilError that wraps an existing error.
func WrapError(code ErrorCode, message string, cause error) *CouncilError {
	return &CouncilError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first CouncilError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var councilErr *CouncilError
	if errors.As(err, &councilErr) {
		return councilErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a CouncilError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, NewError(code, ""))
}
