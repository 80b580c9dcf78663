package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"syscall"

	"github.com/datacendia/council/internal/types"
)

// Model gateway error codes
const (
	ErrBackendUnavailable types.ErrorCode = "LLM_BACKEND_UNAVAILABLE"
	ErrHTTPError          types.ErrorCode = "LLM_HTTP_ERROR"
	ErrTimeout            types.ErrorCode = "LLM_TIMEOUT"
	ErrMalformedResponse  types.ErrorCode = "LLM_MALFORMED_RESPONSE"
	ErrInvalidRequest     types.ErrorCode = "LLM_INVALID_REQUEST"
	ErrContextCanceled    types.ErrorCode = "LLM_CONTEXT_CANCELED"
	ErrCompletionFailed   types.ErrorCode = "LLM_COMPLETION_FAILED"
	ErrProviderNotFound   types.ErrorCode = "LLM_PROVIDER_NOT_FOUND"
)

var statusCodePattern = regexp.MustCompile(`\b([45]\d\d)\b`)

// IsRetryable determines if an error is transient and may succeed on retry.
// The gateway itself never retries; callers decide.
func IsRetryable(err error) bool {
	var councilErr *types.CouncilError
	if !errors.As(err, &councilErr) {
		return false
	}

	if councilErr.Retryable {
		return true
	}

	switch councilErr.Code {
	case ErrBackendUnavailable, ErrTimeout:
		return true
	default:
		return false
	}
}

// IsUnavailable reports whether err means the backend could not be reached.
func IsUnavailable(err error) bool {
	return types.HasCode(err, ErrBackendUnavailable)
}

// IsTimeout reports whether err is a per-call deadline expiry.
func IsTimeout(err error) bool {
	return types.HasCode(err, ErrTimeout)
}

// NewBackendUnavailableError creates a retryable error for an unreachable backend.
func NewBackendUnavailableError(provider string, cause error) *types.CouncilError {
	return &types.CouncilError{
		Code:      ErrBackendUnavailable,
		Message:   "model backend unavailable: " + provider,
		Retryable: true,
		Cause:     cause,
	}
}

// NewHTTPError creates an error for a non-2xx backend response.
func NewHTTPError(status int, body string) *types.CouncilError {
	msg := fmt.Sprintf("backend returned HTTP %d", status)
	if body = strings.TrimSpace(body); body != "" {
		msg += ": " + body
	}
	return types.NewError(ErrHTTPError, msg)
}

// NewTimeoutError creates a retryable error for a call that exceeded its deadline.
func NewTimeoutError(message string) *types.CouncilError {
	return &types.CouncilError{
		Code:      ErrTimeout,
		Message:   message,
		Retryable: true,
	}
}

// NewMalformedResponseError creates an error for unparsable backend or model output.
func NewMalformedResponseError(message string, cause error) *types.CouncilError {
	return types.WrapError(ErrMalformedResponse, message, cause)
}

// NewInvalidRequestError creates an error for invalid requests
func NewInvalidRequestError(message string) *types.CouncilError {
	return types.NewError(ErrInvalidRequest, message)
}

// NewProviderNotFoundError creates an error for an unknown provider type.
func NewProviderNotFoundError(providerName string) *types.CouncilError {
	return types.NewError(ErrProviderNotFound, "provider not found: "+providerName)
}

// TranslateError maps transport and client errors onto the gateway taxonomy.
func TranslateError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var councilErr *types.CouncilError
	if errors.As(err, &councilErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &types.CouncilError{Code: ErrTimeout, Message: "model call exceeded its deadline", Retryable: true, Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return types.WrapError(ErrContextCanceled, "model call canceled", err)
	}

	var netErr net.Error
	if errors.Is(err, syscall.ECONNREFUSED) || errors.As(err, &netErr) {
		if netErr != nil && netErr.Timeout() {
			return &types.CouncilError{Code: ErrTimeout, Message: "model call timed out", Retryable: true, Cause: err}
		}
		return NewBackendUnavailableError(provider, err)
	}

	lowerMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerMsg, "timeout") || strings.Contains(lowerMsg, "deadline"):
		return &types.CouncilError{Code: ErrTimeout, Message: "model call timed out", Retryable: true, Cause: err}
	case strings.Contains(lowerMsg, "connection refused") || strings.Contains(lowerMsg, "no such host") ||
		strings.Contains(lowerMsg, "connection reset"):
		return NewBackendUnavailableError(provider, err)
	case strings.Contains(lowerMsg, "status") && statusCodePattern.MatchString(lowerMsg):
		return types.WrapError(ErrHTTPError, "backend returned an error status", err)
	default:
		return types.WrapError(ErrCompletionFailed, provider+" completion failed", err)
	}
}
