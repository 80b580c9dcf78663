package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/types"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: detailFor(err)})
}

func detailFor(err error) errorDetail {
	var ce *types.CouncilError
	if errors.As(err, &ce) {
		return errorDetail{Code: string(ce.Code), Message: ce.Error(), Retryable: ce.Retryable}
	}
	return errorDetail{Code: "INTERNAL", Message: err.Error()}
}

// statusFor maps error codes to HTTP statuses.
func statusFor(err error) int {
	switch types.CodeOf(err) {
	case agent.ErrAgentNotFound, types.DB_NOT_FOUND:
		return http.StatusNotFound
	case council.ErrNoAgentsOnline, llm.ErrBackendUnavailable, agent.ErrAgentUnavailable:
		return http.StatusServiceUnavailable
	case agent.ErrAgentBusy:
		return http.StatusConflict
	case council.ErrInvalidRequest, llm.ErrInvalidRequest, errBadRequest:
		return http.StatusBadRequest
	case council.ErrDeliberationCanceled:
		return 499 // client closed request
	case llm.ErrTimeout:
		return http.StatusGatewayTimeout
	case errNotConfigured:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

const errBadRequest types.ErrorCode = "API_BAD_REQUEST"

// decodeJSON reads a bounded JSON body and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return types.NewError(errBadRequest, "request body is empty")
		}
		return types.WrapError(errBadRequest, "invalid request body", err)
	}
	if dec.More() {
		return types.NewError(errBadRequest, "request body has trailing data")
	}
	return nil
}

func badRequest(format string, args ...any) error {
	return types.NewError(errBadRequest, fmt.Sprintf(format, args...))
}
