// Package apierror provides a centralized error response format for the
// sentinel HTTP surface. All handlers use WriteJSON to produce consistent,
// machine-readable error responses with stable error codes.
package apierror

import (
	"encoding/json"
	"net/http"
)

// ErrorCode is a machine-readable error classification string.
type ErrorCode string

// Sentinel error codes. These form a public API contract — clients can
// program against these stable codes. Do not rename or remove existing codes.
const (
	Unauthorized     ErrorCode = "SENTINEL_UNAUTHORIZED"
	Forbidden        ErrorCode = "SENTINEL_FORBIDDEN"
	NotFound         ErrorCode = "SENTINEL_NOT_FOUND"
	MethodNotAllowed ErrorCode = "SENTINEL_METHOD_NOT_ALLOWED"
	InternalError    ErrorCode = "SENTINEL_INTERNAL_ERROR"
)

// ErrorResponse is the standardized sentinel error body.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Pre-serialized JSON bodies for the most common error responses.
// Avoids json.Encoder allocation on every error.
var (
	preUnauthorized     = mustMarshal(http.StatusUnauthorized, Unauthorized, "missing or invalid bearer token")
	preForbidden        = mustMarshal(http.StatusForbidden, Forbidden, "client address not allowed")
	preMethodNotAllowed = mustMarshal(http.StatusMethodNotAllowed, MethodNotAllowed, "method not allowed")
	preInternalError    = mustMarshal(http.StatusInternalServerError, InternalError, "internal server error")
)

func mustMarshal(status int, code ErrorCode, message string) []byte {
	b, _ := json.Marshal(ErrorResponse{
		Error:     http.StatusText(status),
		ErrorCode: string(code),
		Message:   message,
	})
	return append(b, '\n')
}

// WriteJSON writes a structured JSON error response. For common error
// code+message combinations, pre-serialized bodies are used (no allocation).
func WriteJSON(w http.ResponseWriter, status int, code ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body := preSerialized(status, code, message); body != nil {
		w.Write(body) //nolint:errcheck
		return
	}

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     http.StatusText(status),
		ErrorCode: string(code),
		Message:   message,
	})
}

// preSerialized returns a pre-built response body for common error
// combinations, or nil if no match.
func preSerialized(status int, code ErrorCode, message string) []byte {
	switch {
	case code == Unauthorized && status == http.StatusUnauthorized && message == "missing or invalid bearer token":
		return preUnauthorized
	case code == Forbidden && status == http.StatusForbidden && message == "client address not allowed":
		return preForbidden
	case code == MethodNotAllowed && status == http.StatusMethodNotAllowed && message == "method not allowed":
		return preMethodNotAllowed
	case code == InternalError && status == http.StatusInternalServerError && message == "internal server error":
		return preInternalError
	}
	return nil
}
