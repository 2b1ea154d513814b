package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// FallbackErrorMessage is surfaced when neither the backend nor the
// transport supplies a usable message.
const FallbackErrorMessage = "An unexpected error occurred"

// Common errors returned by the pipeline.
var (
	// ErrAuthenticationRequired is returned when a protected endpoint is
	// called with no credential present. No network attempt is made.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// a retry backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassTransient represents network failures where no response
	// was received.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassClient represents 4xx client errors other than 401.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassUnauthorized represents 401 authorization failures.
	ErrorClassUnauthorized ErrorClass = "unauthorized"

	// ErrorClassAuthRequired represents protected calls attempted without
	// a credential, rejected before any network I/O.
	ErrorClassAuthRequired ErrorClass = "auth_required"
)

// APIError represents a backend request failure with its classification and
// the normalized user-facing message.
type APIError struct {
	Status  int        // HTTP status, 0 when no response was received
	Class   ErrorClass
	Code    string     // backend-supplied error code, when present
	Message string     // normalized message, never empty
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("storefront %s error: %s: %v", e.Class, e.Message, e.Err)
	case e.Status == 0:
		return fmt.Sprintf("storefront %s error: %s", e.Class, e.Message)
	default:
		return fmt.Sprintf("storefront %s error (status %d): %s", e.Class, e.Status, e.Message)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is the 401 rejection that tore the
// session down. Callers must not re-attempt a request that triggered it.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == ErrorClassUnauthorized
}

// Message resolves the user-facing message for any pipeline error.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return FallbackErrorMessage
}

// shouldRetry determines if an error should be retried based on its
// classification.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassTransient:
		// No response received - retry
		return true
	case ErrorClassServer:
		// 5xx server errors should be retried
		return true
	case ErrorClassClient:
		// 4xx errors are terminal
		return false
	case ErrorClassUnauthorized:
		// 401 tears the session down instead of retrying
		return false
	default:
		return false
	}
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized:
		return ErrorClassUnauthorized
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// errorEnvelope is the backend's structured error body.
type errorEnvelope struct {
	Error struct {
		Message string          `json:"message"`
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// normalizeMessage resolves a single message for a failed attempt, in
// priority order: backend-supplied structured message, transport-level
// message, fixed fallback literal.
func normalizeMessage(body []byte, transportErr error) (message, code string) {
	if len(body) > 0 {
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
			return envelope.Error.Message, envelope.Error.Code
		}
	}
	if transportErr != nil && transportErr.Error() != "" {
		return transportErr.Error(), ""
	}
	return FallbackErrorMessage, ""
}
