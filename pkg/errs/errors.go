// Package errs defines the stable error taxonomy shared across the client.
//
// Validation and authentication failures are caller-input problems and are
// never retried by this library. Network failures carry actionable text but
// retry policy, if any, belongs to the calling layer.
package errs

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeAuth       = "AUTH_ERROR"
	CodeNetwork    = "NETWORK_ERROR"
	CodeCore       = "CORE_ERROR"
)

// Sentinel errors for common caller-input problems.
var (
	ErrEmptyClientID    = errors.New("client id cannot be empty")
	ErrEmptySecret      = errors.New("secret cannot be empty")
	ErrNotAuthenticated = errors.New("not authenticated: call Authenticate first")
)

// ValidationError reports malformed or missing caller input.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AuthenticationError reports rejected credentials or an invalid token
// (HTTP 401/403 from the remote service).
type AuthenticationError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// NetworkError reports connectivity, DNS, timeout, or unclassified HTTP
// failures when talking to the remote service.
type NetworkError struct {
	Op      string // "token exchange", "token validation", "upload"
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %s", e.Op, e.Message)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// CoreError is the catch-all for anything that does not fit the closed
// taxonomy. Its presence in a log usually means a classification gap.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Err }

// Validation builds a ValidationError for a single named field, wrapping the
// sentinel cause so callers can match it with errors.Is.
func Validation(field, message string, cause error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: cause}
}
