// Package errors provides the error taxonomy shared by the marketplace client core.
//
// Every failure that crosses a component boundary is a *StandardError. Views never
// see raw transport errors: they read StandardError.Message (or UserMessage) and the
// Retryable flag decides whether a retry affordance is offered.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrCodeAuthenticationRequired  ErrorCode = "AUTHENTICATION_REQUIRED"
	ErrCodeTransportFailed         ErrorCode = "TRANSPORT_FAILED"
	ErrCodeRequestTimeout          ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeServerError             ErrorCode = "SERVER_ERROR"
	ErrCodeUnexpectedResponseShape ErrorCode = "UNEXPECTED_RESPONSE_SHAPE"
	ErrCodeInvalidState            ErrorCode = "INVALID_STATE"
	ErrCodeSessionPersistence      ErrorCode = "SESSION_PERSISTENCE_FAILED"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
)

// DefaultServerMessage is shown when the backend fails without an error body.
const DefaultServerMessage = "Something went wrong"

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error metadata and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// NewValidationError creates a non-retryable validation error. Validation errors are
// raised before any network call.
func NewValidationError(message string, fieldErrors map[string]string) *StandardError {
	e := &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
	if len(fieldErrors) > 0 {
		parts := make([]string, 0, len(fieldErrors))
		for field, msg := range fieldErrors {
			parts = append(parts, field+": "+msg)
			e.WithMetadata("field."+field, msg)
		}
		e.Details = strings.Join(parts, "; ")
	}
	return e
}

// NewAuthenticationRequiredError is returned for authenticated calls without a token
// and for 401/403 responses.
func NewAuthenticationRequiredError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthenticationRequired,
		Message:   "Please log in to continue",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError wraps a network-level failure. Always retryable.
func NewTransportError(endpoint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailed,
		Message:   "Unable to reach the server",
		Details:   fmt.Sprintf("endpoint: %s, error: %v", endpoint, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTimeoutError is returned when the request context expires before a response.
func NewTimeoutError(endpoint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestTimeout,
		Message:   "The server took too long to respond",
		Details:   fmt.Sprintf("endpoint: %s", endpoint),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewServerError carries the backend's own error string for a non-2xx response.
func NewServerError(endpoint string, status int, message string) *StandardError {
	if strings.TrimSpace(message) == "" {
		message = DefaultServerMessage
	}
	return &StandardError{
		Code:      ErrCodeServerError,
		Message:   message,
		Details:   fmt.Sprintf("endpoint: %s, status: %d", endpoint, status),
		Retryable: status >= 500 || status == 429,
		Metadata:  map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewUnexpectedShapeError is returned when a response body matches none of the
// documented payload shapes.
func NewUnexpectedShapeError(key string, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnexpectedResponseShape,
		Message:   "Received an unexpected response from the server",
		Details:   fmt.Sprintf("expected key %q: %s", key, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStateError reports an operation that is not allowed in the current state.
func NewInvalidStateError(operation, state string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   fmt.Sprintf("%s is not allowed right now", operation),
		Details:   fmt.Sprintf("operation: %s, state: %s", operation, state),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionPersistenceError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionPersistence,
		Message:   "Could not store your session",
		Details:   fmt.Sprintf("op: %s, error: %v", op, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// UserMessage returns the text a view should display for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return Normalize(err).Message
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// IsRetryable reports whether re-invoking the same action may succeed.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Retryable
}

func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed:
		return "VALIDATION"
	case ErrCodeAuthenticationRequired, ErrCodeSessionPersistence:
		return "AUTH/SESSION"
	case ErrCodeTransportFailed, ErrCodeRequestTimeout:
		return "TRANSPORT"
	case ErrCodeServerError, ErrCodeUnexpectedResponseShape:
		return "SERVER"
	case ErrCodeInvalidState:
		return "STATE"
	default:
		return "OTHER"
	}
}
