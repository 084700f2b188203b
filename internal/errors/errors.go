// Package errors provides structured error handling with HTTP status code mapping.
//
// Handlers return *Error values; the server's error middleware renders them in the
// checkbox API's response shape and logs them at a level matching their type.
package errors

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// ErrorType represents the category of error for logging and response formatting.
type ErrorType string

const (
	// TypeValidation indicates a malformed or out-of-range request (HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeRateLimited indicates the client's admission window is exhausted (HTTP 429)
	TypeRateLimited ErrorType = "rate_limited"
	// TypeInternal indicates server-side error (HTTP 500)
	TypeInternal ErrorType = "internal"
)

// Error represents a structured error with type, message, and context.
// Message is for logs; clients see PublicMessage.
type Error struct {
	Type       ErrorType
	Message    string
	Cause      error
	RetryAfter time.Duration
	Context    map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one.
func (e *Error) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// PublicMessage is the text sent to clients.
func (e *Error) PublicMessage() string {
	switch e.Type {
	case TypeValidation:
		return "Bad Request"
	case TypeRateLimited:
		return fmt.Sprintf("You are being rate limited, try again in %d seconds!", e.RetryAfterSeconds())
	default:
		return "Internal Server Error"
	}
}

// ValidationError creates a new validation error (HTTP 400).
func ValidationError(message string) *Error {
	return &Error{
		Type:    TypeValidation,
		Message: message,
		Context: make(map[string]any),
	}
}

// RateLimitedError creates a new rate limit error (HTTP 429) carrying the remaining window.
func RateLimitedError(retryAfter time.Duration) *Error {
	return &Error{
		Type:       TypeRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
		Context:    make(map[string]any),
	}
}

// InternalError creates a new internal error (HTTP 500).
func InternalError(message string, cause error) *Error {
	return &Error{
		Type:    TypeInternal,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// WithField adds a context field to the error (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Response represents the JSON structure sent to clients.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ToResponse converts an Error to a Response for JSON serialization.
func (e *Error) ToResponse() Response {
	return Response{Success: false, Message: e.PublicMessage()}
}

// AsStructuredError converts any error into a structured Error.
// If err is already an *Error, returns it unchanged.
// Otherwise wraps it as an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}
