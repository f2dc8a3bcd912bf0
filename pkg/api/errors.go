package api

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an orchestration error.
type ErrorType string

const (
	// ErrorTypeScope marks a broken ancestor chain. Fatal, never retried.
	ErrorTypeScope ErrorType = "scope_error"

	// ErrorTypeContext marks missing reference data during context
	// assembly. Fatal for the attempt-chain, never retried.
	ErrorTypeContext ErrorType = "context_error"

	// ErrorTypeValidation marks a schema or cardinality violation in
	// generation output. Retried under the executor policy, surfaced only
	// after retries are exhausted.
	ErrorTypeValidation ErrorType = "validation_error"

	// ErrorTypeCapability marks a failure of the generation capability.
	// Transient capability errors (timeout, rate limit) are retried;
	// permanent ones (policy rejection) short-circuit the retry loop.
	ErrorTypeCapability ErrorType = "capability_error"

	// ErrorTypeConflict marks a mutation that violates the
	// single-pending-draft or single-writer invariant. Rejected
	// immediately; the caller must re-fetch state.
	ErrorTypeConflict ErrorType = "conflict_error"

	// Transport-level categories.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeServer         ErrorType = "server_error"
)

// Error is the structured error used across storyloom. Transient marks
// errors the executor may retry.
type Error struct {
	Type      ErrorType `json:"type"`
	Param     string    `json:"param,omitempty"`
	Message   string    `json:"message"`
	Transient bool      `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an Error for JSON serialization as the top-level
// error response.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// NewScopeError creates an Error for a broken entity hierarchy.
func NewScopeError(message string) *Error {
	return &Error{Type: ErrorTypeScope, Message: message}
}

// NewContextError creates an Error for missing reference data.
func NewContextError(message string) *Error {
	return &Error{Type: ErrorTypeContext, Message: message}
}

// NewValidationError creates an Error for invalid generation output.
// Validation failures are recoverable: a retry may produce valid output.
func NewValidationError(param, message string) *Error {
	return &Error{Type: ErrorTypeValidation, Param: param, Message: message, Transient: true}
}

// NewCapabilityError creates an Error for a generation capability failure.
func NewCapabilityError(message string, transient bool) *Error {
	return &Error{Type: ErrorTypeCapability, Message: message, Transient: transient}
}

// NewConflictError creates an Error for an invariant-violating mutation.
func NewConflictError(message string) *Error {
	return &Error{Type: ErrorTypeConflict, Message: message}
}

// NewInvalidRequestError creates an Error for invalid request parameters.
func NewInvalidRequestError(param, message string) *Error {
	return &Error{Type: ErrorTypeInvalidRequest, Param: param, Message: message}
}

// NewNotFoundError creates an Error for resources that cannot be found.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: message}
}

// NewServerError creates an Error for internal failures.
func NewServerError(message string) *Error {
	return &Error{Type: ErrorTypeServer, Message: message}
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Transient
	}
	return false
}

// TypeOf returns the error's category, or ErrorTypeServer for errors that
// are not *Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeServer
}
