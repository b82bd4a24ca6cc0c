// Package errors defines structured error types for the certgate service.
// Every error that can reach the HTTP layer carries a stable code and an HTTP status.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error code.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeMissingToken       Code = "missing_token"
	CodeInvalidToken       Code = "invalid_token"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeNotFound           Code = "not_found"
	CodeUnknownOperation   Code = "unknown_operation"
	CodeTimeout            Code = "timeout"
	CodeExternalTool       Code = "external_tool_error"
	CodePartialFailure     Code = "partial_failure"
	CodeRateLimitExceeded  Code = "rate_limit_exceeded"
	CodeInternal           Code = "internal_error"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// AppError represents a structured error with additional metadata.
type AppError interface {
	error

	// Code returns the stable error code.
	Code() Code

	// HTTPStatus returns the HTTP status code.
	HTTPStatus() int

	// Description returns a human-readable description.
	Description() string

	// Unwrap returns the underlying error for error chain support.
	Unwrap() error

	// WithCause adds a cause error to the error chain.
	WithCause(cause error) AppError

	// WithMetadata adds additional context metadata.
	WithMetadata(key string, value interface{}) AppError

	// Metadata returns all metadata.
	Metadata() map[string]interface{}
}

// baseError is the internal implementation of AppError.
type baseError struct {
	code        Code
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

func (e *baseError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.description
}

func (e *baseError) Code() Code          { return e.code }
func (e *baseError) HTTPStatus() int     { return e.httpStatus }
func (e *baseError) Description() string { return e.description }
func (e *baseError) Unwrap() error       { return e.cause }

func (e *baseError) WithCause(cause error) AppError {
	e.cause = cause
	return e
}

func (e *baseError) WithMetadata(key string, value interface{}) AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// Is matches any AppError carrying the same code, so sentinel values work with errors.Is.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	if !ok {
		return false
	}
	return t.code == e.code
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new AppError with the specified parameters.
func NewError(code Code, httpStatus int, description string, message string) AppError {
	return &baseError{
		code:        code,
		httpStatus:  httpStatus,
		description: description,
		message:     message,
	}
}

// Sentinels for errors.Is checks. Never return these directly; use the constructors.
var (
	ErrValidation         = NewError(CodeValidation, http.StatusBadRequest, "validation failed", "")
	ErrMissingToken       = NewError(CodeMissingToken, http.StatusUnauthorized, "access token required", "")
	ErrInvalidToken       = NewError(CodeInvalidToken, http.StatusForbidden, "invalid or expired token", "")
	ErrInvalidCredentials = NewError(CodeInvalidCredentials, http.StatusUnauthorized, "invalid credentials", "")
	ErrNotFound           = NewError(CodeNotFound, http.StatusNotFound, "resource not found", "")
	ErrUnknownOperation   = NewError(CodeUnknownOperation, http.StatusBadRequest, "operation is not allowed", "")
	ErrTimeout            = NewError(CodeTimeout, http.StatusGatewayTimeout, "operation timed out", "")
	ErrExternalTool       = NewError(CodeExternalTool, http.StatusBadGateway, "external tool failed", "")
	ErrPartialFailure     = NewError(CodePartialFailure, http.StatusConflict, "operation partially failed", "")
	ErrRateLimitExceeded  = NewError(CodeRateLimitExceeded, http.StatusTooManyRequests, "too many requests", "")
	ErrInternal           = NewError(CodeInternal, http.StatusInternalServerError, "internal error", "")
)

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// Validation creates a validation_error for malformed input.
func Validation(message string) AppError {
	return NewError(CodeValidation, http.StatusBadRequest,
		"The request is missing a required parameter or includes an invalid parameter value.", message)
}

// ValidationFields creates a validation_error carrying per-field messages.
func ValidationFields(fields map[string]string) AppError {
	err := Validation("validation failed")
	for k, v := range fields {
		err.WithMetadata(k, v)
	}
	return err
}

// MissingToken creates a missing_token error.
func MissingToken() AppError {
	return NewError(CodeMissingToken, http.StatusUnauthorized, "Access token required", "Access token required")
}

// InvalidToken creates an invalid_token error.
func InvalidToken(reason string) AppError {
	return NewError(CodeInvalidToken, http.StatusForbidden, "Invalid or expired token", "Invalid or expired token").
		WithMetadata("reason", reason)
}

// InvalidCredentials creates an invalid_credentials error.
func InvalidCredentials() AppError {
	return NewError(CodeInvalidCredentials, http.StatusUnauthorized, "Invalid credentials", "Invalid credentials")
}

// NotFound creates a not_found error for the given resource.
func NotFound(resource string) AppError {
	return NewError(CodeNotFound, http.StatusNotFound, "Resource not found", resource+" not found").
		WithMetadata("resource", resource)
}

// NotFoundMessage creates a not_found error with a caller-supplied message.
func NotFoundMessage(message string) AppError {
	return NewError(CodeNotFound, http.StatusNotFound, "Resource not found", message)
}

// UnknownOperation creates an unknown_operation error.
func UnknownOperation(op string) AppError {
	return NewError(CodeUnknownOperation, http.StatusBadRequest, "Operation is not in the allow-list",
		fmt.Sprintf("Invalid command: %q", op)).WithMetadata("operation", op)
}

// Timeout creates a timeout error for a sandboxed operation.
func Timeout(op string, after string) AppError {
	return NewError(CodeTimeout, http.StatusGatewayTimeout, "The operation did not complete in time",
		fmt.Sprintf("%s timed out after %s", op, after)).WithMetadata("operation", op)
}

// ExternalTool creates an external_tool_error carrying the tool's stderr.
func ExternalTool(op string, stderr string) AppError {
	return NewError(CodeExternalTool, http.StatusBadGateway, "The external PKI tool reported a failure", stderr).
		WithMetadata("operation", op)
}

// PartialFailure creates a partial_failure error for multi-step workflows.
func PartialFailure(message string) AppError {
	return NewError(CodePartialFailure, http.StatusConflict, "Some steps of the operation failed", message)
}

// RateLimitExceeded creates a rate_limit_exceeded error.
func RateLimitExceeded() AppError {
	return NewError(CodeRateLimitExceeded, http.StatusTooManyRequests,
		"Rate limit exceeded. Please try again later.", "Too many requests from this IP")
}

// Internal wraps an unexpected fault. The cause is kept for logging but never rendered.
func Internal(cause error) AppError {
	return NewError(CodeInternal, http.StatusInternalServerError,
		"The server encountered an unexpected condition.", "Something went wrong").WithCause(cause)
}

// ================================================================================
// Error Utilities
// ================================================================================

// AsAppError attempts to extract an AppError from err's chain.
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code() == code
}

// HTTPStatusOf returns the HTTP status for err, defaulting to 500.
func HTTPStatusOf(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// ShouldLogError determines if an error should be logged at error level.
func ShouldLogError(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		status := appErr.HTTPStatus()
		return status >= 500
	}
	return true
}

// Is and As re-export the standard library helpers so callers need one import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// New returns a plain error.
func New(text string) error { return stderrors.New(text) }
