package types

import "fmt"

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Caller error codes: rejected before any backend call.
const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrTeamNotFound     ErrorCode = "TEAM_NOT_FOUND"
	ErrSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
	ErrSessionNotActive ErrorCode = "SESSION_NOT_ACTIVE"
	ErrNoMembers        ErrorCode = "NO_MEMBERS"
	ErrDuplicatePersona ErrorCode = "DUPLICATE_PERSONA"
	ErrMemberNotFound   ErrorCode = "MEMBER_NOT_FOUND"
)

// Backend and infrastructure error codes.
const (
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrBackendTimeout     ErrorCode = "BACKEND_TIMEOUT"
	ErrBackendBadResponse ErrorCode = "BACKEND_BAD_RESPONSE"
	ErrOrchestration      ErrorCode = "ORCHESTRATION_FAILURE"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}
