package common

import (
	"errors"
	"net/http"
)

// Sentinel errors shared across services.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrValidation   = errors.New("validation error")
	ErrInvalidOTP   = errors.New("invalid ride code")
	ErrUpstream     = errors.New("upstream dependency failure")
	ErrInternal     = errors.New("internal server error")
)

// Machine-readable error codes returned in the response envelope.
const (
	CodeValidation    = "validation_error"
	CodeStateConflict = "state_conflict"
	CodeNotFound      = "not_found"
	CodeInvalidOTP    = "invalid_otp"
	CodeUpstream      = "upstream_error"
	CodeInternal      = "internal_error"
)

// AppError is an application error carrying an HTTP status code and a
// machine-readable error code.
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped error for errors.Is checks.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError reports missing or malformed input.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeValidation,
		Message:   message,
		Err:       ErrValidation,
	}
}

// NewStateConflictError reports a ride transition attempted from a
// disallowed state. The message names the state that blocked it.
func NewStateConflictError(message string) *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeStateConflict,
		Message:   message,
		Err:       ErrConflict,
	}
}

// NewNotFoundError reports a missing resource. Operations scoped to a party
// that does not own the resource report the same error.
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:      http.StatusNotFound,
		ErrorCode: CodeNotFound,
		Message:   message,
		Err:       ErrNotFound,
	}
}

// NewInvalidOTPError reports a ride-code mismatch, distinctly from other
// failures so clients can prompt re-entry.
func NewInvalidOTPError() *AppError {
	return &AppError{
		Code:      http.StatusUnauthorized,
		ErrorCode: CodeInvalidOTP,
		Message:   "invalid ride code",
		Err:       ErrInvalidOTP,
	}
}

// NewUpstreamError reports a failed external dependency call.
func NewUpstreamError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusBadGateway,
		ErrorCode: CodeUpstream,
		Message:   message,
		Err:       err,
	}
}

// NewInternalError reports an unexpected server-side failure.
func NewInternalError(message string) *AppError {
	return &AppError{
		Code:      http.StatusInternalServerError,
		ErrorCode: CodeInternal,
		Message:   message,
		Err:       ErrInternal,
	}
}
