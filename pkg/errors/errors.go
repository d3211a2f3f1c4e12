package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrConflict
	ErrInternal

	// Upload pipeline codes
	ErrInvalidFormat
	ErrWriteFailure
	ErrStoreWriteFailure
	ErrNoActivePatient
	ErrTestNotOpen
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

// InvalidFormat rejects an upload whose extension is not accepted for the
// deliverable kind. Raised before any byte reaches disk.
func InvalidFormat(ext string) *AppError {
	return &AppError{
		Code:    ErrInvalidFormat,
		Message: fmt.Sprintf("unsupported file format %q", ext),
	}
}

// WriteFailure signals that persisting the uploaded bytes failed.
func WriteFailure(err error) *AppError {
	return &AppError{
		Code:    ErrWriteFailure,
		Message: "failed to store file",
		Err:     err,
	}
}

// StoreWriteFailure signals that the metadata append failed after the file
// was already written, leaving an orphan behind.
func StoreWriteFailure(err error) *AppError {
	return &AppError{
		Code:    ErrStoreWriteFailure,
		Message: "failed to record deliverable metadata",
		Err:     err,
	}
}

// NoActivePatient signals that a role acting on behalf of a patient has no
// patient pinned to its session. Distinct from NotFound so callers can route
// the operator back to identification.
func NoActivePatient() *AppError {
	return &AppError{
		Code:    ErrNoActivePatient,
		Message: "no active patient selected",
	}
}

// TestNotOpen signals the submit precondition failure: the test name is not
// in the consultation's current open list.
func TestNotOpen(testName string) *AppError {
	return &AppError{
		Code:    ErrTestNotOpen,
		Message: fmt.Sprintf("test %q is not open for this consultation", testName),
	}
}

// CodeOf extracts the ErrorCode from an error chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
