package session

import (
	"errors"
	"fmt"
)

// Error is a storage error with a stable code.
//
// Errors compare by code with errors.Is, so callers match against the
// sentinels below regardless of details or cause:
//
//	if errors.Is(err, session.ErrCorrupt) { ... }
type Error struct {
	Code    string // e.g. "SF-IO-5000"
	Message string
	Details string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates an error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details string) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// Detailf is WithDetails with formatting.
func (e *Error) Detailf(format string, args ...any) *Error {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// Wrap returns a copy of the error wrapping cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Code extracts the code of the first *Error in err's chain.
func Code(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

var (
	// ErrInvalidID indicates an identifier that cannot be mapped to a file
	// inside the store directory. No filesystem operation was attempted.
	ErrInvalidID = NewError("SF-ID-4000", "invalid session id")

	// ErrIDConflict indicates Create could not allocate an unused id.
	ErrIDConflict = NewError("SF-ID-4090", "session id conflict")

	// ErrCorrupt indicates stored bytes that cannot be decoded.
	ErrCorrupt = NewError("SF-CODEC-4220", "corrupt session record")

	// ErrIO indicates a failed read, write, rename, remove or listing.
	ErrIO = NewError("SF-IO-5000", "session storage i/o failure")

	// ErrEncode indicates a record that cannot be serialized.
	ErrEncode = NewError("SF-CODEC-5001", "session record encode failure")
)
