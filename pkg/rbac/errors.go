package rbac

import (
	"errors"
	"fmt"
)

// Code classifies access-control failures. Callers map codes to their own
// transport status; none of them implies retryability.
type Code string

const (
	CodeNotFound  Code = "NOT_FOUND"
	CodeForbidden Code = "FORBIDDEN"
	CodeConflict  Code = "CONFLICT"
	CodeInternal  Code = "INTERNAL_SERVER_ERROR"
)

// Error is the uniform error returned by the service layer
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError is the default error constructor. The service accepts an
// injectable constructor with this signature so an embedding router layer
// can substitute its own transport error type.
func NewError(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Err: cause}
}

// ErrorFactory builds the error type surfaced by the service layer
type ErrorFactory func(code Code, message string, cause error) error

// CodeOf extracts the taxonomy code from an error chain. Returns empty for
// errors that did not originate in this package.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether an error already carries a taxonomy code, meaning
// it must pass through unwrapped instead of being stacked inside a generic
// internal error.
func HasCode(err error) bool {
	return CodeOf(err) != ""
}
