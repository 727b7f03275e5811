package errors

import (
	"errors"
)

type ErrorType string

const (
	ErrorTypeInvalidArgument ErrorType = "INVALID_ARGUMENT"
	ErrorTypeNotFound        ErrorType = "NOT_FOUND"
	ErrorTypeConflict        ErrorType = "CONFLICT"
	ErrorTypeNoOp            ErrorType = "NO_OP"
)

// Error is the result type for every recoverable repository condition. All of
// them are local: no error in this package aborts the process, and every
// failure leaves published versions and the branch map untouched.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func InvalidArgument(message string) *Error {
	return &Error{
		Type:    ErrorTypeInvalidArgument,
		Message: message,
	}
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

func Conflict(message string) *Error {
	return &Error{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NoOp reports an operation that had nothing to do, such as a commit with an
// empty staging set. It is a signal, not a failure.
func NoOp(message string) *Error {
	return &Error{
		Type:    ErrorTypeNoOp,
		Message: message,
	}
}

func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func IsInvalidArgument(err error) bool { return IsType(err, ErrorTypeInvalidArgument) }
func IsNotFound(err error) bool        { return IsType(err, ErrorTypeNotFound) }
func IsConflict(err error) bool        { return IsType(err, ErrorTypeConflict) }
func IsNoOp(err error) bool            { return IsType(err, ErrorTypeNoOp) }
