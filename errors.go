package mlcore

import (
	"errors"
	"strings"
)

// Error codes used across the module. Codes target automated handling; the
// message is for the operator.
const (
	EInternal       = "internal error"
	ENotFound       = "not found"
	EConflict       = "conflict"
	EInvalid        = "invalid"
	ENotImplemented = "not implemented"

	// EUnsupported is returned by operations that are permanently disallowed,
	// such as removing rows from a dataset.
	EUnsupported = "unsupported operation"
	// EOutOfRange is returned when a row id does not address an existing row.
	EOutOfRange = "out of range"
	// EIO is returned when the storage connector fails.
	EIO = "i/o error"
	// EUntrained is returned when a model is used before a knowledge base
	// has been persisted for it.
	EUntrained = "untrained"
)

// Error is the error type returned by the packages of this module.
//
// To create a simple error,
//
//	&Error{
//	    Code: ENotFound,
//	}
//
// To show where the error happens, add Op.
//
//	&Error{
//	    Code: EOutOfRange,
//	    Op:   "dataframe.Replace",
//	}
//
// To show an error wrapped with another error.
//
//	&Error{
//	    Code: EIO,
//	    Err:  err,
//	}
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// NewError returns an instance of an error.
func NewError(options ...func(*Error)) *Error {
	err := &Error{}
	for _, o := range options {
		o(err)
	}
	return err
}

// WithErrorErr sets the err on the error.
func WithErrorErr(err error) func(*Error) {
	return func(e *Error) {
		e.Err = err
	}
}

// WithErrorCode sets the code on the error.
func WithErrorCode(code string) func(*Error) {
	return func(e *Error) {
		e.Code = code
	}
}

// WithErrorMsg sets the message on the error.
func WithErrorMsg(msg string) func(*Error) {
	return func(e *Error) {
		e.Msg = msg
	}
}

// WithErrorOp sets the op on the error.
func WithErrorOp(op string) func(*Error) {
	return func(e *Error) {
		e.Op = op
	}
}

// Error implements the error interface by writing out the recursive messages.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Err != nil:
		if e.Msg != "" {
			b.WriteString(e.Msg)
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	case e.Code != "":
		b.WriteString("<")
		b.WriteString(e.Code)
		b.WriteString(">")
		if e.Msg != "" {
			b.WriteString(" ")
			b.WriteString(e.Msg)
		}
	default:
		b.WriteString(e.Msg)
	}
	return b.String()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the root error, if available; otherwise returns EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) {
		return EInternal
	}
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Err != nil {
		return ErrorCode(e.Err)
	}
	return EInternal
}

// ErrorOp returns the op of the error, if available; otherwise return empty string.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) || e == nil {
		return ""
	}
	if e.Op != "" {
		return e.Op
	}
	if e.Err != nil {
		return ErrorOp(e.Err)
	}
	return ""
}

// ErrorMessage returns the human-readable message of the error, if available.
// Otherwise returns a generic error message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) {
		return "An internal error has occurred."
	}
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return ErrorMessage(e.Err)
	}
	return "An internal error has occurred."
}

// IOError wraps a storage failure into an EIO error for op. Errors that
// already carry a code are returned unchanged.
func IOError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return err
	}
	return &Error{
		Code: EIO,
		Op:   op,
		Err:  err,
	}
}
