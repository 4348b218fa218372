// Package errs provides coded error types shared by the tree, profile and
// comparison packages.
//
// Codes are machine-readable so the API layer can map them to status codes
// without string matching:
//
//	err := errs.New(errs.CodeInvalidShape, "p must be >= 1, got %d", p)
//	if errs.Is(err, errs.CodeInvalidShape) {
//	    // reject the request
//	}
package errs

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeMalformedInput means a source node could not yield its children,
	// or a nil node was supplied.
	CodeMalformedInput Code = "MALFORMED_INPUT"
	// CodeLabelExtraction means a source node could not yield its label.
	CodeLabelExtraction Code = "LABEL_EXTRACTION"
	// CodeInvalidShape means p or q is outside the supported range.
	CodeInvalidShape Code = "INVALID_SHAPE"
	// CodeLabelCollision means a real label equals the filler sentinel.
	CodeLabelCollision Code = "LABEL_COLLISION"

	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnsupported  Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates an Error wrapping cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
