package client

import (
	"errors"
	"fmt"
)

// Status codes carried by Error and passed to ErrorSink.OnError.
const (
	CodeSuccess         = 0
	CodeInvalidArgument = 1
	CodeNotInitialized  = 2
	CodeContextParse    = 3
	CodeNoActions       = 4
	CodeSendFailure     = 5
	CodeQueueOverflow   = 6
	CodeConfig          = 7
	CodeClosed          = 8
)

// Error is a client failure with a status code.
type Error struct {
	Code int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (code %d): %v", e.Msg, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (code %d)", e.Msg, e.Code)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code int, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// Sentinel errors, matched by code with errors.Is.
var (
	// ErrNotInitialized is returned by calls made before Init.
	ErrNotInitialized = &Error{Code: CodeNotInitialized, Msg: "client not initialized"}
	// ErrClosed is returned by calls made after Close.
	ErrClosed = &Error{Code: CodeClosed, Msg: "client closed"}
	// ErrInvalidArgument is returned for empty event ids and similar.
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument, Msg: "invalid argument"}
	// ErrContextParse is returned when a context is not a JSON object.
	ErrContextParse = &Error{Code: CodeContextParse, Msg: "context parse error"}
	// ErrNoActions is returned when a context has no _multi actions.
	ErrNoActions = &Error{Code: CodeNoActions, Msg: "context has no actions"}
	// ErrConfig is returned for invalid configuration.
	ErrConfig = &Error{Code: CodeConfig, Msg: "invalid configuration"}
)

// CodeOf returns the status code carried by err, CodeSuccess for nil, or
// CodeInvalidArgument when err carries no code.
func CodeOf(err error) int {
	if err == nil {
		return CodeSuccess
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInvalidArgument
}

// InitializationError is returned when a client cannot be constructed from
// its configuration.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("client initialization failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *InitializationError) Unwrap() error {
	return e.Err
}

// IsInitializationError reports whether err is an InitializationError.
func IsInitializationError(err error) bool {
	var ie *InitializationError
	return errors.As(err, &ie)
}
