package dispatch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies dispatch errors.
type ErrorKind int

const (
	// ErrorMalformedRecord indicates a line that is not a JSON object or
	// has a field of the wrong type.
	ErrorMalformedRecord ErrorKind = iota
	// ErrorMissingField indicates a record without EventId, or a decision
	// record without c.
	ErrorMissingField
	// ErrorClientCall indicates Choose or ReportOutcome failed.
	ErrorClientCall
	// ErrorRead indicates the input could not be read.
	ErrorRead
	// ErrorCanceled indicates context cancellation between lines.
	ErrorCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorMalformedRecord:
		return "malformed record"
	case ErrorMissingField:
		return "missing field"
	case ErrorClientCall:
		return "client call failed"
	case ErrorRead:
		return "read error"
	case ErrorCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels matched by errors.Is against a *Error of the same kind.
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrMissingField    = errors.New("missing field")
	ErrClientCall      = errors.New("client call failed")

	errNotObject = errors.New("line is not a JSON object")
	errNotNumber = errors.New("value is not a number")
)

// Error is a fatal dispatch error. Every Error stops the stream.
type Error struct {
	Kind ErrorKind
	// Line is the 1-based input line, or 0 when unknown.
	Line int
	// EventID is the record's event id when it was parsed.
	EventID string
	// Field names the missing or mistyped field.
	Field string
	// Op names the client call for ErrorClientCall.
	Op string
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch {
	case e.Op != "":
		msg = fmt.Sprintf("%s %s", e.Op, msg)
	case e.Field != "":
		msg = fmt.Sprintf("%s %q", msg, e.Field)
	}
	if e.EventID != "" {
		msg = fmt.Sprintf("event %s: %s", e.EventID, msg)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrMalformedRecord:
		return e.Kind == ErrorMalformedRecord
	case ErrMissingField:
		return e.Kind == ErrorMissingField
	case ErrClientCall:
		return e.Kind == ErrorClientCall
	}
	return false
}

func kindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// IsMalformedRecord returns true if err is a malformed record error.
func IsMalformedRecord(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrorMalformedRecord
}

// IsMissingField returns true if err is a missing field error.
func IsMissingField(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrorMissingField
}

// IsClientCall returns true if err wraps a client failure.
func IsClientCall(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrorClientCall
}

// IsReadError returns true if the input could not be read.
func IsReadError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrorRead
}

// IsCanceled returns true if dispatch stopped on context cancellation.
func IsCanceled(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrorCanceled
}
