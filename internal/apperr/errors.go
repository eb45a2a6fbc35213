// Package apperr defines the typed error vocabulary used throughout the
// bridge (spec §7): a small, closed set of error kinds that callers can
// classify with errors.Is/errors.As rather than by matching strings,
// following the same "let the error expose its own classification"
// idiom the teacher framework used for HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Code is one of the closed set of error kinds from spec §7.
type Code int

const (
	InvalidArguments Code = iota
	Unauthorized
	Full
	TooLarge
	Offline
	Retryable
	NonRetryable
	Timeout
	Closed
	Interrupted
)

func (c Code) String() string {
	switch c {
	case InvalidArguments:
		return "invalid_arguments"
	case Unauthorized:
		return "unauthorized"
	case Full:
		return "full"
	case TooLarge:
		return "too_large"
	case Offline:
		return "offline"
	case Retryable:
		return "retryable"
	case NonRetryable:
		return "non_retryable"
	case Timeout:
		return "timeout"
	case Closed:
		return "closed"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Error wraps a Code with a cause and optional structured fields (link
// id, topic, attempt count, reason code...) for logging.
type Error struct {
	code   Code
	msg    string
	cause  error
	Fields map[string]any
}

func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

func Wrap(code Code, msg string, cause error) *Error {
	return &Error{code: code, msg: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Code returns the classification of this error, mirroring the
// teacher's framework.HTTPStatus idiom of letting an error type expose
// its own category via a method instead of string matching.
func (e *Error) Code() Code {
	return e.code
}

// With attaches a structured field and returns the same error for
// chaining, e.g. apperr.New(apperr.Full, "spool full").With("topic", t).
func (e *Error) With(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any, 2)
	}
	e.Fields[key] = value
	return e
}

// Is lets errors.Is(err, apperr.New(code, "")) match purely on code,
// so callers can do errors.Is(err, apperr.ErrFull) style checks against
// the sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.code == e.code
}

// Sentinels for errors.Is comparisons against a bare code, e.g.
// errors.Is(err, apperr.ErrClosed).
var (
	ErrInvalidArguments = New(InvalidArguments, "")
	ErrUnauthorized     = New(Unauthorized, "")
	ErrFull             = New(Full, "")
	ErrTooLarge         = New(TooLarge, "")
	ErrOffline          = New(Offline, "")
	ErrRetryable        = New(Retryable, "")
	ErrNonRetryable      = New(NonRetryable, "")
	ErrTimeout          = New(Timeout, "")
	ErrClosed           = New(Closed, "")
	ErrInterrupted      = New(Interrupted, "")
)

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error, and false otherwise.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.code, true
	}
	return 0, false
}

// Causes flattens the errors.Join tree of err into its members,
// adapted from the teacher problem package's stackTrace walker over
// errors implementing Unwrap() []error. An error that only implements
// a single Unwrap() error (fmt.Errorf "%w") is returned as is, not
// unwrapped.
func Causes(err error) []error {
	result := make([]error, 0, 1)

	if err == nil {
		return result
	}

	type joined interface {
		Unwrap() []error
	}

	if j, ok := err.(joined); ok {
		for _, sub := range j.Unwrap() {
			result = append(result, Causes(sub)...)
		}
		return result
	}

	return append(result, err)
}
