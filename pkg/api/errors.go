package api

import (
	"errors"
	"fmt"
)

// Kind classifies the failures the core can produce. The taxonomy is
// internal: it never crosses a wire, but the reporter and the exit-code
// logic dispatch on it.
type Kind string

const (
	KindConfigLoad           Kind = "config-load"
	KindInvalidSession       Kind = "invalid-session"
	KindRequiresCycle        Kind = "requires-cycle"
	KindRequiresMissing      Kind = "requires-missing"
	KindBackendUnavailable   Kind = "backend-unavailable"
	KindInterpreterMissing   Kind = "interpreter-missing"
	KindCommandFailed        Kind = "command-failed"
	KindExternalUse          Kind = "external-use"
	KindUnsupportedOperation Kind = "unsupported-operation"
	KindInvalidOption        Kind = "invalid-option"
	KindVersionMismatch      Kind = "version-mismatch"
)

// Error is the concrete error type raised by the core. It wraps an optional
// cause, so errors.Is / errors.As keep working across package boundaries.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf constructs an *Error with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error around a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain, or "" when the error did not
// originate in the core.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
