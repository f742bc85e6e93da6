package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the §7 error taxonomy. Generalizes the teacher's flat
// sentinel-error block (core/errors.go) into a typed error with a Kind field
// so callers can branch on category while the message stays descriptive.
type ErrorKind string

const (
	InvalidArgument    ErrorKind = "invalid_argument"
	Duplicate          ErrorKind = "duplicate"
	NotFound           ErrorKind = "not_found"
	InvalidTransition  ErrorKind = "invalid_transition"
	TypeMismatch       ErrorKind = "type_mismatch"
	Disposed           ErrorKind = "disposed"
	Cancelled          ErrorKind = "cancelled"
	ConfigurationError ErrorKind = "configuration_error"

	// Internal marks a failure that originated from a recovered panic rather
	// than a caller mistake — §7 classifies bad input as InvalidArgument, but
	// a panic inside a handler or middleware is, by definition, a bug rather
	// than something a caller did wrong, so it gets its own kind.
	Internal ErrorKind = "internal"
)

// DispatchError is the runtime's error type. Every operation documented in
// §7 as failing "with <Kind>" returns one of these (wrapped where a lower
// layer's error is the cause).
type DispatchError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DispatchError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, ErrDuplicate) style comparisons against the
// exported sentinels below: a *DispatchError matches a target for the
// purposes of errors.Is when their Kind matches and the target carries no
// Message (a bare-kind sentinel).
func (e *DispatchError) Is(target error) bool {
	var other *DispatchError
	if errors.As(target, &other) {
		return other.Kind == e.Kind && other.Message == ""
	}
	return false
}

// NewError constructs a DispatchError of the given kind.
func NewError(kind ErrorKind, message string) *DispatchError {
	return &DispatchError{Kind: kind, Message: message}
}

// WrapError constructs a DispatchError of the given kind, wrapping cause.
func WrapError(kind ErrorKind, message string, cause error) *DispatchError {
	return &DispatchError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind from err, if it (or something it wraps) is a
// *DispatchError.
func KindOf(err error) (ErrorKind, bool) {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// Sentinels for errors.Is comparisons against a bare kind, mirroring the
// teacher's exported Err* values (core/errors.go) but expressed through the
// typed taxonomy above.
var (
	ErrInvalidArgument    = &DispatchError{Kind: InvalidArgument}
	ErrDuplicate          = &DispatchError{Kind: Duplicate}
	ErrNotFound           = &DispatchError{Kind: NotFound}
	ErrInvalidTransition  = &DispatchError{Kind: InvalidTransition}
	ErrTypeMismatch       = &DispatchError{Kind: TypeMismatch}
	ErrDisposed           = &DispatchError{Kind: Disposed}
	ErrCancelled          = &DispatchError{Kind: Cancelled}
	ErrConfigurationError = &DispatchError{Kind: ConfigurationError}
	ErrInternal           = &DispatchError{Kind: Internal}
)

// Carried over from the teacher (core/errors.go): generic router-level
// sentinels not covered by the §7 taxonomy, kept for the transport router.
var (
	// ErrNoHandler is returned when no handler matches the incoming topic/binding.
	ErrNoHandler = errors.New("eventmux: no handler registered for topic")
	// ErrAlreadyStarted is returned when Start is called on an already-running router.
	ErrAlreadyStarted = errors.New("eventmux: router already started")
)
