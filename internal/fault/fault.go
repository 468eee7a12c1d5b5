package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an operation outcome that callers are expected to handle.
type Kind string

const (
	// KindUnauthorized means no valid session accompanied the request.
	KindUnauthorized Kind = "unauthorized"
	// KindPermissionDenied means the session is valid but the actor lacks the role or ownership.
	KindPermissionDenied Kind = "permission_denied"
	// KindNotFound covers both absent resources and resources outside the actor's family.
	KindNotFound Kind = "not_found"
	// KindValidationFailed means required input was missing or malformed.
	KindValidationFailed Kind = "validation_failed"
	// KindConflict means the operation lost a uniqueness or state race.
	KindConflict Kind = "conflict"
	// KindExpired means a time-boxed credential was presented past its expiry.
	KindExpired Kind = "expired"
)

// Error is a typed operation outcome carrying an operation code for logs and a
// Kind for callers. Storage-level failures are not wrapped in an Error; they
// propagate as plain errors.
type Error struct {
	kind Kind
	op   string
	msg  string
	err  error
}

// New constructs a fault for the given operation.
func New(kind Kind, op, msg string) *Error {
	return &Error{kind: kind, op: op, msg: msg}
}

// Wrap constructs a fault that preserves an underlying cause.
func Wrap(kind Kind, op, msg string, cause error) *Error {
	return &Error{kind: kind, op: op, msg: msg, err: cause}
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.op, e.msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.op, e.msg, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the outcome classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// Op returns the operation code, e.g. "entries.update".
func (e *Error) Op() string {
	return e.op
}

// Message returns the caller-visible description.
func (e *Error) Message() string {
	return e.msg
}

// KindOf extracts the Kind from err, or "" when err is not a fault.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
