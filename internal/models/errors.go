package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure classifications surfaced to the
// tool dispatcher. Raw executor or transport text is never used as a kind.
type ErrorKind string

const (
	ErrAuthUnavailable         ErrorKind = "auth_unavailable"
	ErrAuthCancelled           ErrorKind = "auth_cancelled"
	ErrInvalidTransition       ErrorKind = "invalid_transition"
	ErrInvalidOperation        ErrorKind = "invalid_operation"
	ErrAmbiguousSuccess        ErrorKind = "ambiguous_success"
	ErrBridgeFailure           ErrorKind = "bridge_failure"
	ErrBridgeTimeout           ErrorKind = "bridge_timeout"
	ErrStaleCredentialRejected ErrorKind = "stale_credential_rejected"
)

// Error is a typed failure carrying an optional diagnostic detail. Detail is
// only populated for bridge failures, where the executor's captured output is
// the only available signal and must be preserved verbatim.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Detail) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func NewErrorWithDetail(kind ErrorKind, detail string, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Detail:  detail,
	}
}

// KindOf extracts the error kind from any error in the chain. Errors outside
// the taxonomy report as a bridge failure so callers always get a closed set.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ErrBridgeFailure
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind == kind
	}
	return false
}
