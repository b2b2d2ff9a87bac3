package core

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable classification of an orchestrator error.
// Transports map kinds to status codes without string matching.
type Kind string

const (
	KindSessionNotFound Kind = "session_not_found"
	KindSessionDone     Kind = "session_done"
	KindActionPending   Kind = "action_pending"
	KindNoPendingAction Kind = "no_pending_action"
	KindInvalidArgument Kind = "invalid_argument"
	KindInternal        Kind = "internal"
)

// Error is a kinded orchestrator error. It wraps the underlying cause when
// there is one.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
