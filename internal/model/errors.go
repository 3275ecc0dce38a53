package model

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures. The HTTP layer maps kinds to status codes.
type Kind string

const (
	KindInvalidRequest     Kind = "InvalidRequest"
	KindInvalidEngineInput Kind = "InvalidEngineInput"
	KindInsufficientData   Kind = "InsufficientData"
	KindSolverFailed       Kind = "SolverFailed"
	KindEngineCalculation  Kind = "EngineCalculation"
	KindCancelled          Kind = "Cancelled"
	KindNotImplemented     Kind = "NotImplemented"
)

// Error is an engine error tagged with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrInvalidEngineInput = &Error{Kind: KindInvalidEngineInput}
	ErrInsufficientData   = &Error{Kind: KindInsufficientData}
	ErrSolverFailed       = &Error{Kind: KindSolverFailed}
	ErrEngineCalculation  = &Error{Kind: KindEngineCalculation}
	ErrCancelled          = &Error{Kind: KindCancelled}
	ErrNotImplemented     = &Error{Kind: KindNotImplemented}
)

// Errorf builds a kinded error; %w verbs are honoured.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind carried by err, or KindEngineCalculation for
// untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindEngineCalculation
}
