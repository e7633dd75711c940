package browser

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can decide whether to retry,
// fix their input, or give up.
type ErrorKind int

const (
	// KindInvalidParams is detected locally and never reaches the browser.
	KindInvalidParams ErrorKind = iota + 1
	// KindExternal covers navigation and other network-dependent failures.
	// These are usually transient.
	KindExternal
	// KindExecution covers protocol, script and process failures.
	KindExecution
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidParams:
		return "invalid_parameters"
	case KindExternal:
		return "external_service"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every Session operation.
type Error struct {
	Kind ErrorKind
	Op   string // action that failed, e.g. "click"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func invalidParams(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidParams, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func externalErr(op, msg string, err error) *Error {
	return &Error{Kind: KindExternal, Op: op, Msg: msg, Err: err}
}

func execErr(op, msg string, err error) *Error {
	return &Error{Kind: KindExecution, Op: op, Msg: msg, Err: err}
}

// KindOf returns the classification of err. Errors that did not originate
// here are treated as execution failures; URL safety rejections are invalid
// parameters.
func KindOf(err error) ErrorKind {
	if err == nil {
		return 0
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	var ue *URLSafetyError
	if errors.As(err, &ue) {
		return KindInvalidParams
	}
	return KindExecution
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
