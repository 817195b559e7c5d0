// Package sqlerr defines the error taxonomy surfaced by sessions, and the
// error-reporting context that decorates those errors with the statement,
// resource and SQL that were in flight when a call failed.
package sqlerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a session error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTooManyResults
	KindBinding
	KindQuery
	KindUpdate
	KindConnection
	KindCommit
	KindRollback
	KindClose
	KindFlush
	KindExecutor
)

func (k Kind) String() string {
	switch k {
	case KindTooManyResults:
		return "too_many_results"
	case KindBinding:
		return "binding"
	case KindQuery:
		return "query"
	case KindUpdate:
		return "update"
	case KindConnection:
		return "connection"
	case KindCommit:
		return "commit"
	case KindRollback:
		return "rollback"
	case KindClose:
		return "close"
	case KindFlush:
		return "flush"
	case KindExecutor:
		return "executor"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrTooManyResults = &Error{Kind: KindTooManyResults}
	ErrBinding        = &Error{Kind: KindBinding}
	ErrQuery          = &Error{Kind: KindQuery}
	ErrUpdate         = &Error{Kind: KindUpdate}
	ErrConnection     = &Error{Kind: KindConnection}
	ErrCommit         = &Error{Kind: KindCommit}
	ErrRollback       = &Error{Kind: KindRollback}
	ErrClose          = &Error{Kind: KindClose}
	ErrFlush          = &Error{Kind: KindFlush}
	ErrExecutor       = &Error{Kind: KindExecutor}
)

// Fixed message prefixes used by the session when wrapping failures.
const (
	MsgQuery      = "Error querying database."
	MsgUpdate     = "Error updating database."
	MsgCommit     = "Error committing transaction."
	MsgRollback   = "Error rolling back transaction."
	MsgFlush      = "Error flushing statements."
	MsgClose      = "Error closing session."
	MsgConnection = "Error getting a new connection."
)

// Error is the concrete error type returned across the session surface.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Detail is a snapshot of the error-reporting context taken when the
	// error was wrapped. Empty when no context was active.
	Detail string
}

// New creates an error of the given kind without a cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with a fixed message and a snapshot of ec. If cause is
// already an *Error of the same kind it is returned as is so repeated
// wrapping along a call chain does not stack prefixes.
func Wrap(kind Kind, message string, cause error, ec *Context) *Error {
	var existing *Error
	if errors.As(cause, &existing) && existing.Kind == kind && existing.Message == message {
		return existing
	}
	e := &Error{Kind: kind, Message: message, Err: cause}
	if ec != nil {
		e.Detail = ec.String()
	}
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString("  Cause: ")
		sb.WriteString(e.Err.Error())
	}
	if e.Detail != "" {
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
