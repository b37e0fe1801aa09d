// Package errors defines the error taxonomy shared by the schema engine.
// Errors carry a Kind, the operation that produced them and an optional
// wrapped cause, and can be matched with Is or the standard errors.As.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	Unknown Kind = iota
	// Configuration reports an invalid table declaration or runner setup.
	Configuration
	// DDLExecution reports a CREATE or ALTER rejected by the database.
	DDLExecution
	// ManifestParse reports a malformed manifest line.
	ManifestParse
	// UpdateScript reports a failed update script.
	UpdateScript
	// Ledger reports a failure reading or writing the migration ledger.
	Ledger
	// Unsupported reports an operation the selected driver cannot perform.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration error"
	case DDLExecution:
		return "ddl execution error"
	case ManifestParse:
		return "manifest parse error"
	case UpdateScript:
		return "update script error"
	case Ledger:
		return "ledger error"
	case Unsupported:
		return "unsupported operation"
	default:
		return "unknown error"
	}
}

// Op names the operation that failed, e.g. "ddl.(Synchronizer).Commit".
type Op string

// Error provides a kind, operation, message and wrapped error.
type Error struct {
	Kind    Kind
	Op      Op
	Msg     string
	Wrapped error
}

// New creates an Error of the given kind.
func New(kind Kind, op Op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf is New with a format string.
func Newf(kind Kind, op Op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error wrapping err. A nil err returns nil. When kind is
// Unknown and err already carries a kind, that kind is kept.
func Wrap(err error, kind Kind, op Op, msg string) error {
	if err == nil {
		return nil
	}
	if kind == Unknown {
		kind = KindOf(err)
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Wrapped: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// KindOf returns the kind of the outermost Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether any Error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Wrapped
	}
	return false
}
