// Package domain defines the error taxonomy and the driver-facing ports shared
// by the SQL safety core and the console.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a recoverable core error so callers can branch on it
// without parsing messages.
type Kind string

const (
	KindInvalidCharacter     Kind = "INVALID_CHARACTER"
	KindUnknownColumn        Kind = "UNKNOWN_COLUMN"
	KindUnknownTable         Kind = "UNKNOWN_TABLE"
	KindMalformedCursor      Kind = "MALFORMED_CURSOR"
	KindInvalidRequest       Kind = "INVALID_REQUEST"
	KindRowNotFound          Kind = "ROW_NOT_FOUND"
	KindStatementRejected    Kind = "STATEMENT_REJECTED"
	KindConfirmationRequired Kind = "CONFIRMATION_REQUIRED"
	KindReadOnly             Kind = "READ_ONLY"
	KindJournalEntryNotFound Kind = "JOURNAL_ENTRY_NOT_FOUND"
	KindAlreadyUndone        Kind = "ALREADY_UNDONE"
	KindUndoUnsupported      Kind = "UNDO_UNSUPPORTED"
)

// Error is the structured error returned by the core packages.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Is reports whether target is a *Error of the same kind, so the sentinels
// below work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrInvalidCharacter     = &Error{Kind: KindInvalidCharacter}
	ErrUnknownColumn        = &Error{Kind: KindUnknownColumn}
	ErrUnknownTable         = &Error{Kind: KindUnknownTable}
	ErrMalformedCursor      = &Error{Kind: KindMalformedCursor}
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest}
	ErrRowNotFound          = &Error{Kind: KindRowNotFound}
	ErrStatementRejected    = &Error{Kind: KindStatementRejected}
	ErrConfirmationRequired = &Error{Kind: KindConfirmationRequired}
	ErrReadOnly             = &Error{Kind: KindReadOnly}
	ErrJournalEntryNotFound = &Error{Kind: KindJournalEntryNotFound}
	ErrAlreadyUndone        = &Error{Kind: KindAlreadyUndone}
	ErrUndoUnsupported      = &Error{Kind: KindUndoUnsupported}
)

// Errorf creates an Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
