// Package sqlesc turns caller-supplied values and names into SQL fragments
// that cannot break out of their quoting.
//
// Escaping is pure character doubling. Whether a name is a real column of a
// table is decided by tablequery's schema checks, not here.
package sqlesc

import (
	"strings"

	"github.com/shakram02/go-sql-console/internal/domain"
)

var valueEscaper = strings.NewReplacer(`'`, `''`, `\`, `\\`)

// EscapeValue doubles every single quote and backslash in s. Input containing
// a NUL byte is rejected: the driver passes NUL-terminated strings and would
// silently cut the value short.
func EscapeValue(s string) (string, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return "", domain.Errorf(domain.KindInvalidCharacter, "value contains a NUL byte")
	}
	return valueEscaper.Replace(s), nil
}

// EscapeIdentifier doubles every double quote in s and rejects NUL bytes.
func EscapeIdentifier(s string) (string, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return "", domain.Errorf(domain.KindInvalidCharacter, "identifier contains a NUL byte")
	}
	return strings.ReplaceAll(s, `"`, `""`), nil
}

// Literal is a single-quoted SQL string literal whose contents have been
// escaped. It can only be built by the Quote* functions of this package.
type Literal struct {
	sql string
}

// QuoteLiteral escapes v and wraps it in single quotes.
func QuoteLiteral(v string) (Literal, error) {
	esc, err := EscapeValue(v)
	if err != nil {
		return Literal{}, err
	}
	return Literal{sql: "'" + esc + "'"}, nil
}

// QuoteContains escapes v and wraps it as a '%v%' pattern. LIKE wildcards in
// v are kept, so callers can still type their own % and _.
func QuoteContains(v string) (Literal, error) {
	esc, err := EscapeValue(v)
	if err != nil {
		return Literal{}, err
	}
	return Literal{sql: "'%" + esc + "%'"}, nil
}

// Null is the SQL NULL literal.
var Null = Literal{sql: "NULL"}

// IsZero reports whether l was never produced by a constructor.
func (l Literal) IsZero() bool { return l.sql == "" }

// String returns the literal as SQL text. The zero Literal renders as NULL.
func (l Literal) String() string {
	if l.sql == "" {
		return "NULL"
	}
	return l.sql
}

// QuotedIdent is a double-quoted identifier whose contents have been escaped.
type QuotedIdent struct {
	sql string
}

// QuoteIdentifier escapes name and wraps it in double quotes. Empty names are
// rejected.
func QuoteIdentifier(name string) (QuotedIdent, error) {
	if name == "" {
		return QuotedIdent{}, domain.Errorf(domain.KindInvalidRequest, "identifier is empty")
	}
	esc, err := EscapeIdentifier(name)
	if err != nil {
		return QuotedIdent{}, err
	}
	return QuotedIdent{sql: `"` + esc + `"`}, nil
}

// IsZero reports whether q was never produced by QuoteIdentifier.
func (q QuotedIdent) IsZero() bool { return q.sql == "" }

func (q QuotedIdent) String() string { return q.sql }
