// Package sqlscan walks raw SQL text one lexical unit at a time so callers
// can look for keywords and statement separators without being fooled by
// string literals, quoted identifiers, dollar quotes or comments.
//
// The rules follow PostgreSQL lexing closely enough for guard decisions; it is
// not a tokenizer and never fails.
package sqlscan

import "strings"

// Kind identifies the lexical unit Next stepped over.
type Kind uint8

const (
	Ordinary Kind = iota
	SingleQuoted
	DoubleQuoted
	DollarQuoted
	LineComment
	BlockComment
)

func (k Kind) String() string {
	switch k {
	case Ordinary:
		return "ordinary"
	case SingleQuoted:
		return "single-quoted"
	case DoubleQuoted:
		return "double-quoted"
	case DollarQuoted:
		return "dollar-quoted"
	case LineComment:
		return "line-comment"
	case BlockComment:
		return "block-comment"
	default:
		return "unknown"
	}
}

// Opaque reports whether the unit's contents must be ignored by keyword and
// separator detection.
func (k Kind) Opaque() bool {
	return k != Ordinary
}

// Next advances past the lexical unit starting at offset i and returns its
// end offset (exclusive) together with its kind. An unterminated string,
// identifier, dollar quote or block comment extends to the end of input.
// Next does not allocate. It returns (len(sql), Ordinary) when i is at or
// past the end.
func Next(sql string, i int) (int, Kind) {
	n := len(sql)
	if i >= n {
		return n, Ordinary
	}

	switch c := sql[i]; {
	case c == '\'':
		j := i + 1
		for j < n {
			if sql[j] == '\'' {
				if j+1 < n && sql[j+1] == '\'' {
					j += 2
					continue
				}
				return j + 1, SingleQuoted
			}
			j++
		}
		return n, SingleQuoted

	case c == '"':
		// "" inside an identifier is not treated as an escape.
		if end := strings.IndexByte(sql[i+1:], '"'); end >= 0 {
			return i + 1 + end + 1, DoubleQuoted
		}
		return n, DoubleQuoted

	case c == '$':
		j := i + 1
		for j < n && IsWordByte(sql[j]) {
			j++
		}
		if j >= n || sql[j] != '$' {
			return i + 1, Ordinary
		}
		tag := sql[i : j+1]
		body := j + 1
		if end := strings.Index(sql[body:], tag); end >= 0 {
			return body + end + len(tag), DollarQuoted
		}
		return n, DollarQuoted

	case c == '-' && i+1 < n && sql[i+1] == '-':
		if end := strings.IndexByte(sql[i+2:], '\n'); end >= 0 {
			return i + 2 + end, LineComment
		}
		return n, LineComment

	case c == '/' && i+1 < n && sql[i+1] == '*':
		if end := strings.Index(sql[i+2:], "*/"); end >= 0 {
			return i + 2 + end + 2, BlockComment
		}
		return n, BlockComment
	}

	return i + 1, Ordinary
}

// IsWordByte reports whether b can be part of an unquoted keyword or
// identifier: ASCII letters, digits and underscore.
func IsWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// IsSpace reports whether b is SQL whitespace.
func IsSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// TrimLeftSpace drops leading whitespace.
func TrimLeftSpace(sql string) string {
	i := 0
	for i < len(sql) && IsSpace(sql[i]) {
		i++
	}
	return sql[i:]
}

// HasKeywordPrefix reports whether s starts with keyword (ASCII,
// case-insensitive) followed by a non-word byte or end of input.
func HasKeywordPrefix(s, keyword string) bool {
	if len(s) < len(keyword) || !strings.EqualFold(s[:len(keyword)], keyword) {
		return false
	}
	return len(s) == len(keyword) || !IsWordByte(s[len(keyword)])
}
