// Package sqlguard classifies SQL statements for the console: whether a
// statement is allowed under the read-only policy, whether it is a script of
// several statements, and whether it is destructive enough to need an
// explicit confirmation.
//
// It is a lexical guard built on sqlscan, not a parser. It never returns an
// error for malformed SQL; the worst case is an over- or under-classification.
package sqlguard

import (
	"strings"

	"github.com/shakram02/go-sql-console/internal/domain"
	"github.com/shakram02/go-sql-console/internal/sqlscan"
)

// writeKeywords are the statement keywords that make a WITH or
// EXPLAIN ANALYZE statement unsafe under the read-only policy.
var writeKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER",
	"TRUNCATE", "CREATE", "COPY", "GRANT", "REVOKE",
}

// IsMultiStatement reports whether sql holds more than one statement: a bare
// semicolon (outside strings, identifiers, dollar quotes and comments) that
// is followed by anything other than whitespace.
func IsMultiStatement(sql string) bool {
	for i := 0; i < len(sql); {
		end, kind := sqlscan.Next(sql, i)
		if kind == sqlscan.Ordinary && sql[i] == ';' && !onlySpace(sql[end:]) {
			return true
		}
		i = end
	}
	return false
}

// ContainsWriteKeyword reports whether any write keyword appears as a whole
// word outside strings, identifiers, dollar quotes and comments.
func ContainsWriteKeyword(sql string) bool {
	return containsKeyword(sql, writeKeywords)
}

// containsKeyword scans whole unquoted words so that neither delete_log nor
// 'DELETE' matches DELETE.
func containsKeyword(sql string, keywords []string) bool {
	for i := 0; i < len(sql); {
		end, kind := sqlscan.Next(sql, i)
		if kind.Opaque() || !sqlscan.IsWordByte(sql[i]) {
			i = end
			continue
		}
		j := i
		for j < len(sql) && sqlscan.IsWordByte(sql[j]) {
			j++
		}
		word := sql[i:j]
		for _, kw := range keywords {
			if strings.EqualFold(word, kw) {
				return true
			}
		}
		i = j
	}
	return false
}

// IsReadSafe reports whether sql may run under the read-only policy.
func IsReadSafe(sql string) bool {
	return rejectReason(sql) == ""
}

// CheckReadSafe is IsReadSafe with the reason attached as a
// StatementRejected error.
func CheckReadSafe(sql string) error {
	if reason := rejectReason(sql); reason != "" {
		return domain.Errorf(domain.KindStatementRejected, "%s", reason)
	}
	return nil
}

func rejectReason(sql string) string {
	if IsMultiStatement(sql) {
		return "multiple statements are not allowed in read-only mode"
	}

	s := sqlscan.TrimLeftSpace(sql)
	if s == "" {
		return "empty query"
	}

	switch {
	case sqlscan.HasKeywordPrefix(s, "SELECT"), sqlscan.HasKeywordPrefix(s, "SHOW"):
		return ""

	case sqlscan.HasKeywordPrefix(s, "EXPLAIN"):
		if explainExecutes(s[len("EXPLAIN"):]) && ContainsWriteKeyword(sql) {
			return "EXPLAIN ANALYZE executes its target; write statements are not allowed in read-only mode"
		}
		return ""

	case sqlscan.HasKeywordPrefix(s, "WITH"):
		if ContainsWriteKeyword(sql) {
			return "WITH query contains a data-modifying statement"
		}
		return ""
	}

	return "only SELECT, SHOW, EXPLAIN and WITH queries are allowed in read-only mode"
}

// explainExecutes reports whether the text after EXPLAIN asks the server to
// run the target. A parenthesised option list may carry ANALYZE, so it is
// treated the same way.
func explainExecutes(rest string) bool {
	rest = sqlscan.TrimLeftSpace(rest)
	return sqlscan.HasKeywordPrefix(rest, "ANALYZE") ||
		sqlscan.HasKeywordPrefix(rest, "ANALYSE") ||
		strings.HasPrefix(rest, "(")
}

// Statement is the classification of one raw SQL text.
type Statement struct {
	SQL             string          `json:"sql"`
	MultiStatement  bool            `json:"is_multi_statement"`
	ReadSafe        bool            `json:"is_read_safe"`
	Destructive     bool            `json:"is_destructive"`
	DestructiveKind DestructiveKind `json:"destructive_kind"`
	Warning         string          `json:"warning,omitempty"`
}

// Classify derives every Statement attribute for sql.
func Classify(sql string) Statement {
	a := Analyze(sql)
	return Statement{
		SQL:             sql,
		MultiStatement:  IsMultiStatement(sql),
		ReadSafe:        IsReadSafe(sql),
		Destructive:     a.Destructive,
		DestructiveKind: a.Kind,
		Warning:         a.Warning,
	}
}

func onlySpace(s string) bool {
	for i := 0; i < len(s); i++ {
		if !sqlscan.IsSpace(s[i]) {
			return false
		}
	}
	return true
}
