package sqlguard

import (
	"strings"

	"github.com/shakram02/go-sql-console/internal/sqlscan"
)

var rowKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "SHOW": true, "EXPLAIN": true, "VALUES": true,
	"TABLE": true, "PRAGMA": true, "DESCRIBE": true, "DESC": true,
}

// LeadingKeyword returns the first word of sql in upper case, skipping
// whitespace and comments. It returns "" when sql does not start with a word.
func LeadingKeyword(sql string) string {
	for i := 0; i < len(sql); {
		end, kind := sqlscan.Next(sql, i)
		switch {
		case kind == sqlscan.LineComment, kind == sqlscan.BlockComment:
		case kind == sqlscan.Ordinary && sqlscan.IsSpace(sql[i]):
		case kind == sqlscan.Ordinary && sqlscan.IsWordByte(sql[i]):
			j := i
			for j < len(sql) && sqlscan.IsWordByte(sql[j]) {
				j++
			}
			return strings.ToUpper(sql[i:j])
		default:
			return ""
		}
		i = end
	}
	return ""
}

// ReturnsRows reports whether executing sql yields a result set, so the
// driver can choose between a query and an exec round trip.
func ReturnsRows(sql string) bool {
	if rowKeywords[LeadingKeyword(sql)] {
		return true
	}
	return containsKeyword(sql, []string{"RETURNING"})
}
