package sqlguard

import (
	"encoding/json"
	"regexp"

	"github.com/shakram02/go-sql-console/internal/sqlscan"
)

// DestructiveKind names the operation that made a statement destructive.
type DestructiveKind int

const (
	DestructiveNone DestructiveKind = iota
	DestructiveDrop
	DestructiveTruncate
	DestructiveAlter
	DestructiveDelete
	DestructiveUpdate
)

func (k DestructiveKind) String() string {
	switch k {
	case DestructiveDrop:
		return "DROP"
	case DestructiveTruncate:
		return "TRUNCATE"
	case DestructiveAlter:
		return "ALTER"
	case DestructiveDelete:
		return "DELETE"
	case DestructiveUpdate:
		return "UPDATE"
	default:
		return "NONE"
	}
}

// MarshalJSON renders the kind by name.
func (k DestructiveKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Analysis is the result of destructive-operation analysis.
type Analysis struct {
	Destructive bool
	Kind        DestructiveKind
	Operation   string
	Warning     string
}

// whereWord matches WHERE anywhere in the raw text, including inside
// literals and comments.
var whereWord = regexp.MustCompile(`(?i)\bWHERE\b`)

// Analyze decides whether sql needs an explicit confirmation before it runs.
// DROP, TRUNCATE and ALTER always do; DELETE and UPDATE only when the text has
// no WHERE word at all.
func Analyze(sql string) Analysis {
	s := sqlscan.TrimLeftSpace(sql)

	switch {
	case sqlscan.HasKeywordPrefix(s, "DROP"):
		return destructive(DestructiveDrop, "DROP permanently removes the object and its data; this cannot be undone")
	case sqlscan.HasKeywordPrefix(s, "TRUNCATE"):
		return destructive(DestructiveTruncate, "TRUNCATE deletes all rows in the table")
	case sqlscan.HasKeywordPrefix(s, "ALTER"):
		return destructive(DestructiveAlter, "ALTER changes the table schema")
	case sqlscan.HasKeywordPrefix(s, "DELETE"):
		if !whereWord.MatchString(sql) {
			return destructive(DestructiveDelete, "DELETE without WHERE removes every row in the table")
		}
	case sqlscan.HasKeywordPrefix(s, "UPDATE"):
		if !whereWord.MatchString(sql) {
			return destructive(DestructiveUpdate, "UPDATE without WHERE modifies every row in the table")
		}
	}

	return Analysis{Kind: DestructiveNone}
}

func destructive(kind DestructiveKind, warning string) Analysis {
	return Analysis{
		Destructive: true,
		Kind:        kind,
		Operation:   kind.String(),
		Warning:     warning,
	}
}
