package sqlguard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		sql             string
		wantDestructive bool
		wantKind        DestructiveKind
	}{
		{"DROP TABLE users", true, DestructiveDrop},
		{"  drop index idx", true, DestructiveDrop},
		{"TRUNCATE users", true, DestructiveTruncate},
		{"ALTER TABLE users ADD COLUMN age INT", true, DestructiveAlter},
		{"DELETE FROM t", true, DestructiveDelete},
		{"DELETE FROM t WHERE id=1", false, DestructiveNone},
		{"delete from t where id = 1", false, DestructiveNone},
		{"UPDATE t SET a = 1", true, DestructiveUpdate},
		{"UPDATE t SET a = 1 WHERE id = 2", false, DestructiveNone},
		{"DELETE FROM nowhere_table", true, DestructiveDelete},
		{"DELETE FROM t_where", true, DestructiveDelete},
		{"CREATE TABLE t (id int)", false, DestructiveNone},
		{"GRANT ALL ON t TO bob", false, DestructiveNone},
		{"SELECT * FROM t", false, DestructiveNone},
		{"DROPPED", false, DestructiveNone},
		{"", false, DestructiveNone},
	}

	for _, tc := range tests {
		t.Run(tc.sql, func(t *testing.T) {
			a := Analyze(tc.sql)
			assert.Equal(t, tc.wantDestructive, a.Destructive)
			assert.Equal(t, tc.wantKind, a.Kind)
			if tc.wantDestructive {
				assert.Equal(t, tc.wantKind.String(), a.Operation)
				assert.NotEmpty(t, a.Warning)
			} else {
				assert.Empty(t, a.Warning)
			}
		})
	}
}

// The WHERE check is deliberately lexical: a WHERE hidden in a literal or a
// comment still counts. These cases pin that behaviour.
func TestAnalyze_WhereCheckIsNotLiteralAware(t *testing.T) {
	assert.False(t, Analyze("DELETE FROM t -- WHERE id = 1").Destructive)
	assert.False(t, Analyze("UPDATE t SET note = 'where'").Destructive)
	assert.False(t, Analyze(`DELETE FROM "where"`).Destructive)
}

func TestDestructiveKind_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Classify("TRUNCATE t"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"destructive_kind":"TRUNCATE"`)
}
