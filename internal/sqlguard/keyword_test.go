package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadingKeyword(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"select 1", "SELECT"},
		{"  \n-- note\n/* block */ update t set a = 1", "UPDATE"},
		{"(SELECT 1)", ""},
		{"'x'", ""},
		{"", ""},
		{"-- only a comment", ""},
	}

	for _, tc := range tests {
		t.Run(tc.sql, func(t *testing.T) {
			assert.Equal(t, tc.want, LeadingKeyword(tc.sql))
		})
	}
}

func TestReturnsRows(t *testing.T) {
	assert.True(t, ReturnsRows("SELECT 1"))
	assert.True(t, ReturnsRows("with x as (select 1) select * from x"))
	assert.True(t, ReturnsRows("PRAGMA table_info('t')"))
	assert.True(t, ReturnsRows("INSERT INTO t (a) VALUES (1) RETURNING id"))
	assert.False(t, ReturnsRows("INSERT INTO t (a) VALUES ('RETURNING')"))
	assert.False(t, ReturnsRows("UPDATE t SET a = 1 WHERE id = 2"))
	assert.False(t, ReturnsRows("CREATE TABLE t (id int)"))
}
