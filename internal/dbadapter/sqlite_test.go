package dbadapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-sql-console/internal/domain"
)

func TestSQLiteValidateQuery_AllowedQueries(t *testing.T) {
	adapter := &SQLiteAdapter{}
	allowedQueries := []string{
		"SELECT * FROM users",
		"SELECT id, name FROM users WHERE id = 1",
		"select * from users",
		"EXPLAIN SELECT * FROM users",
		"EXPLAIN QUERY PLAN SELECT * FROM users",
		"SELECT * FROM pragma_table_info('users')",
		"SELECT * FROM settings",
		"SELECT * FROM user_settings WHERE setting_name = 'theme'",
		"SELECT created_at FROM orders",
		"SELECT * FROM users WHERE name = 'DROP TABLE users'",
		"SELECT * FROM [my table]",
		"SELECT [delete], `drop` FROM t",
		`SELECT name AS "update" FROM products`,
		"WITH t AS (SELECT 1 AS n) SELECT n FROM t",
	}

	for _, query := range allowedQueries {
		t.Run(query, func(t *testing.T) {
			assert.NoError(t, adapter.ValidateQuery(query))
		})
	}
}

func TestSQLiteValidateQuery_BlockedQueries(t *testing.T) {
	adapter := &SQLiteAdapter{}
	blockedQueries := []struct {
		query       string
		shouldBlock string
	}{
		{"INSERT INTO users VALUES (1, 'test')", "INSERT"},
		{"UPDATE users SET name = 'test'", "UPDATE"},
		{"DELETE FROM users", "DELETE"},
		{"DROP TABLE users", "DROP"},
		{"CREATE TABLE test (id INT)", "CREATE"},
		{"ALTER TABLE users ADD COLUMN age INT", "ALTER"},
		{"DESCRIBE users", "not whitelisted"},
		{"PRAGMA table_info(users)", "not whitelisted"},
		{"EXPLAIN PRAGMA journal_mode = WAL", "PRAGMA write"},
		{`EXPLAIN PRAGMA "journal_mode" = WAL`, "PRAGMA write"},
		{"SELECT load_extension('evil.so')", "load_extension"},
		{"SELECT writefile('/tmp/x', 'data')", "writefile"},
		{"SELECT readfile('/etc/passwd')", "readfile"},
		{"SELECT edit(content) FROM notes", "edit"},
		{"SELECT fts3_tokenizer('simple')", "fts3_tokenizer"},
		{"REPLACE INTO users VALUES (1, 'test')", "REPLACE"},
		{"ATTACH DATABASE '/tmp/other.db' AS other", "ATTACH"},
		{"DETACH DATABASE other", "DETACH"},
		{"VACUUM", "VACUUM"},
		{"REINDEX users", "REINDEX"},
		{"SELECT 1; DROP TABLE users", "multiple statements"},
		{"WITH t AS (SELECT 1) DELETE FROM users", "data-modifying WITH"},
	}

	for _, tc := range blockedQueries {
		t.Run(tc.query, func(t *testing.T) {
			err := adapter.ValidateQuery(tc.query)
			require.Error(t, err, "expected query to be blocked for %s", tc.shouldBlock)
			assert.True(t, errors.Is(err, domain.ErrStatementRejected), "got %v", err)
		})
	}
}

func TestSQLiteRemoveStringsAndComments(t *testing.T) {
	adapter := &SQLiteAdapter{}
	tests := []struct {
		input    string
		expected string
	}{
		{
			input:    "SELECT * FROM users WHERE name = 'DROP TABLE'",
			expected: "SELECT * FROM users WHERE name = ''",
		},
		{
			input:    "SELECT * FROM users -- comment",
			expected: "SELECT * FROM users  ",
		},
		{
			input:    "SELECT * FROM users /* comment */",
			expected: "SELECT * FROM users  ",
		},
		{
			input:    "SELECT * FROM `table_name`",
			expected: "SELECT * FROM `table_name`",
		},
		{
			input:    "SELECT * FROM [table_name]",
			expected: "SELECT * FROM [table_name]",
		},
		{
			input:    `SELECT "a""b" FROM t WHERE x = 'it''s'`,
			expected: `SELECT "a""b" FROM t WHERE x = ''`,
		},
		{
			input:    `SELECT 'a\' FROM t`,
			expected: `SELECT '' FROM t`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, adapter.RemoveStringsAndComments(tc.input))
		})
	}
}

func TestSQLiteBuildDSN(t *testing.T) {
	adapter := &SQLiteAdapter{}
	tests := []struct {
		path     string
		readOnly bool
		expected string
	}{
		{"/data/app.db", true, "file:/data/app.db?mode=ro"},
		{"/data/app.db", false, "file:/data/app.db"},
		{"/data/app.db?cache=shared", true, "file:/data/app.db?cache=shared&mode=ro"},
		{"file:/data/app.db?mode=rw", true, "file:/data/app.db?mode=rw"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			t.Setenv("MCP_SQLITE_PATH", tc.path)
			dsn, err := adapter.BuildDSN(tc.readOnly)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, dsn)
		})
	}

	t.Setenv("MCP_SQLITE_PATH", "")
	_, err := adapter.BuildDSN(true)
	assert.ErrorContains(t, err, "MCP_SQLITE_PATH")
}

func TestSQLiteDatabaseName(t *testing.T) {
	adapter := &SQLiteAdapter{}
	assert.Equal(t, "app", adapter.DatabaseName("file:/data/app.db?mode=ro"))
	assert.Equal(t, "shop", adapter.DatabaseName("/var/lib/shop.sqlite3"))
	assert.Equal(t, "notes", adapter.DatabaseName("notes.sqlite"))
}

func TestNew(t *testing.T) {
	tests := []struct {
		dbType string
		name   string
	}{
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
		{"mysql", "mysql"},
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
	}
	for _, tc := range tests {
		adapter, err := New(tc.dbType)
		require.NoError(t, err, tc.dbType)
		assert.Equal(t, tc.name, adapter.Name())
	}

	_, err := New("oracle")
	assert.ErrorContains(t, err, "oracle")
}
