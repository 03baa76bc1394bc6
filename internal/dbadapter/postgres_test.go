package dbadapter

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-sql-console/internal/domain"
)

func TestPostgresValidateQuery_AllowedQueries(t *testing.T) {
	adapter := &PostgresAdapter{}
	allowedQueries := []string{
		"SELECT * FROM users",
		"SELECT id, name FROM users WHERE id = 1",
		"select * from users",
		"SHOW server_version",
		"EXPLAIN SELECT * FROM users",
		"EXPLAIN ANALYZE SELECT * FROM users",
		"WITH recent AS (SELECT * FROM orders) SELECT * FROM recent",
		"SELECT * FROM settings",
		"SELECT * FROM user_settings WHERE setting_name = 'theme'",
		"SELECT created_at FROM orders",
		"SELECT updated_at FROM products",
		"SELECT deleted FROM items",
		"SELECT * FROM users WHERE name = 'DROP TABLE users'", // keyword in string literal
		"SELECT * FROM t WHERE body = $$DROP TABLE users$$",
		"SELECT 1;  \n",
		`SELECT name AS "update" FROM products`, // keyword as quoted identifier
		`SELECT "drop;table" FROM t`,
	}

	for _, query := range allowedQueries {
		t.Run(query, func(t *testing.T) {
			assert.NoError(t, adapter.ValidateQuery(query))
		})
	}
}

func TestPostgresValidateQuery_BlockedQueries(t *testing.T) {
	adapter := &PostgresAdapter{}
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
		{"TRUNCATE TABLE users", "TRUNCATE"},
		{"GRANT ALL ON users TO bob", "GRANT"},
		{"REVOKE ALL ON users FROM bob", "REVOKE"},
		{"SET search_path = evil", "SET"},
		{"DESCRIBE users", "not whitelisted"},
		{"SELECT 1; DROP TABLE users", "multiple statements"},
		{"WITH x AS (DELETE FROM t RETURNING *) SELECT * FROM x", "data-modifying CTE"},
		{"EXPLAIN ANALYZE DELETE FROM t", "EXPLAIN ANALYZE of a write"},
		{"SELECT * FROM users FOR UPDATE", "row lock"},
		// PostgreSQL-specific blocked queries
		{"SELECT pg_sleep(10)", "pg_sleep"},
		{`SELECT "pg_sleep"(10)`, "quoted pg_sleep"},
		{"SELECT pg_sleep_for('5 seconds')", "pg_sleep_for"},
		{"SELECT pg_sleep_until('2025-01-01')", "pg_sleep_until"},
		{"SELECT pg_advisory_lock(1)", "pg_advisory_lock"},
		{"SELECT pg_advisory_xact_lock(1)", "pg_advisory_xact_lock"},
		{"SELECT pg_try_advisory_lock(1)", "pg_try_advisory_lock"},
		{"SELECT pg_read_file('/etc/passwd')", "pg_read_file"},
		{"SELECT pg_read_binary_file('/etc/passwd')", "pg_read_binary_file"},
		{"SELECT pg_ls_dir('/tmp')", "pg_ls_dir"},
		{"SELECT lo_import('/etc/passwd')", "lo_import"},
		{"SELECT lo_export(12345, '/tmp/out')", "lo_export"},
		{"SELECT set_config('default_transaction_read_only', 'off', false)", "set_config"},
		{"SELECT * FROM dblink('host=x', 'DELETE FROM t') AS t(a int)", "dblink"},
		{"COPY users TO '/tmp/data.csv'", "COPY TO"},
		{"COPY users FROM '/tmp/data.csv'", "COPY FROM"},
		{"CALL some_procedure()", "CALL"},
		{"EXECUTE some_statement", "EXECUTE"},
		{"LISTEN channel", "LISTEN"},
		{"NOTIFY channel", "NOTIFY"},
		{"PREPARE stmt AS SELECT 1", "PREPARE"},
		{"DEALLOCATE stmt", "DEALLOCATE"},
		{"VACUUM users", "VACUUM"},
		{"REINDEX TABLE users", "REINDEX"},
		{"CLUSTER users", "CLUSTER"},
	}

	for _, tc := range blockedQueries {
		t.Run(tc.query, func(t *testing.T) {
			err := adapter.ValidateQuery(tc.query)
			require.Error(t, err, "expected query to be blocked for %s", tc.shouldBlock)
			assert.True(t, errors.Is(err, domain.ErrStatementRejected), "got %v", err)
		})
	}
}

func TestPostgresValidateQuery_EmptyQuery(t *testing.T) {
	adapter := &PostgresAdapter{}
	assert.Error(t, adapter.ValidateQuery(""))
	assert.Error(t, adapter.ValidateQuery("   "))
	assert.Error(t, adapter.ValidateQuery("-- just a comment"))
}

func TestPostgresValidateQuery_CommentInjection(t *testing.T) {
	adapter := &PostgresAdapter{}
	queries := []string{
		"SELECT 1 -- ; DROP TABLE users",
		"SELECT 1 /* ; DROP TABLE users */",
	}

	for _, query := range queries {
		t.Run(query, func(t *testing.T) {
			assert.NoError(t, adapter.ValidateQuery(query))
		})
	}
}

func TestPostgresRemoveStringsAndComments(t *testing.T) {
	adapter := &PostgresAdapter{}
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single-quoted string stripped",
			input:    "SELECT * FROM users WHERE name = 'DROP TABLE'",
			expected: "SELECT * FROM users WHERE name = ''",
		},
		{
			name:     "-- comment stripped",
			input:    "SELECT * FROM users -- comment",
			expected: "SELECT * FROM users  ",
		},
		{
			name:     "/* */ comment stripped",
			input:    "SELECT * FROM users /* comment */",
			expected: "SELECT * FROM users  ",
		},
		{
			name:     "double-quoted identifier preserved",
			input:    `SELECT * FROM "table_name"`,
			expected: `SELECT * FROM "table_name"`,
		},
		{
			name:     "dollar-quoted body stripped",
			input:    "SELECT $tag$DROP TABLE users$tag$",
			expected: "SELECT ''",
		},
		{
			name:     "# is not a comment",
			input:    "SELECT # FROM users",
			expected: "SELECT # FROM users",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, adapter.RemoveStringsAndComments(tc.input))
		})
	}
}

func TestPostgresBuildDSN(t *testing.T) {
	t.Setenv("MCP_PG_HOST", "db.internal")
	t.Setenv("MCP_PG_PORT", "5432")
	t.Setenv("MCP_PG_DB", "shop")
	t.Setenv("MCP_PG_USER", "alice")
	t.Setenv("MCP_PG_PASSWORD", "p@ss word")
	t.Setenv("MCP_PG_SSLMODE", "")

	adapter := &PostgresAdapter{}
	dsn, err := adapter.BuildDSN(true)
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "alice", u.User.Username())
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
	assert.Equal(t, "prefer", u.Query().Get("sslmode"))
	assert.Equal(t, "on", u.Query().Get("default_transaction_read_only"))
	assert.Equal(t, "shop", adapter.DatabaseName(dsn))

	dsn, err = adapter.BuildDSN(false)
	require.NoError(t, err)
	assert.NotContains(t, dsn, "default_transaction_read_only")
}

func TestPostgresBuildDSN_MissingVars(t *testing.T) {
	for _, k := range []string{"MCP_PG_HOST", "MCP_PG_PORT", "MCP_PG_DB", "MCP_PG_USER", "MCP_PG_PASSWORD"} {
		t.Setenv(k, "")
	}
	t.Setenv("MCP_PG_HOST", "localhost")

	_, err := (&PostgresAdapter{}).BuildDSN(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP_PG_PORT")
	assert.NotContains(t, err.Error(), "MCP_PG_HOST")
}

func TestPostgresErrorMessage(t *testing.T) {
	adapter := &PostgresAdapter{}

	err := fmt.Errorf("execute: %w", &pq.Error{
		Severity: "ERROR",
		Code:     "25006",
		Message:  "cannot execute INSERT in a read-only transaction",
	})
	msg := adapter.ErrorMessage(err)
	assert.True(t, strings.HasPrefix(msg, "database session is read-only: "), msg)
	assert.Contains(t, msg, "SQLSTATE 25006")

	msg = adapter.ErrorMessage(&pq.Error{
		Severity: "ERROR",
		Code:     "42P01",
		Message:  `relation "nope" does not exist`,
		Hint:     "check the name",
		Position: "15",
	})
	assert.Equal(t, "ERROR: relation \"nope\" does not exist (SQLSTATE 42P01)\nHINT: check the name\nPOSITION: 15", msg)

	assert.Equal(t, "boom", adapter.ErrorMessage(errors.New("boom")))
}
