package dbadapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/lib/pq"

	"github.com/shakram02/go-sql-console/internal/sqlscan"
	"github.com/shakram02/go-sql-console/internal/tablequery"
)

// PostgresAdapter implements DBAdapter for PostgreSQL databases.
type PostgresAdapter struct{}

// pqReadOnlyViolation is SQLSTATE read_only_sql_transaction.
const pqReadOnlyViolation = "25006"

var postgresRules = concatRules(
	[]rule{
		patternRule(`(?i)\bCOPY\s+.*\bTO\b`, "COPY ... TO", true),
		patternRule(`(?i)\bCOPY\s+.*\bFROM\b`, "COPY ... FROM", true),
	},
	functionRules(
		"pg_read_file", "pg_read_binary_file", "pg_ls_dir", "lo_import", "lo_export",
		"pg_sleep", "pg_sleep_for", "pg_sleep_until",
		"pg_advisory_lock", "pg_advisory_xact_lock", "pg_try_advisory_lock",
		"dblink", "dblink_exec", "set_config", "pg_terminate_backend", "pg_cancel_backend",
	),
	keywordRules("CALL", "EXECUTE", "COPY", "LISTEN", "NOTIFY", "PREPARE", "DEALLOCATE",
		"VACUUM", "REINDEX", "CLUSTER"),
)

func (a *PostgresAdapter) DriverName() string { return "postgres" }
func (a *PostgresAdapter) Name() string       { return "postgres" }

func (a *PostgresAdapter) BuildDSN(readOnly bool) (string, error) {
	host := os.Getenv("MCP_PG_HOST")
	port := os.Getenv("MCP_PG_PORT")
	db := os.Getenv("MCP_PG_DB")
	user := os.Getenv("MCP_PG_USER")
	password := os.Getenv("MCP_PG_PASSWORD")
	sslmode := os.Getenv("MCP_PG_SSLMODE")
	if sslmode == "" {
		sslmode = "prefer"
	}

	var missing []string
	if host == "" {
		missing = append(missing, "MCP_PG_HOST")
	}
	if port == "" {
		missing = append(missing, "MCP_PG_PORT")
	}
	if db == "" {
		missing = append(missing, "MCP_PG_DB")
	}
	if user == "" {
		missing = append(missing, "MCP_PG_USER")
	}
	if password == "" {
		missing = append(missing, "MCP_PG_PASSWORD")
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variables: %v", missing)
	}

	params := url.Values{}
	params.Set("sslmode", sslmode)
	if readOnly {
		// lib/pq passes unknown keys to the server as run-time parameters,
		// so every pooled session starts read-only.
		params.Set("default_transaction_read_only", "on")
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + db,
		RawQuery: params.Encode(),
	}
	return u.String(), nil
}

func (a *PostgresAdapter) DatabaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

func (a *PostgresAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY")
	return err
}

func (a *PostgresAdapter) ListTablesQuery(databaseName string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_catalog = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
		[]any{databaseName}
}

func (a *PostgresAdapter) ReadSchemaQuery(databaseName, tableName string) (string, []any) {
	return `SELECT c.column_name, c.data_type, c.is_nullable, c.column_default,
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage k
					ON k.constraint_name = tc.constraint_name
					AND k.table_schema = tc.table_schema
					AND k.table_name = tc.table_name
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND k.column_name = c.column_name
			) AS is_primary_key
		FROM information_schema.columns c
		WHERE c.table_catalog = $1 AND c.table_schema = 'public' AND c.table_name = $2
		ORDER BY c.ordinal_position`, []any{databaseName, tableName}
}

func (a *PostgresAdapter) ScanSchemaRow(rows *sql.Rows) (tablequery.ColumnInfo, error) {
	var colName, dataType, isNullable string
	var colDefault sql.NullString
	var isPK bool

	if err := rows.Scan(&colName, &dataType, &isNullable, &colDefault, &isPK); err != nil {
		return tablequery.ColumnInfo{}, err
	}

	col := tablequery.ColumnInfo{
		Name:       colName,
		DataType:   dataType,
		Nullable:   isNullable == "YES",
		PrimaryKey: isPK,
	}
	if colDefault.Valid {
		col.Default = &colDefault.String
	}
	return col, nil
}

func (a *PostgresAdapter) Dialect() tablequery.Dialect { return tablequery.Postgres{} }

func (a *PostgresAdapter) ValidateQuery(sqlQuery string) error {
	return validate(sqlQuery, a.RemoveStringsAndComments(sqlQuery), sqlQuery, `"`, postgresRules)
}

// RemoveStringsAndComments strips string literals and comments from SQL
// for safe keyword detection. PostgreSQL-specific: no # comments, no backtick
// identifiers, handles $$ dollar-quoted strings, no backslash escaping by default.
func (a *PostgresAdapter) RemoveStringsAndComments(sql string) string {
	return sqlscan.StripLiterals(sql)
}

func (a *PostgresAdapter) ErrorMessage(err error) string {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err.Error()
	}

	var b strings.Builder
	if pqErr.Code == pqReadOnlyViolation {
		b.WriteString("database session is read-only: ")
	}
	fmt.Fprintf(&b, "%s: %s (SQLSTATE %s)", pqErr.Severity, pqErr.Message, pqErr.Code)
	if pqErr.Detail != "" {
		fmt.Fprintf(&b, "\nDETAIL: %s", pqErr.Detail)
	}
	if pqErr.Hint != "" {
		fmt.Fprintf(&b, "\nHINT: %s", pqErr.Hint)
	}
	if pqErr.Position != "" {
		fmt.Fprintf(&b, "\nPOSITION: %s", pqErr.Position)
	}
	return b.String()
}
