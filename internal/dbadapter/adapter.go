// Package dbadapter is the database driver collaborator of the console: one
// DBAdapter per supported database (PostgreSQL, MySQL, SQLite) describing the
// database-specific behavior, and Conn, which executes statements through
// database/sql on behalf of the core.
package dbadapter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shakram02/go-sql-console/internal/tablequery"
)

// DBAdapter defines the contract for database-specific behavior.
// Each supported database (MySQL, PostgreSQL, SQLite) implements this interface.
type DBAdapter interface {
	// DriverName returns the database/sql driver name (e.g., "mysql", "postgres", "sqlite").
	DriverName() string

	// Name returns the short database name, also used as the resource URI scheme.
	Name() string

	// BuildDSN constructs a DSN from environment variables. A read-only DSN
	// asks the server (or file) for read-only sessions where possible.
	BuildDSN(readOnly bool) (string, error)

	// DatabaseName extracts the database/file name from a DSN string.
	DatabaseName(dsn string) string

	// EnforceReadOnly configures the database connection for read-only access.
	EnforceReadOnly(ctx context.Context, db *sql.DB) error

	// ListTablesQuery returns the SQL query and arguments to list all tables.
	ListTablesQuery(databaseName string) (string, []any)

	// ReadSchemaQuery returns the SQL query and arguments to read column info for a table.
	ReadSchemaQuery(databaseName, tableName string) (string, []any)

	// ScanSchemaRow scans a single row from the schema query result.
	ScanSchemaRow(rows *sql.Rows) (tablequery.ColumnInfo, error)

	// Dialect returns the query builder dialect for this database.
	Dialect() tablequery.Dialect

	// ValidateQuery checks that a statement may run under the read-only policy.
	ValidateQuery(sql string) error

	// RemoveStringsAndComments strips string literals and comments from SQL
	// for safe keyword detection.
	RemoveStringsAndComments(sql string) string

	// ErrorMessage renders a driver error for operators.
	ErrorMessage(err error) string
}

// New returns the adapter for dbType.
func New(dbType string) (DBAdapter, error) {
	switch dbType {
	case "postgres", "postgresql":
		return &PostgresAdapter{}, nil
	case "mysql":
		return &MySQLAdapter{}, nil
	case "sqlite", "sqlite3":
		return &SQLiteAdapter{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}
