package dbadapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/shakram02/go-sql-console/internal/tablequery"
)

// SQLiteAdapter implements DBAdapter for SQLite databases.
type SQLiteAdapter struct{}

var sqliteRules = concatRules(
	functionRules("load_extension", "writefile", "edit", "fts3_tokenizer", "readfile"),
	keywordRules("REPLACE", "ATTACH", "DETACH", "REINDEX", "VACUUM"),
	// PRAGMA writes (PRAGMA x = value), but read PRAGMAs are fine
	[]rule{patternRule("(?i)\\bPRAGMA\\s+[\\w.\"`\\[\\]]+\\s*=", "PRAGMA write", false)},
)

func (a *SQLiteAdapter) DriverName() string { return "sqlite" }
func (a *SQLiteAdapter) Name() string       { return "sqlite" }

// BuildDSN returns a file: URI. The driver only forwards query parameters
// such as mode=ro to SQLite when the name carries the file: prefix.
func (a *SQLiteAdapter) BuildDSN(readOnly bool) (string, error) {
	dbPath := os.Getenv("MCP_SQLITE_PATH")
	if dbPath == "" {
		return "", fmt.Errorf("missing required environment variable: MCP_SQLITE_PATH")
	}

	dsn := dbPath
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if readOnly && !strings.Contains(dsn, "mode=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "mode=ro"
	}
	return dsn, nil
}

func (a *SQLiteAdapter) DatabaseName(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	name := filepath.Base(path)
	// Remove common extensions for display
	for _, ext := range []string{".sqlite3", ".sqlite", ".db"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func (a *SQLiteAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	// Read-only is primarily enforced via mode=ro in the DSN.
	_, err := db.ExecContext(ctx, "PRAGMA query_only = ON")
	return err
}

func (a *SQLiteAdapter) ListTablesQuery(string) (string, []any) {
	// SQLite has one database per file; the name is not needed.
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
		nil
}

func (a *SQLiteAdapter) ReadSchemaQuery(_, tableName string) (string, []any) {
	return `SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`,
		[]any{tableName}
}

func (a *SQLiteAdapter) ScanSchemaRow(rows *sql.Rows) (tablequery.ColumnInfo, error) {
	var cid int
	var name, colType string
	var notNull, pk int
	var dfltValue sql.NullString

	if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
		return tablequery.ColumnInfo{}, err
	}

	col := tablequery.ColumnInfo{
		Name:       name,
		DataType:   colType,
		Nullable:   notNull == 0,
		PrimaryKey: pk > 0,
	}
	if dfltValue.Valid {
		col.Default = &dfltValue.String
	}
	return col, nil
}

func (a *SQLiteAdapter) Dialect() tablequery.Dialect { return tablequery.SQLite{} }

func (a *SQLiteAdapter) ValidateQuery(sqlQuery string) error {
	return validate(sqlQuery, a.RemoveStringsAndComments(sqlQuery), sqlQuery, "\"`[", sqliteRules)
}

// RemoveStringsAndComments strips string literals and comments from SQL
// for safe keyword detection. SQLite-specific: no # comments, no backslash
// escaping, no dollar quotes, supports backtick and [bracket] identifiers.
func (a *SQLiteAdapter) RemoveStringsAndComments(sql string) string {
	var result strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		// Single-line comment starting with --
		if i+1 < n && sql[i] == '-' && sql[i+1] == '-' {
			for i < n && sql[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
			continue
		}

		// Multi-line comment /* */
		if i+1 < n && sql[i] == '/' && sql[i+1] == '*' {
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2 // Skip */
			result.WriteByte(' ')
			continue
		}

		switch sql[i] {
		case '\'':
			i = skipQuoted(sql, i, '\'', '\'')
			result.WriteString("''") // Placeholder for string
		case '"':
			end := skipQuoted(sql, i, '"', '"')
			result.WriteString(sql[i:end])
			i = end
		case '`':
			end := skipQuoted(sql, i, '`', '`')
			result.WriteString(sql[i:end])
			i = end
		case '[':
			// [bracket]-quoted identifier (SQL Server compatibility in SQLite)
			end := skipQuoted(sql, i, '[', ']')
			result.WriteString(sql[i:end])
			i = end
		default:
			result.WriteByte(sql[i])
			i++
		}
	}

	return result.String()
}

// skipQuoted returns the offset just past the quoted run opening at i. A
// doubled closing byte is an escape when open and close are the same.
func skipQuoted(sql string, i int, opening, closing byte) int {
	i++
	for i < len(sql) {
		if sql[i] == closing {
			if opening == closing && i+1 < len(sql) && sql[i+1] == closing {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func (a *SQLiteAdapter) ErrorMessage(err error) string {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err.Error()
	}
	if sqliteErr.Code()&0xff == sqlite3.SQLITE_READONLY {
		return "database is read-only: " + sqliteErr.Error()
	}
	return sqliteErr.Error()
}
