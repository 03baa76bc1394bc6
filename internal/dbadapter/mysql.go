package dbadapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/shakram02/go-sql-console/internal/tablequery"
)

// MySQLAdapter implements DBAdapter for MySQL databases.
//
// Every session runs with ANSI_QUOTES so the double-quoted identifiers
// produced by the query builder and the journal are understood.
type MySQLAdapter struct{}

// MySQL error numbers reported for writes in a read-only session.
const (
	erCantExecuteInReadOnlyTransaction = 1792
	erOptionPreventsStatement          = 1290
)

var mysqlRules = concatRules(
	[]rule{
		patternRule(`(?i)\bINTO\s+OUTFILE\b`, "INTO OUTFILE", true),
		patternRule(`(?i)\bINTO\s+DUMPFILE\b`, "INTO DUMPFILE", true),
		patternRule(`(?i)\bINTO\s+@`, "INTO @variable", true),
	},
	functionRules(
		"LOAD_FILE",
		"SLEEP", "BENCHMARK", "GET_LOCK", "RELEASE_LOCK", "IS_FREE_LOCK", "IS_USED_LOCK",
		"WAIT_FOR_EXECUTED_GTID_SET", "WAIT_UNTIL_SQL_THREAD_AFTER_GTIDS",
		"MASTER_POS_WAIT", "SOURCE_POS_WAIT",
	),
	keywordRules("CALL", "EXEC", "EXECUTE", "REPLACE", "LOAD", "HANDLER", "RENAME"),
)

func (a *MySQLAdapter) DriverName() string { return "mysql" }
func (a *MySQLAdapter) Name() string       { return "mysql" }

func (a *MySQLAdapter) BuildDSN(readOnly bool) (string, error) {
	host := os.Getenv("MCP_MYSQL_HOST")
	port := os.Getenv("MCP_MYSQL_PORT")
	db := os.Getenv("MCP_MYSQL_DB")
	user := os.Getenv("MCP_MYSQL_USER")
	password := os.Getenv("MCP_MYSQL_PASSWORD")

	var missing []string
	if host == "" {
		missing = append(missing, "MCP_MYSQL_HOST")
	}
	if port == "" {
		missing = append(missing, "MCP_MYSQL_PORT")
	}
	if db == "" {
		missing = append(missing, "MCP_MYSQL_DB")
	}
	if user == "" {
		missing = append(missing, "MCP_MYSQL_USER")
	}
	if password == "" {
		missing = append(missing, "MCP_MYSQL_PASSWORD")
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variables: %v", missing)
	}

	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = db
	cfg.Params = map[string]string{
		"sql_mode": "CONCAT(@@sql_mode, ',ANSI_QUOTES')",
	}
	if readOnly {
		cfg.Params["transaction_read_only"] = "1"
	}
	return cfg.FormatDSN(), nil
}

func (a *MySQLAdapter) DatabaseName(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return cfg.DBName
}

func (a *MySQLAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "SET SESSION TRANSACTION READ ONLY")
	return err
}

func (a *MySQLAdapter) ListTablesQuery(databaseName string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
		[]any{databaseName}
}

func (a *MySQLAdapter) ReadSchemaQuery(databaseName, tableName string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable, column_key, column_default, extra
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, []any{databaseName, tableName}
}

func (a *MySQLAdapter) ScanSchemaRow(rows *sql.Rows) (tablequery.ColumnInfo, error) {
	var colName, dataType, isNullable, colKey string
	var colDefault, extra sql.NullString

	if err := rows.Scan(&colName, &dataType, &isNullable, &colKey, &colDefault, &extra); err != nil {
		return tablequery.ColumnInfo{}, err
	}

	col := tablequery.ColumnInfo{
		Name:       colName,
		DataType:   dataType,
		Nullable:   isNullable == "YES",
		PrimaryKey: colKey == "PRI",
	}
	if colDefault.Valid {
		col.Default = &colDefault.String
	}
	return col, nil
}

func (a *MySQLAdapter) Dialect() tablequery.Dialect { return tablequery.MySQL{} }

// ValidateQuery runs the read-only whitelist over the MySQL-stripped text:
// MySQL's # comments and backslash escapes would otherwise be lexed
// differently from how the server reads them.
func (a *MySQLAdapter) ValidateQuery(sqlQuery string) error {
	cleaned := a.RemoveStringsAndComments(sqlQuery)
	return validate(sqlQuery, cleaned, cleaned, "\"`", mysqlRules)
}

// RemoveStringsAndComments strips string literals and comments from SQL
// for safe keyword detection. MySQL-specific: supports # comments, backtick
// identifiers, and backslash escaping in strings.
func (a *MySQLAdapter) RemoveStringsAndComments(sql string) string {
	var result strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		// Single-line comment starting with -- or # (MySQL-specific)
		if (i+1 < n && sql[i] == '-' && sql[i+1] == '-') || sql[i] == '#' {
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

		// Single-quoted string
		if sql[i] == '\'' {
			i++
			for i < n {
				if sql[i] == '\'' {
					if i+1 < n && sql[i+1] == '\'' {
						i += 2 // Escaped quote
						continue
					}
					i++
					break
				}
				if sql[i] == '\\' && i+1 < n {
					i += 2 // Escaped character (MySQL-specific)
					continue
				}
				i++
			}
			result.WriteString("''") // Placeholder for string
			continue
		}

		// Double-quoted identifier (ANSI_QUOTES): "" escapes, no backslash
		if sql[i] == '"' {
			i++
			for i < n {
				if sql[i] == '"' {
					if i+1 < n && sql[i+1] == '"' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			result.WriteString(`""`) // Placeholder for identifier
			continue
		}

		// Backtick-quoted identifier (MySQL-specific)
		if sql[i] == '`' {
			result.WriteByte('`')
			i++
			for i < n && sql[i] != '`' {
				result.WriteByte(sql[i])
				i++
			}
			if i < n {
				result.WriteByte('`')
				i++
			}
			continue
		}

		result.WriteByte(sql[i])
		i++
	}

	return result.String()
}

func (a *MySQLAdapter) ErrorMessage(err error) string {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err.Error()
	}

	msg := fmt.Sprintf("Error %d (%s): %s", myErr.Number, string(myErr.SQLState[:]), myErr.Message)
	switch myErr.Number {
	case erCantExecuteInReadOnlyTransaction, erOptionPreventsStatement:
		return "database session is read-only: " + msg
	}
	return msg
}
