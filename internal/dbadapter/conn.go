package dbadapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shakram02/go-sql-console/internal/domain"
	"github.com/shakram02/go-sql-console/internal/sqlguard"
	"github.com/shakram02/go-sql-console/internal/tablequery"
)

// Pool and connection defaults.
const (
	ConnectionTimeout  = 10 * time.Second
	MaxConnectionsIdle = 5
	MaxConnectionsOpen = 10
	DefaultMaxRows     = 10000
)

// Options configures Open.
type Options struct {
	ReadOnly bool
	MaxRows  int // rows kept per result before it is marked truncated
	Logger   *slog.Logger
}

// Conn is an open database handle bound to its adapter. It implements
// domain.Executor and domain.ErrorDescriber.
type Conn struct {
	db           *sql.DB
	adapter      DBAdapter
	databaseName string
	maxRows      int
	logger       *slog.Logger
}

var (
	_ domain.Executor       = (*Conn)(nil)
	_ domain.ErrorDescriber = (*Conn)(nil)
)

// Open connects to the database via the adapter and pings it.
func Open(ctx context.Context, adapter DBAdapter, dsn string, opts Options) (*Conn, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	db, err := sql.Open(adapter.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxIdleConns(MaxConnectionsIdle)
	db.SetMaxOpenConns(MaxConnectionsOpen)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if opts.ReadOnly {
		if err := adapter.EnforceReadOnly(ctx, db); err != nil {
			logger.Warn("could not set read-only mode", "db", adapter.Name(), "error", err)
		}
	}

	return &Conn{
		db:           db,
		adapter:      adapter,
		databaseName: adapter.DatabaseName(dsn),
		maxRows:      maxRows,
		logger:       logger,
	}, nil
}

// Adapter returns the adapter the connection was opened with.
func (c *Conn) Adapter() DBAdapter { return c.adapter }

// DatabaseName returns the database (or file) name taken from the DSN.
func (c *Conn) DatabaseName() string { return c.databaseName }

// Execute runs one statement. Statements that produce rows are read up to
// the row cap; others report the affected row count.
func (c *Conn) Execute(ctx context.Context, query string) (*domain.Result, error) {
	if !sqlguard.ReturnsRows(query) {
		res, err := c.db.ExecContext(ctx, query)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		return &domain.Result{RowsAffected: n}, nil
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &domain.Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		if len(result.Rows) >= c.maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(result.Rows)+1, err)
		}

		for i, v := range values {
			// Convert []byte to string for JSON serialization
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if result.Truncated {
		c.logger.Debug("result truncated", "max_rows", c.maxRows)
	}
	return result, nil
}

// ErrorMessage renders a driver error through the adapter.
func (c *Conn) ErrorMessage(err error) string {
	return c.adapter.ErrorMessage(err)
}

// ListTables returns the user tables of the connected database.
func (c *Conn) ListTables(ctx context.Context) ([]string, error) {
	query, args := c.adapter.ListTablesQuery(c.databaseName)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// ReadSchema fetches the column snapshot of table. A table with no visible
// columns does not exist as far as the console is concerned.
func (c *Conn) ReadSchema(ctx context.Context, table string) (*tablequery.Schema, error) {
	query, args := c.adapter.ReadSchemaQuery(c.databaseName, table)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read schema of %q: %w", table, err)
	}
	defer rows.Close()

	schema := &tablequery.Schema{Table: table}
	for rows.Next() {
		col, err := c.adapter.ScanSchemaRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan column of %q: %w", table, err)
		}
		schema.Columns = append(schema.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read schema of %q: %w", table, err)
	}

	if len(schema.Columns) == 0 {
		return nil, domain.Errorf(domain.KindUnknownTable, "table %q does not exist", table)
	}
	return schema, nil
}

// Close releases the connection pool.
func (c *Conn) Close() error {
	return c.db.Close()
}
