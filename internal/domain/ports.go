package domain

import "context"

// Result holds the outcome of a single executed statement.
type Result struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
	Truncated    bool // row cap reached before the cursor was drained
}

// RowCount returns the number of rows the statement produced or touched.
func (r *Result) RowCount() int64 {
	if r == nil {
		return 0
	}
	if len(r.Columns) > 0 {
		return int64(len(r.Rows))
	}
	return r.RowsAffected
}

// Executor runs one SQL statement against the live database.
// Implemented by dbadapter.Conn. Execute may block; the core adds no timeout.
type Executor interface {
	Execute(ctx context.Context, sql string) (*Result, error)
}

// ErrorDescriber renders a driver error for operators.
// Implemented by every dbadapter.DBAdapter.
type ErrorDescriber interface {
	ErrorMessage(err error) string
}
