package tablequery

import (
	"fmt"
	"regexp"

	"github.com/shakram02/go-sql-console/internal/domain"
	"github.com/shakram02/go-sql-console/internal/sqlesc"
)

// RowLocatorColumn is the result column that carries the physical row
// locator for tables without a primary key.
const RowLocatorColumn = "__rowid"

// RowLocator describes a dialect's physical row address.
type RowLocator struct {
	Column     string // name usable in WHERE, e.g. ctid
	SelectExpr string // expression selected as RowLocatorColumn
	pattern    *regexp.Regexp
	format     string
}

// Parse validates the external form of a locator.
func (l RowLocator) Parse(s string) error {
	if !l.pattern.MatchString(s) {
		return domain.Errorf(domain.KindMalformedCursor, "row locator %q must look like %s", s, l.format)
	}
	return nil
}

// Dialect renders the database-specific pieces of the generated SQL.
type Dialect interface {
	Name() string
	// TextMatch renders a case-insensitive contains match of col against pattern.
	TextMatch(col Column, pattern sqlesc.Literal) string
	// EstimateCountSQL returns a cheap row estimate query for table, or false
	// when the database keeps no such statistic.
	EstimateCountSQL(table sqlesc.Literal) (string, bool)
	// RowLocator returns the physical row locator, or false if there is none.
	RowLocator() (RowLocator, bool)
	SupportsReturning() bool
	// EmptyInsert is the INSERT tail used when no column is given.
	EmptyInsert() string
	TruncateSQL(table sqlesc.QuotedIdent) string
}

var (
	ctidPattern  = regexp.MustCompile(`^\(\d+,\d+\)$`)
	rowidPattern = regexp.MustCompile(`^\d+$`)
)

// Postgres is the PostgreSQL dialect and the default.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) TextMatch(col Column, pattern sqlesc.Literal) string {
	return fmt.Sprintf("%s::text ILIKE %s", col, pattern)
}

func (Postgres) EstimateCountSQL(table sqlesc.Literal) (string, bool) {
	return fmt.Sprintf("SELECT n_live_tup AS estimate FROM pg_stat_user_tables WHERE relname = %s LIMIT 1", table), true
}

func (Postgres) RowLocator() (RowLocator, bool) {
	return RowLocator{
		Column:     "ctid",
		SelectExpr: "ctid::text",
		pattern:    ctidPattern,
		format:     "(block,offset)",
	}, true
}

func (Postgres) SupportsReturning() bool { return true }

func (Postgres) EmptyInsert() string { return "DEFAULT VALUES" }

func (Postgres) TruncateSQL(table sqlesc.QuotedIdent) string {
	return "TRUNCATE TABLE " + table.String()
}

// SQLite has no live-tuple statistic; estimates fall back to COUNT(*).
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) TextMatch(col Column, pattern sqlesc.Literal) string {
	return fmt.Sprintf("CAST(%s AS TEXT) LIKE %s", col, pattern)
}

func (SQLite) EstimateCountSQL(sqlesc.Literal) (string, bool) { return "", false }

func (SQLite) RowLocator() (RowLocator, bool) {
	return RowLocator{
		Column:     "rowid",
		SelectExpr: "rowid",
		pattern:    rowidPattern,
		format:     "an integer rowid",
	}, true
}

func (SQLite) SupportsReturning() bool { return true }

func (SQLite) EmptyInsert() string { return "DEFAULT VALUES" }

func (SQLite) TruncateSQL(table sqlesc.QuotedIdent) string {
	return "DELETE FROM " + table.String()
}

// MySQL expects the session to run with ANSI_QUOTES so double-quoted
// identifiers work; dbadapter.MySQLAdapter sets it on every connection.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) TextMatch(col Column, pattern sqlesc.Literal) string {
	return fmt.Sprintf("CAST(%s AS CHAR) LIKE %s", col, pattern)
}

func (MySQL) EstimateCountSQL(table sqlesc.Literal) (string, bool) {
	return fmt.Sprintf("SELECT table_rows AS estimate FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = %s", table), true
}

func (MySQL) RowLocator() (RowLocator, bool) { return RowLocator{}, false }

func (MySQL) SupportsReturning() bool { return false }

func (MySQL) EmptyInsert() string { return "() VALUES ()" }

func (MySQL) TruncateSQL(table sqlesc.QuotedIdent) string {
	return "TRUNCATE TABLE " + table.String()
}

// ParseRowLocator validates a PostgreSQL ctid in its "(block,offset)" text form.
func ParseRowLocator(s string) error {
	loc, _ := Postgres{}.RowLocator()
	return loc.Parse(s)
}
