package tablequery

import (
	"fmt"
	"strings"

	"github.com/shakram02/go-sql-console/internal/domain"
	"github.com/shakram02/go-sql-console/internal/sqlesc"
)

// RowTarget addresses exactly one row: by a single-column primary key, or by
// the physical row locator when the table has no primary key.
type RowTarget struct {
	column  Column
	value   sqlesc.Literal
	raw     string
	locator *RowLocator
}

// Column returns the key column name (the primary key or e.g. ctid).
func (t RowTarget) Column() string { return t.column.Name() }

// Value returns the unescaped key value.
func (t RowTarget) Value() string { return t.raw }

// IsLocator reports whether the row is addressed by its physical locator.
func (t RowTarget) IsLocator() bool { return t.locator != nil }

func (t RowTarget) condition() string {
	return fmt.Sprintf("%s = %s", t.column, t.value)
}

// Target resolves a key value to a RowTarget. Tables with a composite key
// cannot be targeted; locators must match the dialect's grammar.
func (s *Schema) Target(key string, d Dialect) (RowTarget, error) {
	if d == nil {
		d = Postgres{}
	}

	var col Column
	var locator *RowLocator
	pk := s.PrimaryKey()
	switch {
	case len(pk) == 1:
		col = pk[0]
	case len(pk) > 1:
		return RowTarget{}, domain.Errorf(domain.KindInvalidRequest, "table %q has a composite primary key; single-row edits are not supported", s.Table)
	default:
		loc, ok := d.RowLocator()
		if !ok {
			return RowTarget{}, domain.Errorf(domain.KindInvalidRequest, "table %q has no primary key and %s has no row locator", s.Table, d.Name())
		}
		if err := loc.Parse(key); err != nil {
			return RowTarget{}, err
		}
		var err error
		if col, err = newColumn(loc.Column); err != nil {
			return RowTarget{}, err
		}
		locator = &loc
	}

	lit, err := sqlesc.QuoteLiteral(key)
	if err != nil {
		return RowTarget{}, err
	}
	return RowTarget{column: col, value: lit, raw: key, locator: locator}, nil
}

// SelectRow returns the statement reading the targeted row.
func SelectRow(s *Schema, target RowTarget, d Dialect) (string, error) {
	if d == nil {
		d = Postgres{}
	}
	table, err := s.tableIdent()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectList(s, d), table, target.condition()), nil
}

// UpdateCell sets one column of the targeted row. A nil value writes NULL,
// except on the key column itself.
//
// A locator-addressed row may move when updated (PostgreSQL gives it a new
// ctid), so when the dialect supports RETURNING the statement returns the
// row's locator after the update in column RowLocatorColumn.
func UpdateCell(s *Schema, target RowTarget, column string, value *string, d Dialect) (string, error) {
	if d == nil {
		d = Postgres{}
	}
	table, err := s.tableIdent()
	if err != nil {
		return "", err
	}
	col, err := s.Column(column)
	if err != nil {
		return "", err
	}
	lit := sqlesc.Null
	if value != nil {
		if lit, err = sqlesc.QuoteLiteral(*value); err != nil {
			return "", fmt.Errorf("value for %q: %w", column, err)
		}
	} else if col.Name() == target.Column() {
		return "", domain.Errorf(domain.KindInvalidRequest, "key column %q of table %q cannot be set to NULL", column, s.Table)
	}

	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s", table, col, lit, target.condition())
	if target.IsLocator() && d.SupportsReturning() {
		query += fmt.Sprintf(` RETURNING %s AS "%s"`, target.locator.SelectExpr, RowLocatorColumn)
	}
	return query, nil
}

// InsertRow inserts one row. Columns are emitted in table order. When the
// dialect supports RETURNING, the key of the new row is returned in the
// column named by keyColumn so it can be journaled; keyColumn is empty
// otherwise.
func InsertRow(s *Schema, values map[string]string, d Dialect) (sql string, keyColumn string, err error) {
	if d == nil {
		d = Postgres{}
	}
	table, err := s.tableIdent()
	if err != nil {
		return "", "", err
	}

	for name := range values {
		if !s.HasColumn(name) {
			return "", "", domain.Errorf(domain.KindUnknownColumn, "column %q does not exist in table %q", name, s.Table)
		}
	}

	var cols, vals []string
	for _, c := range s.Columns {
		v, ok := values[c.Name]
		if !ok {
			continue
		}
		col, err := newColumn(c.Name)
		if err != nil {
			return "", "", err
		}
		lit, err := sqlesc.QuoteLiteral(v)
		if err != nil {
			return "", "", fmt.Errorf("value for %q: %w", c.Name, err)
		}
		cols = append(cols, col.String())
		vals = append(vals, lit.String())
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table.String())
	if len(cols) == 0 {
		b.WriteString(" ")
		b.WriteString(d.EmptyInsert())
	} else {
		fmt.Fprintf(&b, " (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(vals, ", "))
	}

	if d.SupportsReturning() {
		if pk, ok := s.SinglePrimaryKey(); ok {
			fmt.Fprintf(&b, " RETURNING %s", pk)
			keyColumn = pk.Name()
		} else if loc, ok := d.RowLocator(); ok && len(s.PrimaryKey()) == 0 {
			fmt.Fprintf(&b, ` RETURNING %s AS "%s"`, loc.SelectExpr, RowLocatorColumn)
			keyColumn = loc.Column
		}
	}

	return b.String(), keyColumn, nil
}

// DeleteRow deletes the targeted row.
func DeleteRow(s *Schema, target RowTarget) (string, error) {
	table, err := s.tableIdent()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", table, target.condition()), nil
}

// Truncate empties the table.
func Truncate(s *Schema, d Dialect) (string, error) {
	if d == nil {
		d = Postgres{}
	}
	table, err := s.tableIdent()
	if err != nil {
		return "", err
	}
	return d.TruncateSQL(table), nil
}
