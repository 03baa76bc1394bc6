// Package tablequery builds the SQL the console runs against a single table:
// one data SELECT and one count statement per page, plus the single-row
// mutations of the edit path.
//
// Identifiers are never taken from the caller as-is. A column reaches the SQL
// text only after it was found in a Schema snapshot read from the live
// database, and every value passes through sqlesc.
package tablequery

import (
	"github.com/shakram02/go-sql-console/internal/domain"
	"github.com/shakram02/go-sql-console/internal/sqlesc"
)

// ColumnInfo describes one column of a table as read from the catalog.
type ColumnInfo struct {
	Name       string  `json:"column_name"`
	DataType   string  `json:"data_type"`
	Nullable   bool    `json:"is_nullable"`
	Default    *string `json:"column_default,omitempty"`
	PrimaryKey bool    `json:"primary_key,omitempty"`
}

// Schema is a snapshot of one table's columns.
type Schema struct {
	Table   string       `json:"table"`
	Columns []ColumnInfo `json:"columns"`
}

// Column is a column name that was found in a Schema, already quoted.
// The only way to obtain one is Schema.Column or Schema.PrimaryKey.
type Column struct {
	name  string
	ident sqlesc.QuotedIdent
}

// Name returns the unquoted column name.
func (c Column) Name() string { return c.name }

// String returns the quoted identifier.
func (c Column) String() string { return c.ident.String() }

// Column validates name against the snapshot. Unknown names fail closed.
func (s *Schema) Column(name string) (Column, error) {
	for _, c := range s.Columns {
		if c.Name == name {
			return newColumn(name)
		}
	}
	return Column{}, domain.Errorf(domain.KindUnknownColumn, "column %q does not exist in table %q", name, s.Table)
}

// HasColumn reports whether name is a column of the table.
func (s *Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// PrimaryKey returns the primary key columns in table order.
func (s *Schema) PrimaryKey() []Column {
	var pk []Column
	for _, c := range s.Columns {
		if !c.PrimaryKey {
			continue
		}
		col, err := newColumn(c.Name)
		if err != nil {
			continue
		}
		pk = append(pk, col)
	}
	return pk
}

// SinglePrimaryKey returns the primary key column when the key has exactly
// one column.
func (s *Schema) SinglePrimaryKey() (Column, bool) {
	pk := s.PrimaryKey()
	if len(pk) != 1 {
		return Column{}, false
	}
	return pk[0], true
}

func (s *Schema) tableIdent() (sqlesc.QuotedIdent, error) {
	return sqlesc.QuoteIdentifier(s.Table)
}

func newColumn(name string) (Column, error) {
	ident, err := sqlesc.QuoteIdentifier(name)
	if err != nil {
		return Column{}, err
	}
	return Column{name: name, ident: ident}, nil
}
