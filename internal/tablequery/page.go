package tablequery

import (
	"fmt"
	"strings"

	"github.com/shakram02/go-sql-console/internal/domain"
	"github.com/shakram02/go-sql-console/internal/sqlesc"
)

// Page size bounds.
const (
	DefaultLimit = 50
	MaxLimit     = 10000
)

// SortDir is the ORDER BY direction.
type SortDir string

const (
	SortAsc  SortDir = "ASC"
	SortDesc SortDir = "DESC"
)

// CountMode selects how the total row count is obtained.
type CountMode string

const (
	// CountDefault estimates when no filter is active and counts otherwise.
	CountDefault  CountMode = ""
	CountEstimate CountMode = "estimate"
	CountExact    CountMode = "exact"
)

// ColumnFilter is a case-insensitive "contains" match on one column.
type ColumnFilter struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// PageRequest describes one page of a table browse.
type PageRequest struct {
	Table      string         `json:"table"`
	Limit      int            `json:"limit,omitempty"`
	Offset     int            `json:"offset,omitempty"`
	SortColumn string         `json:"sort_column,omitempty"`
	SortDir    SortDir        `json:"sort_dir,omitempty"`
	Filters    []ColumnFilter `json:"filters,omitempty"`
	After      string         `json:"after,omitempty"`
	Before     string         `json:"before,omitempty"`
	CountMode  CountMode      `json:"count_mode,omitempty"`
}

// EffectiveLimit returns the page size, defaulted and clamped to MaxLimit.
func (r PageRequest) EffectiveLimit() int {
	if r.Limit <= 0 {
		return DefaultLimit
	}
	if r.Limit > MaxLimit {
		return MaxLimit
	}
	return r.Limit
}

// Page is the pair of statements for one PageRequest.
//
// When Keyset and Descending are both set (a "before" cursor), DataSQL
// returns the page in descending key order. Reversing it for display is up
// to the caller.
type Page struct {
	DataSQL    string    `json:"data_sql"`
	CountSQL   string    `json:"count_sql"`
	CountMode  CountMode `json:"count_mode"`
	Keyset     bool      `json:"keyset"`
	Descending bool      `json:"descending"`
	Limit      int       `json:"limit"`
	Offset     int       `json:"offset"`
}

// Build composes the data and count statements for req against the schema
// snapshot. Any unknown table or column, NUL byte or malformed option rejects
// the whole request. A nil dialect means Postgres.
func Build(req PageRequest, schema *Schema, d Dialect) (Page, error) {
	if d == nil {
		d = Postgres{}
	}
	if schema == nil || req.Table != schema.Table {
		return Page{}, domain.Errorf(domain.KindUnknownTable, "table %q does not match the schema snapshot", req.Table)
	}
	table, err := schema.tableIdent()
	if err != nil {
		return Page{}, err
	}

	var filters []string
	for _, f := range req.Filters {
		col, err := schema.Column(f.Column)
		if err != nil {
			return Page{}, err
		}
		if f.Value == "" {
			continue
		}
		pattern, err := sqlesc.QuoteContains(f.Value)
		if err != nil {
			return Page{}, fmt.Errorf("filter on %q: %w", f.Column, err)
		}
		filters = append(filters, d.TextMatch(col, pattern))
	}

	var sortCol Column
	if req.SortColumn != "" {
		if sortCol, err = schema.Column(req.SortColumn); err != nil {
			return Page{}, err
		}
	}
	dir, err := normalizeDir(req.SortDir)
	if err != nil {
		return Page{}, err
	}
	if req.After != "" && req.Before != "" {
		return Page{}, domain.Errorf(domain.KindInvalidRequest, "after and before cursors are mutually exclusive")
	}

	page := Page{Limit: req.EffectiveLimit()}
	if req.Offset > 0 {
		page.Offset = req.Offset
	}

	pk, single := schema.SinglePrimaryKey()
	page.Keyset = single && (req.After != "" || req.Before != "")

	where := append([]string(nil), filters...)
	var order []string

	switch {
	case page.Keyset:
		cursor, op := req.After, ">"
		keyDir := SortAsc
		if req.Before != "" {
			cursor, op, keyDir = req.Before, "<", SortDesc
			page.Descending = true
		}
		lit, err := sqlesc.QuoteLiteral(cursor)
		if err != nil {
			return Page{}, fmt.Errorf("cursor: %w", err)
		}
		where = append(where, fmt.Sprintf("%s %s %s", pk, op, lit))
		order = append(order, fmt.Sprintf("%s %s", pk, keyDir))
		page.Offset = 0

	case req.SortColumn != "":
		order = append(order, fmt.Sprintf("%s %s", sortCol, dir))

	default:
		for _, c := range schema.PrimaryKey() {
			order = append(order, fmt.Sprintf("%s %s", c, SortAsc))
		}
	}

	var data strings.Builder
	data.WriteString("SELECT ")
	data.WriteString(selectList(schema, d))
	data.WriteString(" FROM ")
	data.WriteString(table.String())
	writeWhere(&data, where)
	if len(order) > 0 {
		data.WriteString(" ORDER BY ")
		data.WriteString(strings.Join(order, ", "))
	}
	fmt.Fprintf(&data, " LIMIT %d", page.Limit)
	if !page.Keyset {
		fmt.Fprintf(&data, " OFFSET %d", page.Offset)
	}
	page.DataSQL = data.String()

	page.CountMode, page.CountSQL, err = countSQL(req.CountMode, schema, table, filters, d)
	if err != nil {
		return Page{}, err
	}

	return page, nil
}

func normalizeDir(dir SortDir) (SortDir, error) {
	switch strings.ToUpper(string(dir)) {
	case "", "ASC":
		return SortAsc, nil
	case "DESC":
		return SortDesc, nil
	default:
		return "", domain.Errorf(domain.KindInvalidRequest, "sort direction %q must be ASC or DESC", dir)
	}
}

// selectList adds the physical row locator for tables without a primary key
// so single rows can still be targeted by the edit path.
func selectList(schema *Schema, d Dialect) string {
	if len(schema.PrimaryKey()) > 0 {
		return "*"
	}
	loc, ok := d.RowLocator()
	if !ok {
		return "*"
	}
	return fmt.Sprintf(`%s AS "%s", *`, loc.SelectExpr, RowLocatorColumn)
}

func writeWhere(b *strings.Builder, conds []string) {
	if len(conds) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(conds, " AND "))
}

// countSQL picks the effective count mode. Any active filter forces an exact
// count since the estimate covers the whole table.
func countSQL(mode CountMode, schema *Schema, table sqlesc.QuotedIdent, filters []string, d Dialect) (CountMode, string, error) {
	switch mode {
	case CountDefault, CountEstimate, CountExact:
	default:
		return "", "", domain.Errorf(domain.KindInvalidRequest, "count mode %q must be estimate or exact", mode)
	}

	if mode != CountExact && len(filters) == 0 {
		name, err := sqlesc.QuoteLiteral(schema.Table)
		if err != nil {
			return "", "", err
		}
		if q, ok := d.EstimateCountSQL(name); ok {
			return CountEstimate, q, nil
		}
	}

	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(table.String())
	writeWhere(&b, filters)
	return CountExact, b.String(), nil
}
