package tablequery

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openItems(t *testing.T, n int) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		_, err = db.Exec(`INSERT INTO items (id, name) VALUES (?, ?)`, i, fmt.Sprintf("item-%02d", i))
		require.NoError(t, err)
	}
	return db
}

func itemsSchema() *Schema {
	return &Schema{
		Table: "items",
		Columns: []ColumnInfo{
			{Name: "id", DataType: "INTEGER", PrimaryKey: true},
			{Name: "name", DataType: "TEXT", Nullable: true},
		},
	}
}

func pageIDs(t *testing.T, db *sql.DB, req PageRequest) []int {
	t.Helper()
	page, err := Build(req, itemsSchema(), SQLite{})
	require.NoError(t, err)

	rows, err := db.Query(page.DataSQL)
	require.NoError(t, err)
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		var name sql.NullString
		require.NoError(t, rows.Scan(&id, &name))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	if page.Descending {
		slices.Reverse(ids)
	}
	return ids
}

func TestKeysetMatchesOffset_SQLite(t *testing.T) {
	db := openItems(t, 23)

	first := pageIDs(t, db, PageRequest{Table: "items", Limit: 10})
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, first)

	second := pageIDs(t, db, PageRequest{Table: "items", Limit: 10, Offset: 10})
	next := pageIDs(t, db, PageRequest{Table: "items", Limit: 10, After: "10"})
	assert.Equal(t, second, next)

	prev := pageIDs(t, db, PageRequest{Table: "items", Limit: 10, Before: "11"})
	assert.Equal(t, first, prev)

	last := pageIDs(t, db, PageRequest{Table: "items", Limit: 10, After: "20"})
	assert.Equal(t, []int{21, 22, 23}, last)
}

func TestFilterAndCount_SQLite(t *testing.T) {
	db := openItems(t, 23)

	page, err := Build(PageRequest{
		Table:   "items",
		Filters: []ColumnFilter{{Column: "name", Value: "ITEM-1"}},
	}, itemsSchema(), SQLite{})
	require.NoError(t, err)
	require.Equal(t, CountExact, page.CountMode)

	var count int
	require.NoError(t, db.QueryRow(page.CountSQL).Scan(&count))
	assert.Equal(t, 10, count)
}

func TestEscapedFilterIsInert_SQLite(t *testing.T) {
	db := openItems(t, 3)

	page, err := Build(PageRequest{
		Table:   "items",
		Filters: []ColumnFilter{{Column: "name", Value: "x' OR '1'='1"}},
	}, itemsSchema(), SQLite{})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(page.CountSQL).Scan(&count))
	assert.Zero(t, count)
}
