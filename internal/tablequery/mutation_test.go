package tablequery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-sql-console/internal/domain"
)

func TestTarget(t *testing.T) {
	target, err := usersSchema().Target("3", nil)
	require.NoError(t, err)
	assert.Equal(t, "id", target.Column())
	assert.Equal(t, "3", target.Value())

	target, err = eventsSchema().Target("(0,12)", Postgres{})
	require.NoError(t, err)
	assert.Equal(t, "ctid", target.Column())

	target, err = eventsSchema().Target("42", SQLite{})
	require.NoError(t, err)
	assert.Equal(t, "rowid", target.Column())
}

func TestTarget_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		key     string
		dialect Dialect
		want    error
	}{
		{"locator with injection", eventsSchema(), "(0,1); DROP TABLE events", Postgres{}, domain.ErrMalformedCursor},
		{"locator with spaces", eventsSchema(), "(0, 1)", Postgres{}, domain.ErrMalformedCursor},
		{"sqlite rowid must be digits", eventsSchema(), "(0,1)", SQLite{}, domain.ErrMalformedCursor},
		{"mysql has no locator", eventsSchema(), "1", MySQL{}, domain.ErrInvalidRequest},
		{"composite key", membershipSchema(), "1", Postgres{}, domain.ErrInvalidRequest},
		{"NUL in key", usersSchema(), "1\x00", Postgres{}, domain.ErrInvalidCharacter},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.schema.Target(tc.key, tc.dialect)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestParseRowLocator(t *testing.T) {
	valid := []string{"(0,1)", "(123,45)"}
	for _, s := range valid {
		assert.NoError(t, ParseRowLocator(s), s)
	}

	invalid := []string{"", "(0,1", "0,1", "(a,1)", "(0,1)x", "(-1,2)", "(0,1) OR 1=1", "(,)"}
	for _, s := range invalid {
		err := ParseRowLocator(s)
		assert.True(t, errors.Is(err, domain.ErrMalformedCursor), s)
	}
}

func TestUpdateCell(t *testing.T) {
	s := usersSchema()
	target, err := s.Target("3", nil)
	require.NoError(t, err)

	assert.False(t, target.IsLocator())

	name := "O'Brien"
	sql, err := UpdateCell(s, target, "name", &name, nil)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = 'O''Brien' WHERE "id" = '3'`, sql)

	sql, err = UpdateCell(s, target, "email", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "email" = NULL WHERE "id" = '3'`, sql)

	newKey := "300"
	sql, err = UpdateCell(s, target, "id", &newKey, nil)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "id" = '300' WHERE "id" = '3'`, sql)

	_, err = UpdateCell(s, target, "id", nil, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))

	_, err = UpdateCell(s, target, "is_admin", &name, nil)
	assert.True(t, errors.Is(err, domain.ErrUnknownColumn))

	bad := "x\x00"
	_, err = UpdateCell(s, target, "name", &bad, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidCharacter))
}

func TestUpdateCell_LocatorReturnsNewLocator(t *testing.T) {
	s := eventsSchema()
	msg := "login"

	tests := []struct {
		name    string
		key     string
		dialect Dialect
		want    string
	}{
		{"postgres ctid", "(0,1)", Postgres{}, `UPDATE "events" SET "msg" = 'login' WHERE "ctid" = '(0,1)' RETURNING ctid::text AS "__rowid"`},
		{"sqlite rowid", "7", SQLite{}, `UPDATE "events" SET "msg" = 'login' WHERE "rowid" = '7' RETURNING rowid AS "__rowid"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target, err := s.Target(tc.key, tc.dialect)
			require.NoError(t, err)
			assert.True(t, target.IsLocator())

			sql, err := UpdateCell(s, target, "msg", &msg, tc.dialect)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sql)
		})
	}
}

func TestSelectRow(t *testing.T) {
	s := eventsSchema()
	target, err := s.Target("(0,7)", nil)
	require.NoError(t, err)

	sql, err := SelectRow(s, target, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT ctid::text AS "__rowid", * FROM "events" WHERE "ctid" = '(0,7)'`, sql)
}

func TestInsertRow(t *testing.T) {
	s := usersSchema()

	sql, key, err := InsertRow(s, map[string]string{"email": "b@x", "name": "b"}, Postgres{})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name", "email") VALUES ('b', 'b@x') RETURNING "id"`, sql)
	assert.Equal(t, "id", key)

	sql, key, err = InsertRow(s, nil, MySQL{})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" () VALUES ()`, sql)
	assert.Empty(t, key)

	sql, _, err = InsertRow(s, map[string]string{}, SQLite{})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" DEFAULT VALUES RETURNING "id"`, sql)

	sql, key, err = InsertRow(eventsSchema(), map[string]string{"msg": "hi"}, SQLite{})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "events" ("msg") VALUES ('hi') RETURNING rowid AS "__rowid"`, sql)
	assert.Equal(t, "rowid", key)

	sql, key, err = InsertRow(membershipSchema(), map[string]string{"user_id": "1", "group_id": "2"}, Postgres{})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "membership" ("user_id", "group_id") VALUES ('1', '2')`, sql)
	assert.Empty(t, key)

	_, _, err = InsertRow(s, map[string]string{"secret": "x"}, nil)
	assert.True(t, errors.Is(err, domain.ErrUnknownColumn))
}

func TestDeleteRowAndTruncate(t *testing.T) {
	s := usersSchema()
	target, err := s.Target("9", nil)
	require.NoError(t, err)

	sql, err := DeleteRow(s, target)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = '9'`, sql)

	sql, err = Truncate(s, nil)
	require.NoError(t, err)
	assert.Equal(t, `TRUNCATE TABLE "users"`, sql)

	sql, err = Truncate(s, SQLite{})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users"`, sql)
}

func TestQuotedTableName(t *testing.T) {
	s := &Schema{Table: `odd"name`, Columns: []ColumnInfo{{Name: "id", PrimaryKey: true}}}
	page, err := Build(PageRequest{Table: `odd"name`, CountMode: CountExact}, s, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "odd""name" ORDER BY "id" ASC LIMIT 50 OFFSET 0`, page.DataSQL)
	assert.Equal(t, `SELECT COUNT(*) FROM "odd""name"`, page.CountSQL)
}
