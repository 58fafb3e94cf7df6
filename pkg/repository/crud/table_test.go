package crud

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID    int64
	Title string
	Body  string
}

func noteMapping() Mapping[note, int64] {
	return Mapping[note, int64]{
		Table:    "notes",
		IDColumn: "id",
		Columns:  []string{"title", "body"},
		ID:       func(n note) int64 { return n.ID },
		Values:   func(n note) []any { return []any{n.Title, n.Body} },
		Scan: func(row pgx.Row) (note, error) {
			var n note
			err := row.Scan(&n.ID, &n.Title, &n.Body)
			return n, err
		},
	}
}

func newNoteTable(t *testing.T) (*Table[note, int64], pgxmock.PgxPoolIface) {
	t.Helper()
	table, err := NewTable(noteMapping())
	require.NoError(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return table, mock
}

func noteRows(notes ...note) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "title", "body"})
	for _, n := range notes {
		rows.AddRow(n.ID, n.Title, n.Body)
	}
	return rows
}

func TestNewTableStatements(t *testing.T) {
	table, err := NewTable(noteMapping())
	require.NoError(t, err)

	assert.Equal(t, `INSERT INTO "notes" ("title", "body") VALUES ($1, $2) RETURNING "id", "title", "body"`, table.insertSQL)
	assert.Equal(t, `INSERT INTO "notes" ("id", "title", "body") VALUES ($1, $2, $3) ON CONFLICT ("id") DO UPDATE SET "title" = EXCLUDED."title", "body" = EXCLUDED."body" RETURNING "id", "title", "body"`, table.upsertSQL)
	assert.Equal(t, `SELECT "id", "title", "body" FROM "notes" WHERE "id" = $1`, table.getSQL)
	assert.Equal(t, `SELECT "id", "title", "body" FROM "notes" ORDER BY "id"`, table.allSQL)
	assert.Equal(t, `DELETE FROM "notes" WHERE "id" = $1`, table.deleteSQL)
}

func TestNewTableGeneratedColumnsAreReadOnly(t *testing.T) {
	m := noteMapping()
	m.Generated = []string{"created_at"}
	table, err := NewTable(m)
	require.NoError(t, err)

	assert.Equal(t, `INSERT INTO "notes" ("title", "body") VALUES ($1, $2) RETURNING "id", "title", "body", "created_at"`, table.insertSQL)
	assert.NotContains(t, table.upsertSQL, `"created_at" = EXCLUDED`)
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Mapping[note, int64])
	}{
		{name: "no table", mutate: func(m *Mapping[note, int64]) { m.Table = "" }},
		{name: "no id column", mutate: func(m *Mapping[note, int64]) { m.IDColumn = " " }},
		{name: "no columns", mutate: func(m *Mapping[note, int64]) { m.Columns = nil }},
		{name: "no scan", mutate: func(m *Mapping[note, int64]) { m.Scan = nil }},
		{name: "id as column", mutate: func(m *Mapping[note, int64]) { m.Columns = []string{"id", "title"} }},
		{name: "duplicate column", mutate: func(m *Mapping[note, int64]) { m.Columns = []string{"title", "title"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := noteMapping()
			tt.mutate(&m)
			_, err := NewTable(m)
			require.Error(t, err)
		})
	}
}

func TestSaveInsertsNewEntity(t *testing.T) {
	table, mock := newNoteTable(t)
	mock.ExpectQuery(regexp.QuoteMeta(table.insertSQL)).
		WithArgs("hello", "world").
		WillReturnRows(noteRows(note{ID: 1, Title: "hello", Body: "world"}))

	got, err := table.Save(context.Background(), mock, note{Title: "hello", Body: "world"})
	require.NoError(t, err)
	assert.Equal(t, note{ID: 1, Title: "hello", Body: "world"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUpsertsExistingEntity(t *testing.T) {
	table, mock := newNoteTable(t)
	mock.ExpectQuery(regexp.QuoteMeta(table.upsertSQL)).
		WithArgs(int64(4), "hello", "again").
		WillReturnRows(noteRows(note{ID: 4, Title: "hello", Body: "again"}))

	got, err := table.Save(context.Background(), mock, note{ID: 4, Title: "hello", Body: "again"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRejectsMismatchedValues(t *testing.T) {
	m := noteMapping()
	m.Values = func(n note) []any { return []any{n.Title} }
	table, err := NewTable(m)
	require.NoError(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = table.Insert(context.Background(), mock, note{Title: "x"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	table, mock := newNoteTable(t)
	mock.ExpectQuery(regexp.QuoteMeta(table.getSQL)).
		WithArgs(int64(1)).
		WillReturnRows(noteRows(note{ID: 1, Title: "a", Body: "b"}))
	mock.ExpectQuery(regexp.QuoteMeta(table.getSQL)).
		WithArgs(int64(2)).
		WillReturnRows(noteRows())

	got, ok, err := table.Get(context.Background(), mock, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", got.Title)

	got, ok, err = table.Get(context.Background(), mock, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, note{}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPropagatesErrors(t *testing.T) {
	table, mock := newNoteTable(t)
	boom := errors.New("conn reset")
	mock.ExpectQuery(regexp.QuoteMeta(table.getSQL)).WithArgs(int64(1)).WillReturnError(boom)

	_, ok, err := table.Get(context.Background(), mock, 1)
	require.ErrorIs(t, err, boom)
	assert.False(t, ok)
}

func TestFindBy(t *testing.T) {
	table, mock := newNoteTable(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "title", "body" FROM "notes" WHERE "title" = $1 ORDER BY "id" LIMIT 2`)).
		WithArgs("dup").
		WillReturnRows(noteRows(note{ID: 3, Title: "dup"}, note{ID: 5, Title: "dup"}))

	got, err := table.FindBy(context.Background(), mock, "title", "dup", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByRejectsUnknownColumn(t *testing.T) {
	table, mock := newNoteTable(t)

	_, err := table.FindBy(context.Background(), mock, "title; DROP TABLE notes", "x", 0)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllIsRestartable(t *testing.T) {
	table, mock := newNoteTable(t)
	notes := []note{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}
	mock.ExpectQuery(regexp.QuoteMeta(table.allSQL)).WillReturnRows(noteRows(notes...))
	mock.ExpectQuery(regexp.QuoteMeta(table.allSQL)).WillReturnRows(noteRows(notes...))

	seq := table.All(context.Background(), mock)
	for range 2 {
		var got []note
		for n, err := range seq {
			require.NoError(t, err)
			got = append(got, n)
		}
		assert.Equal(t, notes, got)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllStopsEarly(t *testing.T) {
	table, mock := newNoteTable(t)
	mock.ExpectQuery(regexp.QuoteMeta(table.allSQL)).
		WillReturnRows(noteRows(note{ID: 1}, note{ID: 2}, note{ID: 3}))

	count := 0
	for _, err := range table.All(context.Background(), mock) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestAllYieldsQueryError(t *testing.T) {
	table, mock := newNoteTable(t)
	boom := errors.New("conn reset")
	mock.ExpectQuery(regexp.QuoteMeta(table.allSQL)).WillReturnError(boom)

	var errs []error
	for _, err := range table.All(context.Background(), mock) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], boom)
}

func TestDelete(t *testing.T) {
	table, mock := newNoteTable(t)
	mock.ExpectExec(regexp.QuoteMeta(table.deleteSQL)).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta(table.deleteSQL)).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	removed, err := table.Delete(context.Background(), mock, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = table.Delete(context.Background(), mock, 1)
	require.NoError(t, err)
	assert.False(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
