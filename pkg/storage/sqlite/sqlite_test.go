package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNEscapesPath(t *testing.T) {
	got := dsn("/data/we?ird#50%.db")
	assert.Equal(t, "file:/data/we%3Fird%2350%25.db?_pragma=foreign_keys%281%29&_pragma=busy_timeout%285000%29&_pragma=journal_mode%28WAL%29", got)
}

func TestOpenPathWithQueryCharacters(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "we?ird#dir")
	require.NoError(t, os.Mkdir(dir, 0o755))

	db, err := Open(ctx, filepath.Join(dir, "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `CREATE TABLE items (name TEXT NOT NULL)`)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "users.db"))
	require.NoError(t, err)

	var fk int
	require.NoError(t, db.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `CREATE TABLE items (name TEXT NOT NULL)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('discarded')`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('kept')`)
		return err
	})
	require.NoError(t, err)

	var names []string
	rows, err := db.QueryContext(ctx, `SELECT name FROM items`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{"kept"}, names)
}
