package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	sqlitestorage "github.com/artem13815/users/pkg/storage/sqlite"
	"github.com/artem13815/users/pkg/user"
)

var _ user.TxRepository = (*UserRepository)(nil)

// ErrNestedTx is returned by InTx on a repository already bound to a transaction.
var ErrNestedTx = errors.New("sqlite: nested transactions are not supported")

const userColumns = `id, username, created_at`

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepository implements user.TxRepository over SQLite.
type UserRepository struct {
	db   *sql.DB
	q    queryer
	inTx bool
}

// NewUserRepository ensures the users schema and returns a repository on db.
func NewUserRepository(ctx context.Context, db *sql.DB, uniqueUsernames bool) (*UserRepository, error) {
	repo := &UserRepository{db: db, q: db}
	if err := repo.ensureSchema(ctx, uniqueUsernames); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *UserRepository) ensureSchema(ctx context.Context, uniqueUsernames bool) error {
	_, err := r.q.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return classify(err)
	}
	index := `CREATE INDEX IF NOT EXISTS users_username_idx ON users (username)`
	if uniqueUsernames {
		index = `CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username)`
	}
	if _, err := r.q.ExecContext(ctx, index); err != nil {
		return classify(err)
	}
	return nil
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (user.User, error) {
	var u user.User
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Username, &createdAt); err != nil {
		return user.User{}, err
	}
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

func (r *UserRepository) Save(ctx context.Context, u user.User) (user.User, error) {
	now := toMillis(time.Now())
	var row *sql.Row
	if u.IsNew() {
		row = r.q.QueryRowContext(ctx, `
			INSERT INTO users (username, created_at) VALUES (?, ?)
			RETURNING `+userColumns, u.Username, now)
	} else {
		row = r.q.QueryRowContext(ctx, `
			INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET username = excluded.username
			RETURNING `+userColumns, u.ID, u.Username, now)
	}
	saved, err := scanUser(row)
	if err != nil {
		return user.User{}, classify(err)
	}
	return saved, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (user.User, bool, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, false, nil
	}
	if err != nil {
		return user.User{}, false, classify(err)
	}
	return u, true, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (user.User, bool, error) {
	// Two rows are enough to notice duplicates when usernames are not unique.
	var found []user.User
	for u, err := range r.query(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? ORDER BY id LIMIT 2`, username) {
		if err != nil {
			return user.User{}, false, err
		}
		found = append(found, u)
	}
	if len(found) == 0 {
		return user.User{}, false, nil
	}
	if len(found) > 1 {
		log.Printf("users: username %q matches several rows, returning id %d", username, found[0].ID)
	}
	return found[0], true, nil
}

func (r *UserRepository) FindAll(ctx context.Context) iter.Seq2[user.User, error] {
	return r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (r *UserRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// InTx runs fn against a repository bound to a single transaction.
// SQLite has a single writer, so a second transaction from inside fn would
// only wait on the first one. Nested calls fail with ErrNestedTx instead.
func (r *UserRepository) InTx(ctx context.Context, fn func(user.Repository) error) error {
	if r.inTx {
		return ErrNestedTx
	}
	var fnErr error
	err := sqlitestorage.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		fnErr = fn(&UserRepository{db: r.db, q: tx, inTx: true})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return classify(err)
}

func (r *UserRepository) query(ctx context.Context, query string, args ...any) iter.Seq2[user.User, error] {
	return func(yield func(user.User, error) bool) {
		rows, err := r.q.QueryContext(ctx, query, args...)
		if err != nil {
			yield(user.User{}, classify(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				yield(user.User{}, classify(err))
				return
			}
			if !yield(u, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(user.User{}, classify(err))
		}
	}
}

// classify tags a driver error with the matching storage category, keeping err in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %w", user.ErrConstraintViolation, err)
	}
	return fmt.Errorf("%w: %w", user.ErrConnectivity, err)
}
