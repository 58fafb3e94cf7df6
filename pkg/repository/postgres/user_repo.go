package postgres

import (
	"context"
	"iter"
	"log"

	"github.com/jackc/pgx/v5"

	"github.com/artem13815/users/pkg/repository/crud"
	pgstorage "github.com/artem13815/users/pkg/storage/postgres"
	"github.com/artem13815/users/pkg/user"
)

var _ user.TxRepository = (*UserRepository)(nil)

// UserRepository implements user.TxRepository backed by PostgreSQL (pgx).
type UserRepository struct {
	db    pgstorage.DB
	users *crud.Table[user.User, int64]
}

func newUsersTable() (*crud.Table[user.User, int64], error) {
	return crud.NewTable(crud.Mapping[user.User, int64]{
		Table:     "users",
		IDColumn:  "id",
		Columns:   []string{"username"},
		Generated: []string{"created_at"},
		ID:        func(u user.User) int64 { return u.ID },
		Values:    func(u user.User) []any { return []any{u.Username} },
		Scan:      scanUser,
	})
}

// NewUserRepository ensures the users schema and returns a repository on db.
// uniqueUsernames decides whether the schema enforces one row per username.
func NewUserRepository(ctx context.Context, db pgstorage.DB, uniqueUsernames bool) (*UserRepository, error) {
	users, err := newUsersTable()
	if err != nil {
		return nil, err
	}
	repo := &UserRepository{db: db, users: users}
	if err := repo.ensureSchema(ctx, uniqueUsernames); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *UserRepository) ensureSchema(ctx context.Context, uniqueUsernames bool) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			username TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return classify(err)
	}
	index := `CREATE INDEX IF NOT EXISTS users_username_idx ON users (username)`
	if uniqueUsernames {
		index = `CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username)`
	}
	if _, err := r.db.Exec(ctx, index); err != nil {
		return classify(err)
	}
	return nil
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
		return user.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// advanceIDSQL moves the identity sequence past an id written explicitly by
// an upsert. It never moves the sequence backwards.
const advanceIDSQL = `SELECT setval(s.seq, $1)
	FROM (SELECT pg_get_serial_sequence('users', 'id')::regclass AS seq) s
	WHERE $1 > COALESCE(pg_sequence_last_value(s.seq), 0)`

func (r *UserRepository) Save(ctx context.Context, u user.User) (user.User, error) {
	saved, err := r.users.Save(ctx, r.db, u)
	if err != nil {
		return user.User{}, classify(err)
	}
	if !u.IsNew() {
		// Postgres does not advance an identity column for explicit values.
		if _, err := r.db.Exec(ctx, advanceIDSQL, saved.ID); err != nil {
			return user.User{}, classify(err)
		}
	}
	return saved, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (user.User, bool, error) {
	u, ok, err := r.users.Get(ctx, r.db, id)
	return u, ok, classify(err)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (user.User, bool, error) {
	// Two rows are enough to notice duplicates when usernames are not unique.
	found, err := r.users.FindBy(ctx, r.db, "username", username, 2)
	if err != nil {
		return user.User{}, false, classify(err)
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
	return func(yield func(user.User, error) bool) {
		for u, err := range r.users.All(ctx, r.db) {
			if !yield(u, classify(err)) || err != nil {
				return
			}
		}
	}
}

func (r *UserRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	removed, err := r.users.Delete(ctx, r.db, id)
	return removed, classify(err)
}

// InTx runs fn against a repository bound to a single transaction.
func (r *UserRepository) InTx(ctx context.Context, fn func(user.Repository) error) error {
	var fnErr error
	err := pgstorage.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		fnErr = fn(&UserRepository{db: tx, users: r.users})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return classify(err)
}
