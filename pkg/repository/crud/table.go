// Package crud builds and runs the statements of a generic single-table
// repository over pgx. Entity stores compose a Table and add their own
// queries on top of it.
package crud

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the statement surface a Table needs. *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Mapping describes how an entity maps onto a table.
type Mapping[E any, ID comparable] struct {
	Table    string
	IDColumn string
	// Columns are written by Insert/Upsert, in the order Values returns them.
	Columns []string
	// Generated columns are filled by the database and only ever read.
	Generated []string

	ID     func(E) ID
	Values func(E) []any
	// Scan reads one row laid out as IDColumn, Columns..., Generated...
	Scan func(row pgx.Row) (E, error)
}

// Table runs CRUD statements for one Mapping.
type Table[E any, ID comparable] struct {
	m        Mapping[E, ID]
	writable map[string]bool

	selectSQL string
	insertSQL string
	upsertSQL string
	getSQL    string
	allSQL    string
	deleteSQL string
}

// NewTable validates m and precomputes its statements.
func NewTable[E any, ID comparable](m Mapping[E, ID]) (*Table[E, ID], error) {
	if strings.TrimSpace(m.Table) == "" || strings.TrimSpace(m.IDColumn) == "" {
		return nil, errors.New("crud: table and id column are required")
	}
	if len(m.Columns) == 0 {
		return nil, errors.New("crud: at least one writable column is required")
	}
	if m.ID == nil || m.Values == nil || m.Scan == nil {
		return nil, errors.New("crud: ID, Values and Scan are required")
	}

	t := &Table[E, ID]{m: m, writable: make(map[string]bool, len(m.Columns))}
	for _, c := range m.Columns {
		if c == m.IDColumn || t.writable[c] {
			return nil, fmt.Errorf("crud: duplicate column %q", c)
		}
		t.writable[c] = true
	}

	table := ident(m.Table)
	id := ident(m.IDColumn)
	all := append([]string{m.IDColumn}, m.Columns...)
	all = append(all, m.Generated...)
	returning := identList(all)

	t.selectSQL = fmt.Sprintf("SELECT %s FROM %s", returning, table)
	t.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		table, identList(m.Columns), placeholders(1, len(m.Columns)), returning)

	sets := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", ident(c), ident(c))
	}
	t.upsertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s",
		table, identList(append([]string{m.IDColumn}, m.Columns...)), placeholders(1, len(m.Columns)+1),
		id, strings.Join(sets, ", "), returning)

	t.getSQL = fmt.Sprintf("%s WHERE %s = $1", t.selectSQL, id)
	t.allSQL = fmt.Sprintf("%s ORDER BY %s", t.selectSQL, id)
	t.deleteSQL = fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, id)
	return t, nil
}

// Save inserts e when its ID is the zero value and upserts it otherwise.
func (t *Table[E, ID]) Save(ctx context.Context, q Querier, e E) (E, error) {
	var zero ID
	if t.m.ID(e) == zero {
		return t.Insert(ctx, q, e)
	}
	return t.Upsert(ctx, q, e)
}

// Insert adds e and lets the database assign the ID.
func (t *Table[E, ID]) Insert(ctx context.Context, q Querier, e E) (E, error) {
	values, err := t.values(e)
	if err != nil {
		return e, err
	}
	return t.m.Scan(q.QueryRow(ctx, t.insertSQL, values...))
}

// Upsert writes e under its own ID, replacing the writable columns of an existing row.
func (t *Table[E, ID]) Upsert(ctx context.Context, q Querier, e E) (E, error) {
	values, err := t.values(e)
	if err != nil {
		return e, err
	}
	args := append([]any{t.m.ID(e)}, values...)
	return t.m.Scan(q.QueryRow(ctx, t.upsertSQL, args...))
}

// Get returns the row with the given ID; ok is false when there is none.
func (t *Table[E, ID]) Get(ctx context.Context, q Querier, id ID) (e E, ok bool, err error) {
	e, err = t.m.Scan(q.QueryRow(ctx, t.getSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		var zero E
		return zero, false, nil
	}
	if err != nil {
		var zero E
		return zero, false, err
	}
	return e, true, nil
}

// FindBy returns rows whose writable column equals value, ordered by ID.
// limit <= 0 means no limit.
func (t *Table[E, ID]) FindBy(ctx context.Context, q Querier, column string, value any, limit int) ([]E, error) {
	if !t.writable[column] {
		return nil, fmt.Errorf("crud: unknown column %q", column)
	}
	query := fmt.Sprintf("%s WHERE %s = $1 ORDER BY %s", t.selectSQL, ident(column), ident(t.m.IDColumn))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var found []E
	for e, err := range t.query(ctx, q, query, value) {
		if err != nil {
			return nil, err
		}
		found = append(found, e)
	}
	return found, nil
}

// All streams every row ordered by ID. Each range runs the query again.
func (t *Table[E, ID]) All(ctx context.Context, q Querier) iter.Seq2[E, error] {
	return t.query(ctx, q, t.allSQL)
}

// Delete removes the row with the given ID and reports whether one existed.
func (t *Table[E, ID]) Delete(ctx context.Context, q Querier, id ID) (bool, error) {
	tag, err := q.Exec(ctx, t.deleteSQL, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *Table[E, ID]) query(ctx context.Context, q Querier, sql string, args ...any) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		var zero E
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			yield(zero, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			e, err := t.m.Scan(rows)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, err)
		}
	}
}

func (t *Table[E, ID]) values(e E) ([]any, error) {
	values := t.m.Values(e)
	if len(values) != len(t.m.Columns) {
		return nil, fmt.Errorf("crud: %s: got %d values for %d columns", t.m.Table, len(values), len(t.m.Columns))
	}
	return values, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}
