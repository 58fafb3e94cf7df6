package user

import (
	"context"
	"errors"
	"iter"
)

// Common errors used by repositories/use cases
var (
	ErrNotFound            = errors.New("user not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrConnectivity        = errors.New("storage unavailable")
	ErrInvalidUsername     = errors.New("invalid username")
)

// Repository abstracts persistence concerns from the domain layer.
//
// Lookups report absence through the boolean result, never through an error.
// Storage failures match ErrConstraintViolation or ErrConnectivity with the
// driver error kept in the chain.
type Repository interface {
	// Save inserts u when it has no ID, otherwise inserts or replaces the row with u.ID.
	Save(ctx context.Context, u User) (User, error)
	FindByID(ctx context.Context, id int64) (User, bool, error)
	FindByUsername(ctx context.Context, username string) (User, bool, error)
	// FindAll streams every user ordered by ID. Each range re-runs the query.
	FindAll(ctx context.Context) iter.Seq2[User, error]
	DeleteByID(ctx context.Context, id int64) (bool, error)
}

// TxRepository is a Repository able to scope several calls in one transaction.
// fn's Repository is only valid until fn returns.
type TxRepository interface {
	Repository
	InTx(ctx context.Context, fn func(Repository) error) error
}
