package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/artem13815/users/pkg/user"
)

// integrityConstraintClass is SQLSTATE class 23 (unique_violation, not_null_violation, ...).
const integrityConstraintClass = "23"

// classify tags a driver error with the matching storage category, keeping err in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, integrityConstraintClass) {
		return fmt.Errorf("%w: %w", user.ErrConstraintViolation, err)
	}
	return fmt.Errorf("%w: %w", user.ErrConnectivity, err)
}
