// Package repositories persists jobs, assets and presets in Postgres.
package repositories

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"montage/internal/pkg/errors"
)

// IsUndefinedTable reports a 42P01 undefined_table error.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}
	return false
}

// IsUniqueViolation reports a 23505 unique_violation error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// IsForeignKeyViolation reports a 23503 foreign_key_violation error.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// lookup maps a missing row to NOT_FOUND and wraps anything else.
func lookup(err error, resource, id, op string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.NotFound(resource, id)
	}
	return errors.Wrap(err, op, "database query failed")
}
