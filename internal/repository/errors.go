package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// IsDuplicate signals a unique key violation, optionally on a given constraint.
func IsDuplicate(err error, constraint ...string) bool {
	var pgerr *pgconn.PgError
	if !errors.As(err, &pgerr) || pgerr.Code != codeUniqueViolation {
		return false
	}
	if len(constraint) == 0 {
		return true
	}
	for _, c := range constraint {
		if pgerr.ConstraintName == c {
			return true
		}
	}
	return false
}

// IsForeignKey signals a reference to a missing row.
func IsForeignKey(err error) bool {
	var pgerr *pgconn.PgError
	return errors.As(err, &pgerr) && pgerr.Code == codeForeignKeyViolation
}

// IsCheckViolation signals a rejected CHECK constraint, e.g. negative stock.
func IsCheckViolation(err error) bool {
	var pgerr *pgconn.PgError
	return errors.As(err, &pgerr) && pgerr.Code == codeCheckViolation
}

// IsNotFound signals that the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
