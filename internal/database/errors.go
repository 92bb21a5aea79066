package database

import (
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// IsConstraintViolation reports whether err comes from an integrity
// constraint: unique, foreign key, not null or check.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) ||
		stderrors.Is(err, gorm.ErrForeignKeyViolated) ||
		stderrors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		// SQLSTATE class 23: integrity constraint violation.
		return strings.HasPrefix(pgErr.Code, "23")
	}

	// sqlite reports NOT NULL failures without a gorm translation.
	return strings.Contains(err.Error(), "constraint failed")
}

func IsNotFound(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}
