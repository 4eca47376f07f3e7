package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// driverMessages are the unique-violation texts of drivers that do not
// expose a typed error through gorm (mysql 1062, sqlite 2067).
var driverMessages = []string{
	"duplicate key value violates unique constraint",
	"Error 1062",
	"UNIQUE constraint failed",
}

// IsDuplicateKeyErr reports whether err is a unique constraint violation on
// any supported dialect.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if ViolatedConstraint(err) != "" {
		return true
	}
	msg := err.Error()
	for _, m := range driverMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// ViolatedConstraint returns the name of the violated unique index when the
// postgres driver reports it, and "" otherwise.
func ViolatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return firstNonEmpty(pgErr.ConstraintName, "unknown")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return firstNonEmpty(pqErr.Constraint, "unknown")
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
