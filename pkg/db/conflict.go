// pkg/db/conflict.go
package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE codes that mean "the transaction lost a race; run it again".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// codeNumericOutOfRange is raised when a bigint balance would overflow.
const codeNumericOutOfRange = "22003"

// SQLState extracts the SQLSTATE from a lib/pq or pgx error, or "".
func SQLState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsConflict reports whether err is a concurrency conflict that is safe to
// retry from scratch.
func IsConflict(err error) bool {
	switch SQLState(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// IsNumericOverflow reports whether err is a numeric value out of range,
// such as a bigint column pushed past its maximum.
func IsNumericOverflow(err error) bool {
	return SQLState(err) == codeNumericOutOfRange
}
