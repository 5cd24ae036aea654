// Package storage holds helpers shared by the PostgreSQL store adapters.
package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation.
// Both drivers in use are recognized: lib/pq (integration test harness) and
// pgx via database/sql (production wiring in cmd/server).
//
// Stores map this onto sentinel.ErrConflict; the saga treats the store's
// answer as authoritative over its own pre-flight existence checks.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
