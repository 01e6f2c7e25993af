// Package pgerr maps PostgreSQL failures onto the core's error taxonomy.
package pgerr

import (
	"errors"
	"fmt"

	"courierhub/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

// Classify wraps lost storage races with ports.ErrStorageContention and
// returns every other error unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ports.ErrStorageContention) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %w", ports.ErrStorageContention, err)
	default:
		return err
	}
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
