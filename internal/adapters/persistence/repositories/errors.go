package repositories

import (
	"errors"
	"fmt"
	"strings"

	"estate-commission/internal/core/domain"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// MySQL error numbers
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// Postgres SQLSTATE codes
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// IsDuplicate reports whether err is a unique constraint violation
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, domain.ErrDuplicateEntry) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsTransient reports whether err is lock contention or a timeout worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrTransientStorage) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockWaitTimeout || myErr.Number == mysqlDeadlock
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// Translate maps storage errors onto the domain taxonomy. notFound is
// returned for gorm.ErrRecordNotFound.
func Translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case IsTransient(err):
		return fmt.Errorf("%w: %v", domain.ErrTransientStorage, err)
	case IsDuplicate(err):
		return fmt.Errorf("%w: %v", domain.ErrDuplicateEntry, err)
	default:
		return err
	}
}
