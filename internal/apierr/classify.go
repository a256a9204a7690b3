// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package apierr

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// MySQL error numbers for constraint violations; see
// https://dev.mysql.com/doc/mysql-errors/.
const (
	mysqlErrDupEntry       = 1062
	mysqlErrCheckViolation = 3819
	mysqlErrNoReferencedRow = 1452
)

// IsUniqueConstraintError reports whether err is a unique/primary-key
// violation from any of the supported storage engines.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDupEntry
	}

	return false
}

// IsCheckConstraintError reports whether err is a CHECK constraint
// violation.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code() == sqlitelib.SQLITE_CONSTRAINT_CHECK
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrCheckViolation
	}

	return false
}

// IsForeignKeyConstraintError reports whether err is a foreign-key
// violation.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code() == sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrNoReferencedRow
	}

	return false
}

// FromStorage classifies an error returned by the embedded storage executor
// into a typed *Error, recognizing constraint violations as Conflict and
// context cancellation/deadline as Timeout.
func FromStorage(err error, message string) error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(KindTimeout, message, err)
	}
	if IsUniqueConstraintError(err) || IsCheckConstraintError(err) || IsForeignKeyConstraintError(err) {
		return Wrap(KindConflict, message, err)
	}
	return Wrap(KindStorageFailure, message, err)
}

// FromExternal classifies an error returned by an external backend adapter,
// preserving Conflict classification but otherwise reporting
// ExternalFailure rather than StorageFailure.
func FromExternal(err error, message string) error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(KindTimeout, message, err)
	}
	if IsUniqueConstraintError(err) || IsCheckConstraintError(err) || IsForeignKeyConstraintError(err) {
		return Wrap(KindConflict, message, err)
	}
	return Wrap(KindExternalFailure, message, err)
}
