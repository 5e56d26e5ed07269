package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Patterns for pulling structure out of PgError.Detail, which is often the
// only place Postgres names the offending column or table.
var (
	// "Key (field)=(value) already exists."
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// "... is not present in table "tenants"."
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// MapDBError translates driver-level failures into AppError values the rest
// of the worker can branch on: pgx.ErrNoRows becomes NotFound, unique
// violations become Conflict, foreign key violations become ForeignKey,
// CHECK and NOT NULL violations become Validation, and context errors become
// Timeout or Canceled. Anything unrecognized passes through untouched.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: "operation timed out", Cause: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "operation was canceled", Cause: err}
	case errors.Is(err, pgx.ErrNoRows):
		return &AppError{Code: ErrCodeNotFound, Message: "resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return mapUniqueViolation(pgErr)
	case pgerrcode.ForeignKeyViolation:
		return mapForeignKeyViolation(pgErr)
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "invalid value for this field",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	default:
		return &AppError{
			Code:    ErrCodeInternal,
			Message: "a database error occurred",
			Cause:   pgErr,
		}
	}
}

func mapUniqueViolation(pgErr *pgconn.PgError) error {
	field := pgErr.ColumnName

	// Multi-column indexes usually leave ColumnName blank; the Detail line
	// still carries the key list.
	if field == "" && pgErr.Detail != "" {
		if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			field = m[1]
		}
	}

	return &AppError{
		Code:    ErrCodeConflict,
		Message: "this value already exists",
		Field:   field,
		Cause:   pgErr,
	}
}

func mapForeignKeyViolation(pgErr *pgconn.PgError) error {
	message := "operation references a row that does not exist"

	if pgErr.Detail != "" {
		if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			message = "referenced " + tableToDomain(m[1]) + " does not exist"
		}
	} else if pgErr.TableName != "" {
		message = "operation references a missing " + tableToDomain(pgErr.TableName)
	}

	return &AppError{
		Code:    ErrCodeForeignKey,
		Message: message,
		Cause:   pgErr,
	}
}

// tableToDomain turns a table name into the noun used in error messages.
func tableToDomain(tableName string) string {
	switch strings.ToLower(strings.TrimSpace(tableName)) {
	case "tenants":
		return "tenant"
	case "jobs":
		return "job"
	case "leads":
		return "lead"
	case "usage_monthly":
		return "usage record"
	default:
		return strings.ReplaceAll(strings.ToLower(tableName), "_", " ")
	}
}
