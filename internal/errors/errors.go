// Package errors defines the worker's error taxonomy. Failures cross
// layer boundaries as *AppError values tagged with a machine-readable
// code, so callers branch on the code rather than matching message text.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an AppError for programmatic handling.
type ErrorCode string

// Codes carried by AppError. The string values show up in logs and in
// metric labels, so they are stable.
const (
	ErrCodeNotFound   ErrorCode = "not_found"   // the referenced resource does not exist
	ErrCodeConflict   ErrorCode = "conflict"    // a uniqueness rule rejected the write
	ErrCodeValidation ErrorCode = "validation"  // the input failed a validation check
	ErrCodeForeignKey ErrorCode = "foreign_key" // a referenced parent row is missing
	ErrCodeQuota      ErrorCode = "quota"       // a plan limit (credits or concurrency) was hit
	ErrCodeInternal   ErrorCode = "internal"    // an unexpected failure inside the worker
	ErrCodeTimeout    ErrorCode = "timeout"     // the operation exceeded its deadline
	ErrCodeCanceled   ErrorCode = "canceled"    // the operation's context was canceled
)

// AppError is the error type exchanged between layers. Code drives
// control flow, Message is safe to surface, Cause keeps the original
// error reachable through errors.Is and errors.As, and Field names the
// offending input on validation failures.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Field   string // set only by ValidationField
}

// Error returns the message, with the cause appended when one is set.
func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

// Unwrap exposes the cause to the errors package.
func (e *AppError) Unwrap() error { return e.Cause }

// NotFound marks a lookup that matched nothing.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf is NotFound with a Sprintf-style message.
func NotFoundf(format string, args ...any) *AppError {
	return NotFound(fmt.Sprintf(format, args...))
}

// Conflict marks a write rejected by a uniqueness rule.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Validation marks input that failed a validation check.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf is Validation with a Sprintf-style message.
func Validationf(format string, args ...any) *AppError {
	return Validation(fmt.Sprintf(format, args...))
}

// ValidationField is Validation with the offending field recorded.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// ForeignKey marks a write that referenced a missing parent row.
func ForeignKey(message string) *AppError {
	return &AppError{Code: ErrCodeForeignKey, Message: message}
}

// Quota marks a request rejected by a plan limit.
func Quota(message string) *AppError {
	return &AppError{Code: ErrCodeQuota, Message: message}
}

// Quotaf is Quota with a Sprintf-style message.
func Quotaf(format string, args ...any) *AppError {
	return Quota(fmt.Sprintf(format, args...))
}

// Internal marks an unexpected failure inside the worker.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Wrap attaches a code and message to err, keeping err as the cause.
// It returns nil when err is nil so call sites can wrap unconditionally.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a Sprintf-style message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode reports whether err is, or wraps, an AppError with the given code.
func isCode(err error, code ErrorCode) bool {
	var app *AppError
	return errors.As(err, &app) && app.Code == code
}

// IsNotFound reports whether err carries ErrCodeNotFound.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict reports whether err carries ErrCodeConflict.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation reports whether err carries ErrCodeValidation.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsForeignKey reports whether err carries ErrCodeForeignKey.
func IsForeignKey(err error) bool { return isCode(err, ErrCodeForeignKey) }

// IsQuota reports whether err carries ErrCodeQuota.
func IsQuota(err error) bool { return isCode(err, ErrCodeQuota) }

// IsInternal reports whether err carries ErrCodeInternal.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// IsTimeout reports whether err carries ErrCodeTimeout.
func IsTimeout(err error) bool { return isCode(err, ErrCodeTimeout) }

// IsCanceled reports whether err carries ErrCodeCanceled.
func IsCanceled(err error) bool { return isCode(err, ErrCodeCanceled) }

// GetCode extracts the code from err, or "" when err is not an AppError.
func GetCode(err error) ErrorCode {
	var app *AppError
	if !errors.As(err, &app) {
		return ""
	}
	return app.Code
}

// GetField extracts the field name from err, or "" when err is not an
// AppError or no field was recorded.
func GetField(err error) string {
	var app *AppError
	if !errors.As(err, &app) {
		return ""
	}
	return app.Field
}
