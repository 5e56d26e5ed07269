// Package errors derives stable, low-cardinality class names from Go errors
// for use as metric and log tags.
package errors

import (
	"context"
	stderrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/Rishet11/LeadPilot/internal/errors"
)

// Classify maps err onto a class name safe to use as a metric tag value.
// Coded application errors classify by their code, context errors by their
// cancellation cause, and everything else by the innermost concrete type.
// A nil error classifies as "".
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return string(appErr.Code)
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return string(apperrors.ErrCodeTimeout)
	case stderrors.Is(err, context.Canceled):
		return string(apperrors.ErrCodeCanceled)
	}

	return typeName(innermost(err))
}

// innermost follows the Unwrap chain to the root cause.
func innermost(err error) error {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// typeName renders an error's concrete type as snake_case-ish tag text.
func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(t.String())
	name = strings.ReplaceAll(name, "*", "")
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
