package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorError(t *testing.T) {
	plain := &AppError{Code: ErrCodeNotFound, Message: "lead not found"}
	if got := plain.Error(); got != "lead not found" {
		t.Errorf("Error() = %q, want %q", got, "lead not found")
	}

	chained := &AppError{
		Code:    ErrCodeInternal,
		Message: "claim job",
		Cause:   errors.New("connection reset"),
	}
	if got := chained.Error(); got != "claim job: connection reset" {
		t.Errorf("Error() = %q, want %q", got, "claim job: connection reset")
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, ErrCodeInternal, "claim job")

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
	if Internal("no cause").Unwrap() != nil {
		t.Error("Unwrap() without a cause should be nil")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
	}{
		{"NotFound", NotFound("job not found"), ErrCodeNotFound, "job not found"},
		{"NotFoundf", NotFoundf("job %s not found", "j1"), ErrCodeNotFound, "job j1 not found"},
		{"Conflict", Conflict("lead already exists"), ErrCodeConflict, "lead already exists"},
		{"Validation", Validation("bad targets"), ErrCodeValidation, "bad targets"},
		{"Validationf", Validationf("bad %s", "targets"), ErrCodeValidation, "bad targets"},
		{"ForeignKey", ForeignKey("tenant missing"), ErrCodeForeignKey, "tenant missing"},
		{"Quota", Quota("out of credits"), ErrCodeQuota, "out of credits"},
		{"Quotaf", Quotaf("only %d left", 2), ErrCodeQuota, "only 2 left"},
		{"Internal", Internal("boom"), ErrCodeInternal, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("job_type", "unknown job type")
	if err.Field != "job_type" {
		t.Errorf("Field = %q, want %q", err.Field, "job_type")
	}
	if err.Code != ErrCodeValidation {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeValidation)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(cause, ErrCodeInternal, "create job")

	if !errors.Is(err, cause) {
		t.Error("expected wrapped error to match cause via errors.Is")
	}
	if err.Code != ErrCodeInternal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInternal)
	}

	if wrapped := Wrap(nil, ErrCodeInternal, "ignored"); wrapped != nil {
		t.Errorf("Wrap(nil) = %v, want nil", wrapped)
	}
}

func TestWrapf(t *testing.T) {
	cause := errors.New("db down")
	err := Wrapf(cause, ErrCodeQuota, "tenant %s over quota", "t1")

	if err.Message != "tenant t1 over quota" {
		t.Errorf("Message = %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("expected wrapped error to match cause via errors.Is")
	}
	if wrapped := Wrapf(nil, ErrCodeQuota, "ignored"); wrapped != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", wrapped)
	}
}

func TestCodePredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"IsNotFound matches", NotFound("x"), IsNotFound, true},
		{"IsNotFound rejects other code", Conflict("x"), IsNotFound, false},
		{"IsConflict matches", Conflict("x"), IsConflict, true},
		{"IsValidation matches", Validation("x"), IsValidation, true},
		{"IsForeignKey matches", ForeignKey("x"), IsForeignKey, true},
		{"IsQuota matches", Quota("x"), IsQuota, true},
		{"IsInternal matches", Internal("x"), IsInternal, true},
		{"IsTimeout matches", &AppError{Code: ErrCodeTimeout}, IsTimeout, true},
		{"IsCanceled matches", &AppError{Code: ErrCodeCanceled}, IsCanceled, true},
		{"plain error never matches", errors.New("x"), IsNotFound, false},
		{"nil never matches", nil, IsQuota, false},
		{
			"wrapped AppError still matches",
			fmt.Errorf("outer: %w", Quota("x")),
			IsQuota,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if code := GetCode(Quota("x")); code != ErrCodeQuota {
		t.Errorf("GetCode = %v, want %v", code, ErrCodeQuota)
	}
	if code := GetCode(errors.New("plain")); code != "" {
		t.Errorf("GetCode = %v, want empty", code)
	}
}

func TestGetField(t *testing.T) {
	if field := GetField(ValidationField("name", "required")); field != "name" {
		t.Errorf("GetField = %q, want %q", field, "name")
	}
	if field := GetField(errors.New("plain")); field != "" {
		t.Errorf("GetField = %q, want empty", field)
	}
}
