package job

import "errors"

// NonRetryableError marks a failure that must terminate a job immediately,
// skipping the remaining attempt budget. Unknown job types and other
// configuration faults fall in this category: retrying cannot fix them.
type NonRetryableError struct {
	Err error
}

// NonRetryable wraps err so the failure path fails the job permanently
// instead of scheduling a retry. Returns nil when err is nil.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

func (e *NonRetryableError) Error() string {
	if e == nil || e.Err == nil {
		return "non-retryable job failure"
	}
	return e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNonRetryable reports whether err (or anything it wraps) was marked
// with NonRetryable.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}
