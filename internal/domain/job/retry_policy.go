// Package job holds pure domain policies for the scrape-job lifecycle.
package job

import (
	"errors"
	"time"
)

// ErrInvalidMaxAttempts indicates the configured attempt budget is below one.
var ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")

// ErrInvalidBaseBackoff indicates the configured base backoff is below one second.
var ErrInvalidBaseBackoff = errors.New("base backoff must be at least one second")

// maxBackoffShift caps the exponent so a runaway attempt count cannot
// overflow time.Duration.
const maxBackoffShift = 20

// RetryPolicy computes backoff delays and the attempt budget for failed jobs.
// It is pure and safe for concurrent use.
type RetryPolicy struct {
	maxAttempts int
	baseBackoff time.Duration
}

// NewRetryPolicy constructs a RetryPolicy from a sanitized attempt budget and base backoff.
func NewRetryPolicy(maxAttempts int, baseBackoff time.Duration) (*RetryPolicy, error) {
	if maxAttempts < 1 {
		return nil, ErrInvalidMaxAttempts
	}
	if baseBackoff < time.Second {
		return nil, ErrInvalidBaseBackoff
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
	}, nil
}

// MaxAttempts returns the configured attempt budget.
func (p *RetryPolicy) MaxAttempts() int {
	if p == nil {
		return 0
	}
	return p.maxAttempts
}

// BaseBackoff returns the delay applied after the first failed attempt.
func (p *RetryPolicy) BaseBackoff() time.Duration {
	if p == nil {
		return 0
	}
	return p.baseBackoff
}

// Delay returns the backoff for a 1-indexed attempt count:
// base for attempt 1, doubling each attempt after. Attempt counts below one
// are clamped to one so a caller passing zero still gets the base delay.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if p == nil {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return p.baseBackoff << shift
}

// Exhausted reports whether a job with the given attempt count has used its
// whole budget and must fail permanently instead of retrying.
func (p *RetryPolicy) Exhausted(attempt int) bool {
	if p == nil {
		return true
	}
	return attempt >= p.maxAttempts
}
