package data

import "time"

// Clock abstracts time.Now so retry schedules and stuck-job cutoffs can be
// tested against a frozen instant instead of the wall clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real system time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FrozenClock reports a fixed instant until advanced. Not safe for
// concurrent use; it exists for single-goroutine tests.
type FrozenClock struct {
	now time.Time
}

// NewFrozenClock returns a clock stopped at t.
func NewFrozenClock(t time.Time) *FrozenClock {
	return &FrozenClock{now: t}
}

// Now returns the frozen instant.
func (f *FrozenClock) Now() time.Time {
	return f.now
}

// Advance moves the frozen instant forward by d.
func (f *FrozenClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}
