// Package clock provides an injectable time source so time-dependent logic
// (night-surcharge windows) can be tested without touching the host clock.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the system time.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fixed is a Clock frozen at a specific instant, for tests.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.T
}
