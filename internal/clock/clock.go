// Package clock abstracts the timer source used by the event engine so that
// tests can drive time by hand.
package clock

import "time"

// Clock schedules callbacks and reports the current time.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once, after d has elapsed. A non-positive d means
	// "as soon as possible", never synchronously from within AfterFunc.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable AfterFunc registration.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer (false if it already fired or was stopped).
	Stop() bool
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	return time.AfterFunc(d, f)
}
