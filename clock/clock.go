// Package clock abstracts time for deterministic tests.
package clock

import "time"

// Time is the wall clock.
var Time Clock = &wallClock{}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (*wallClock) Now() time.Time {
	return time.Now()
}
