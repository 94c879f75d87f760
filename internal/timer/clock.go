package timer

import "time"

// Stopper cancels a callback registered with a Clock.
type Stopper interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or was already stopped.
	Stop() bool
}

// Clock provides delayed callbacks and the current time.
type Clock interface {
	// AfterFunc runs f on its own goroutine (or, for virtual clocks, when
	// time is advanced) once d has elapsed. It must not call f before
	// returning.
	AfterFunc(d time.Duration, f func()) (Stopper, error)
	Now() time.Time
}

// WallClock is the Clock backed by the runtime timer heap.
type WallClock struct{}

// AfterFunc wraps time.AfterFunc.
func (WallClock) AfterFunc(d time.Duration, f func()) (Stopper, error) {
	return time.AfterFunc(d, f), nil
}

// Now returns time.Now.
func (WallClock) Now() time.Time {
	return time.Now()
}
