// Package input defines the sources of raw down/up transitions that feed the
// gesture classifiers. GPIO buttons and Linux input-device keys implement
// Source; FakeSource allows testing without hardware.
package input

import "time"

// Transition is one raw value change of a control.
type Transition struct {
	Down bool
	Time time.Time
}

// Source delivers the transitions of one physical control in the order they
// were generated.
type Source interface {
	// Name identifies the control.
	Name() string

	// Momentary reports whether the control reports separate press and
	// release values.
	Momentary() bool

	// Transitions is closed when the source stops; Err then reports why.
	Transitions() <-chan Transition

	// Err returns the error that stopped the source, or nil.
	Err() error

	// Close releases the underlying device.
	Close() error
}

// transitionBuffer is the channel capacity used by hardware sources.
const transitionBuffer = 64

// NewTransitionChan returns a buffered channel sized for hardware sources.
func NewTransitionChan() chan Transition {
	return make(chan Transition, transitionBuffer)
}
