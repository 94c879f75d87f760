// Package gesture classifies the raw down/up stream of one momentary control
// into single-press, double-press and long-press gestures.
// Timing comes from an injected Scheduler, so tests run on a virtual clock.
package gesture

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/footswitch/internal/timer"
)

// Default gesture windows.
const (
	DefaultLongPressDelay   = 750 * time.Millisecond
	DefaultDoublePressDelay = 200 * time.Millisecond
)

// ErrClosed is returned by OnTransition after Close.
var ErrClosed = errors.New("gesture: classifier closed")

// Kind is a classified gesture.
type Kind string

const (
	SinglePress Kind = "SINGLE_PRESS"
	DoublePress Kind = "DOUBLE_PRESS"
	LongPress   Kind = "LONG_PRESS"
)

// State is the phase of the gesture in progress.
type State int

const (
	// StateWaiting is both the initial state and the state after every
	// completed gesture.
	StateWaiting State = iota
	// StateLongPressCandidate: pressed, long-press timer armed.
	StateLongPressCandidate
	// StateDoubleTapCandidate: released, double-press timer armed.
	StateDoubleTapCandidate
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateLongPressCandidate:
		return "LONG_PRESS_CANDIDATE"
	case StateDoubleTapCandidate:
		return "DOUBLE_TAP_CANDIDATE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is a gesture attributed to a named button.
type Event struct {
	Timestamp time.Time
	Button    string
	Kind      Kind
}

// Config describes the wrapped control.
type Config struct {
	// Name identifies the control in logs and published events.
	Name string
	// Momentary controls report separate press and release values.
	// For non-momentary controls every transition counts as a press.
	Momentary bool
	// LongPressDelay defaults to DefaultLongPressDelay when zero.
	LongPressDelay time.Duration
	// DoublePressDelay defaults to DefaultDoublePressDelay when zero.
	DoublePressDelay time.Duration
}

// WithDefaults returns c with zero delays replaced by the defaults.
func (c Config) WithDefaults() Config {
	if c.LongPressDelay <= 0 {
		c.LongPressDelay = DefaultLongPressDelay
	}
	if c.DoublePressDelay <= 0 {
		c.DoublePressDelay = DefaultDoublePressDelay
	}
	return c
}

// Scheduler arms and cancels one-shot timers. *timer.Service implements it.
type Scheduler interface {
	Schedule(h *timer.Handle, delay time.Duration, fn func()) error
	Cancel(h *timer.Handle)
}
