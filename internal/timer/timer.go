// Package timer schedules one-shot delayed callbacks that can be cancelled
// before they fire. A cancelled callback never runs.
// Time is injectable through Clock so callers can be tested on a virtual clock.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSchedulerUnavailable is returned when a callback cannot be armed.
var ErrSchedulerUnavailable = errors.New("timer: scheduler unavailable")

// State is the lifecycle state of a Handle.
type State int

const (
	// Idle means never started, cancelled, or superseded.
	Idle State = iota
	// Armed means counting down.
	Armed
	// Fired means the callback was released to run.
	Fired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handle is one scheduled delayed callback. The zero value is idle.
// A Handle must not be copied after first use.
type Handle struct {
	mu    sync.Mutex
	state State
	gen   uint64 // bumped on every cancel/arm; stale firings compare against it
	stop  Stopper
}

// State returns the current state of the handle.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// disarmLocked invalidates any pending firing. h.mu must be held.
func (h *Handle) disarmLocked() {
	h.gen++
	if h.state == Armed {
		if h.stop != nil {
			h.stop.Stop()
		}
		h.state = Idle
	}
	h.stop = nil
}

// claim is the fire decision: it succeeds only for the current arming.
func (h *Handle) claim(gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gen != gen || h.state != Armed {
		return false
	}
	h.state = Fired
	h.stop = nil
	return true
}

// Service arms and cancels handles on a Clock.
// It is safe for concurrent use by many handle owners.
type Service struct {
	clock Clock

	mu     sync.Mutex
	closed bool
}

// NewService creates a Service backed by clock.
func NewService(clock Clock) *Service {
	return &Service{clock: clock}
}

// Now returns the current time of the underlying clock.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Schedule arms h to run fn once after delay. It never blocks on the delay.
// Scheduling an armed handle supersedes the previous arming.
func (s *Service) Schedule(h *Handle, delay time.Duration, fn func()) error {
	return s.arm(h, delay, fn)
}

// Restart cancels any pending arming of h and schedules fn after delay as a
// single step: the previous callback cannot fire once Restart has been called.
func (s *Service) Restart(h *Handle, delay time.Duration, fn func()) error {
	return s.arm(h, delay, fn)
}

// Cancel disarms h. Cancelling an idle or fired handle is a no-op.
// If the callback has already been released it is left to complete.
func (s *Service) Cancel(h *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Armed {
		return
	}
	h.disarmLocked()
}

// Close marks the scheduler unavailable. Later Schedule and Restart calls
// fail with ErrSchedulerUnavailable. Armed handles are left to their owners.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Service) available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Service) arm(h *Handle, delay time.Duration, fn func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.disarmLocked()
	if !s.available() {
		return ErrSchedulerUnavailable
	}

	gen := h.gen
	stop, err := s.clock.AfterFunc(delay, func() {
		if h.claim(gen) {
			fn()
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchedulerUnavailable, err)
	}

	h.state = Armed
	h.stop = stop
	return nil
}
