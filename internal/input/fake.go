package input

import (
	"sync"
	"time"
)

// FakeSource is a test double whose transitions are pushed by the test.
type FakeSource struct {
	name      string
	momentary bool
	ch        chan Transition

	mu     sync.Mutex
	err    error
	closed bool

	// Now stamps pushed transitions. Defaults to time.Now.
	Now func() time.Time
}

// NewFakeSource creates a FakeSource.
func NewFakeSource(name string, momentary bool) *FakeSource {
	return &FakeSource{
		name:      name,
		momentary: momentary,
		ch:        NewTransitionChan(),
		Now:       time.Now,
	}
}

// Name returns the configured name.
func (f *FakeSource) Name() string { return f.name }

// Momentary returns the configured trait.
func (f *FakeSource) Momentary() bool { return f.momentary }

// Transitions returns the channel fed by Push.
func (f *FakeSource) Transitions() <-chan Transition { return f.ch }

// Push delivers a transition. It is a no-op after Close or Fail.
func (f *FakeSource) Push(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.ch <- Transition{Down: down, Time: f.Now()}
}

// Fail stops the source with err, as a device read failure would.
func (f *FakeSource) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.err = err
	f.closed = true
	close(f.ch)
}

// Err returns the error passed to Fail.
func (f *FakeSource) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close stops the source.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	return nil
}

// Closed reports whether Close or Fail was called.
func (f *FakeSource) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
