package gesture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Listener receives a notification. Press channels pass true; the raw
// channel passes the transition's down value.
type Listener func(value bool)

// ListenerID identifies a registered listener.
type ListenerID uint64

// ListenerError reports a listener that panicked during notification.
type ListenerError struct {
	Channel  string
	Listener ListenerID
	Cause    any
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("gesture: listener %d on %s failed: %v", e.Listener, e.Channel, e.Cause)
}

// Channel fans a notification out to its listeners in registration order.
type Channel struct {
	name   string
	logger *zap.SugaredLogger

	mu        sync.Mutex
	nextID    ListenerID
	listeners []registration
	closed    atomic.Bool
	failures  atomic.Uint64
}

type registration struct {
	id ListenerID
	fn Listener
}

func newChannel(name string, logger *zap.SugaredLogger) *Channel {
	return &Channel{name: name, logger: logger}
}

// Name returns the channel name (single_press, double_press, long_press, raw).
func (c *Channel) Name() string {
	return c.name
}

// AddListener registers fn and returns its ID for RemoveListener.
// The same function may be registered more than once.
func (c *Channel) AddListener(fn Listener) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners = append(c.listeners, registration{id: c.nextID, fn: fn})
	return c.nextID
}

// RemoveListener unregisters a listener. It reports whether id was registered.
func (c *Channel) RemoveListener(id ListenerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.listeners {
		if r.id == id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered listeners.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Failures returns how many listener calls have panicked.
func (c *Channel) Failures() uint64 {
	return c.failures.Load()
}

// emit calls every listener registered at the time of the call.
// Listeners may add or remove listeners, or feed the classifier, from inside
// the callback.
func (c *Channel) emit(value bool) {
	c.mu.Lock()
	snapshot := c.listeners
	c.mu.Unlock()

	for _, r := range snapshot {
		if c.closed.Load() {
			return
		}
		c.call(r, value)
	}
}

func (c *Channel) call(r registration, value bool) {
	defer func() {
		if p := recover(); p != nil {
			c.failures.Add(1)
			err := &ListenerError{Channel: c.name, Listener: r.id, Cause: p}
			c.logger.Errorw("listener failed", "channel", c.name, "listener", r.id, "error", err)
		}
	}()
	r.fn(value)
}

// close drops every listener; no listener is called afterwards.
func (c *Channel) close() {
	c.closed.Store(true)
	c.mu.Lock()
	c.listeners = nil
	c.mu.Unlock()
}
