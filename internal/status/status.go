// Package status provides a thread-safe status tracker for the footswitch
// daemon. It is written by the run loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/footswitch/internal/gesture"
)

// Config contains daemon configuration for display.
type Config struct {
	Broker    string
	HTTPAddr  string
	Heartbeat time.Duration
	Buttons   []ButtonConfig
}

// ButtonConfig describes one configured control for display.
type ButtonConfig struct {
	Name        string
	Source      string
	Momentary   bool
	LongPress   time.Duration
	DoublePress time.Duration
}

// ButtonStatus is the gesture activity of one control.
type ButtonStatus struct {
	ButtonConfig
	Counts gesture.Counts
	Last   *gesture.Event
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; Buttons is copied and safe to use after the lock is
// released.
type Snapshot struct {
	Buttons       []ButtonStatus
	Counts        gesture.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with one entry per configured button, in
// configuration order.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	buttons := make([]ButtonStatus, len(cfg.Buttons))
	for i, b := range cfg.Buttons {
		buttons[i] = ButtonStatus{ButtonConfig: b}
	}
	return &Tracker{
		snap: Snapshot{
			Buttons:   buttons,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies counts and last gestures from the run loop's tally.
// Buttons the tracker was not configured with are ignored.
func (t *Tracker) Update(tally *gesture.Tally) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Counts = tally.Total()
	for i := range t.snap.Buttons {
		b := &t.snap.Buttons[i]
		b.Counts = tally.Button(b.Name)
		if last, ok := tally.Last(b.Name); ok {
			b.Last = &last
		}
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buttons = append([]ButtonStatus(nil), t.snap.Buttons...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
