package gesture

import "time"

// Counts tracks the number of each gesture since startup.
type Counts struct {
	SinglePress int
	DoublePress int
	LongPress   int
}

// Total returns the sum of all gestures.
func (c Counts) Total() int {
	return c.SinglePress + c.DoublePress + c.LongPress
}

func (c *Counts) add(k Kind) {
	switch k {
	case SinglePress:
		c.SinglePress++
	case DoublePress:
		c.DoublePress++
	case LongPress:
		c.LongPress++
	}
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
	Buttons   map[string]Counts // per button, copied
}

// Tally counts gestures per button and paces heartbeats.
// Not safe for concurrent use; it is owned by the daemon's run loop.
type Tally struct {
	startTime     time.Time
	lastHeartbeat time.Time
	total         Counts
	buttons       map[string]Counts
	last          map[string]Event
}

// NewTally creates a Tally. The startTime is used for uptime in heartbeats.
func NewTally(startTime time.Time, buttons ...string) *Tally {
	t := &Tally{
		startTime:     startTime,
		lastHeartbeat: startTime,
		buttons:       make(map[string]Counts, len(buttons)),
		last:          make(map[string]Event, len(buttons)),
	}
	for _, b := range buttons {
		t.buttons[b] = Counts{}
	}
	return t
}

// Record counts one gesture.
func (t *Tally) Record(e Event) {
	t.total.add(e.Kind)
	c := t.buttons[e.Button]
	c.add(e.Kind)
	t.buttons[e.Button] = c
	t.last[e.Button] = e
}

// Total returns the counts across all buttons.
func (t *Tally) Total() Counts {
	return t.total
}

// Button returns the counts for one button.
func (t *Tally) Button(name string) Counts {
	return t.buttons[name]
}

// Last returns the most recent gesture of a button.
func (t *Tally) Last(name string) (Event, bool) {
	e, ok := t.last[name]
	return e, ok
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (t *Tally) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(t.lastHeartbeat) < interval {
		return nil
	}

	t.lastHeartbeat = now
	buttons := make(map[string]Counts, len(t.buttons))
	for name, c := range t.buttons {
		buttons[name] = c
	}
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(t.startTime),
		Counts:    t.total,
		Buttons:   buttons,
	}
}
