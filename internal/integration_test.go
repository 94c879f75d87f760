package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/footswitch/internal/gesture"
	"github.com/sweeney/footswitch/internal/mqtt"
	"github.com/sweeney/footswitch/internal/status"
	"github.com/sweeney/footswitch/internal/timer"
)

// pedalboard wires classifiers sharing one timer service to a publisher, the
// way the daemon does, but synchronously on a virtual clock.
type pedalboard struct {
	t         *testing.T
	clock     *timer.FakeClock
	svc       *timer.Service
	publisher *mqtt.FakePublisher
	tally     *gesture.Tally
	buttons   map[string]*gesture.Classifier
}

func newPedalboard(t *testing.T, start time.Time, cfgs ...gesture.Config) *pedalboard {
	t.Helper()
	clock := timer.NewFakeClock(start)
	p := &pedalboard{
		t:         t,
		clock:     clock,
		svc:       timer.NewService(clock),
		publisher: mqtt.NewFakePublisher(),
		buttons:   make(map[string]*gesture.Classifier),
	}

	names := make([]string, len(cfgs))
	for i, cfg := range cfgs {
		names[i] = cfg.Name
		c := gesture.New(cfg, p.svc, nil)
		for kind, ch := range map[gesture.Kind]*gesture.Channel{
			gesture.SinglePress: c.SinglePress(),
			gesture.DoublePress: c.DoublePress(),
			gesture.LongPress:   c.LongPress(),
		} {
			kind, name := kind, cfg.Name
			ch.AddListener(func(bool) {
				ev := gesture.Event{Timestamp: p.svc.Now(), Button: name, Kind: kind}
				p.tally.Record(ev)
				if err := p.publisher.Publish(ev); err != nil {
					t.Errorf("publish: %v", err)
				}
			})
		}
		p.buttons[cfg.Name] = c
	}
	p.tally = gesture.NewTally(start, names...)
	t.Cleanup(func() {
		for _, c := range p.buttons {
			c.Close()
		}
		p.svc.Close()
	})
	return p
}

func (p *pedalboard) press(name string, down bool) {
	p.t.Helper()
	if err := p.buttons[name].OnTransition(down); err != nil {
		p.t.Fatalf("%s: %v", name, err)
	}
}

func (p *pedalboard) wait(d time.Duration) {
	p.clock.Advance(d)
}

func (p *pedalboard) published() []mqtt.GesturePayload {
	p.t.Helper()
	out := make([]mqtt.GesturePayload, len(p.publisher.Payloads))
	for i, raw := range p.publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(raw, &parsed); err != nil {
			p.t.Fatalf("payload %d: invalid JSON: %v", i, err)
		}
		out[i] = parsed.Gesture
	}
	return out
}

// TestIntegrationFullFlow drives two pedals through every gesture and checks
// the MQTT payloads.
func TestIntegrationFullFlow(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newPedalboard(t, start,
		gesture.Config{Name: "left", Momentary: true},
		gesture.Config{Name: "right", Momentary: true},
	)
	ms := time.Millisecond

	// left: single press (tap, then the double-press window expires)
	p.press("left", true)
	p.wait(50 * ms)
	p.press("left", false)
	p.wait(200 * ms) // t=250ms

	// right: double press
	p.wait(50 * ms) // t=300ms
	p.press("right", true)
	p.wait(50 * ms)
	p.press("right", false)
	p.wait(100 * ms)
	p.press("right", true) // t=450ms, DOUBLE_PRESS
	p.wait(50 * ms)
	p.press("right", false) // ignored in WAITING

	// left held while right taps: timers of both pedals run on the one service
	p.wait(500 * ms) // t=1000ms
	p.press("left", true)
	p.wait(100 * ms)
	p.press("right", true)
	p.wait(50 * ms)
	p.press("right", false) // t=1150ms
	p.wait(650 * ms)        // left LONG_PRESS at 1750ms, right SINGLE_PRESS at 1350ms
	p.press("left", false)  // ignored in WAITING

	got := p.published()
	want := []mqtt.GesturePayload{
		{Timestamp: "2026-01-01T12:00:00.250Z", Button: "left", Event: "SINGLE_PRESS"},
		{Timestamp: "2026-01-01T12:00:00.450Z", Button: "right", Event: "DOUBLE_PRESS"},
		{Timestamp: "2026-01-01T12:00:01.350Z", Button: "right", Event: "SINGLE_PRESS"},
		{Timestamp: "2026-01-01T12:00:01.750Z", Button: "left", Event: "LONG_PRESS"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d gestures, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("gesture %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	for name, c := range p.buttons {
		if c.State() != gesture.StateWaiting {
			t.Errorf("%s: expected WAITING, got %v", name, c.State())
		}
	}
	if p.clock.Pending() != 0 {
		t.Errorf("expected no armed timers, got %d", p.clock.Pending())
	}
}

// TestIntegrationStatusReflectsGestures checks the tally feeds the status
// JSON served over HTTP and published in heartbeats.
func TestIntegrationStatusReflectsGestures(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newPedalboard(t, start,
		gesture.Config{Name: "pedal", Momentary: true, LongPressDelay: time.Second},
	)
	tracker := status.NewTracker(start, status.Config{
		Broker:    "tcp://localhost:1883",
		Heartbeat: time.Minute,
		Buttons:   []status.ButtonConfig{{Name: "pedal", Source: "evdev", Momentary: true, LongPress: time.Second}},
	})

	p.press("pedal", true)
	p.wait(999 * time.Millisecond)
	if p.publisher.EventCount() != 0 {
		t.Fatal("long press fired early")
	}
	p.wait(time.Millisecond)
	if p.publisher.EventCount() != 1 {
		t.Fatalf("expected long press at the configured delay, got %d events", p.publisher.EventCount())
	}

	tracker.Update(p.tally)
	hb := p.tally.CheckHeartbeat(start.Add(time.Minute), time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat")
	}
	if hb.Counts.LongPress != 1 || hb.Buttons["pedal"].LongPress != 1 {
		t.Errorf("unexpected heartbeat counts: %+v", hb)
	}

	snap := tracker.Snapshot()
	snap.Now = hb.Timestamp
	var parsed status.StatusJSON
	if err := json.Unmarshal(status.FormatStatusEvent(snap, mqtt.EventHeartbeat, ""), &parsed); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	s := parsed.Status
	if s.Event != "HEARTBEAT" || s.UptimeSeconds != 60 {
		t.Errorf("unexpected status: %+v", s)
	}
	if len(s.Buttons) != 1 || s.Buttons[0].Counts.LongPress != 1 || s.Buttons[0].LongPressMs != 1000 {
		t.Errorf("unexpected button status: %+v", s.Buttons)
	}
	if s.Buttons[0].Last == nil || s.Buttons[0].Last.Event != "LONG_PRESS" || s.Buttons[0].Last.Timestamp != "2026-01-01T12:00:01Z" {
		t.Errorf("unexpected last gesture: %+v", s.Buttons[0].Last)
	}
}

// TestIntegrationServiceClosedDropsGestures checks that a pending gesture is
// abandoned, not delivered late, once the shared service is closed.
func TestIntegrationServiceClosedDropsGestures(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newPedalboard(t, start, gesture.Config{Name: "pedal", Momentary: true})

	p.press("pedal", true)
	p.svc.Close()

	if err := p.buttons["pedal"].OnTransition(false); err == nil {
		t.Error("expected an error arming the double-press timer on a closed service")
	}
	if p.buttons["pedal"].State() != gesture.StateWaiting {
		t.Errorf("expected WAITING after a dropped gesture, got %v", p.buttons["pedal"].State())
	}

	p.wait(time.Second)
	if p.publisher.EventCount() != 0 {
		t.Errorf("expected no gestures, got %d", p.publisher.EventCount())
	}
}
