package main

import (
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/footswitch/internal/gesture"
	"github.com/sweeney/footswitch/internal/mqtt"
	"github.com/sweeney/footswitch/internal/status"
)

// errInputsStopped is returned by runLoop when every input source has ended.
var errInputsStopped = errors.New("all inputs stopped")

// broadcaster receives gestures for live clients. *web.Hub implements it.
type broadcaster interface {
	BroadcastGesture(gesture.Event)
}

type loopDeps struct {
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker       // may be nil
	hub        broadcaster           // may be nil
	tally      *gesture.Tally
	heartbeat  time.Duration
	now        func() time.Time
	logger     *zap.SugaredLogger

	// settle is how long to keep collecting gestures after the inputs stop,
	// so presses whose timers are still armed get published. after defaults
	// to time.After.
	settle time.Duration
	after  func(time.Duration) <-chan time.Time
}

// runLoop owns the tally. It publishes gestures as they arrive, refreshes the
// tracker and emits heartbeats on tick, and publishes SHUTDOWN on a signal or
// when inputsDone is closed.
func runLoop(d loopDeps, gestures <-chan gesture.Event, inputsDone <-chan struct{}, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			name := signalName(s)
			d.logger.Infow("shutting down", "signal", s)
			d.drain(gestures)
			d.shutdown(name)
			return nil

		case <-inputsDone:
			d.settleGestures(gestures)
			d.drain(gestures)
			d.shutdown("INPUT_LOST")
			return errInputsStopped

		case ev := <-gestures:
			d.handle(ev)

		case <-tick:
			d.refresh()
			if hb := d.tally.CheckHeartbeat(d.now(), d.heartbeat); hb != nil {
				d.logger.Infow("heartbeat",
					"uptime", hb.Uptime,
					"single_press", hb.Counts.SinglePress,
					"double_press", hb.Counts.DoublePress,
					"long_press", hb.Counts.LongPress,
					"buttons", hb.Buttons,
				)
				d.publishSystem(mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     mqtt.EventHeartbeat,
					Counts:    hb.Buttons,
				})
			}
		}
	}
}

func (d loopDeps) handle(ev gesture.Event) {
	d.logger.Infow("gesture", "button", ev.Button, "gesture", ev.Kind)
	d.tally.Record(ev)
	if err := d.publisher.Publish(ev); err != nil {
		// Don't crash on publish failure
		d.logger.Warnw("publish error", "error", err)
	}
	if d.hub != nil {
		d.hub.BroadcastGesture(ev)
	}
	if d.tracker != nil {
		d.tracker.Update(d.tally)
	}
}

// settleGestures handles gestures until the settle window has passed since the
// inputs stopped. Classifier timers armed by the last transitions fire within
// it.
func (d loopDeps) settleGestures(gestures <-chan gesture.Event) {
	if d.settle <= 0 {
		return
	}
	after := d.after
	if after == nil {
		after = time.After
	}
	d.logger.Infow("inputs stopped, waiting for pending gestures", "settle", d.settle)
	deadline := after(d.settle)
	for {
		select {
		case ev := <-gestures:
			d.handle(ev)
		case <-deadline:
			return
		}
	}
}

// drain handles gestures already queued so they are not lost on shutdown.
func (d loopDeps) drain(gestures <-chan gesture.Event) {
	for {
		select {
		case ev := <-gestures:
			d.handle(ev)
		default:
			return
		}
	}
}

func (d loopDeps) refresh() {
	if d.tracker == nil {
		return
	}
	d.tracker.Update(d.tally)
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func (d loopDeps) shutdown(reason string) {
	d.publishSystem(mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     mqtt.EventShutdown,
		Reason:    reason,
		Retained:  true,
	})
}

// publishSystem attaches a status snapshot when a tracker is present.
func (d loopDeps) publishSystem(ev mqtt.SystemEvent) {
	if d.tracker != nil {
		d.refresh()
		ev.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), ev.Event, ev.Reason)
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		d.logger.Warnw("system event publish error", "event", ev.Event, "error", err)
		return
	}
	d.logger.Infow("published system event", "event", ev.Event)
}
