package gesture

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/footswitch/internal/timer"
)

// Classifier turns the raw transitions of one control into gestures.
//
//	WAITING --down--> LONG_PRESS_CANDIDATE --long-press timeout--> notify long_press
//	                  |
//	                  up
//	                  v
//	                  DOUBLE_TAP_CANDIDATE --double-press timeout--> notify single_press
//	                  |
//	                  down --> notify double_press
//
// Every notification returns the classifier to WAITING.
//
// OnTransition and timer expiries are serialized by mu. When a transition and
// an expiry race, whichever takes mu first wins; the loser sees a changed
// epoch and does nothing.
type Classifier struct {
	cfg    Config
	sched  Scheduler
	logger *zap.SugaredLogger

	mu          sync.Mutex
	state       State
	epoch       uint64
	closed      bool
	longPress   timer.Handle
	doublePress timer.Handle

	single *Channel
	double *Channel
	long   *Channel
	raw    *Channel
}

// New creates a classifier in StateWaiting. Zero delays in cfg take the
// defaults.
func New(cfg Config, sched Scheduler, logger *zap.SugaredLogger) *Classifier {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.Named("gesture").With("button", cfg.Name)

	return &Classifier{
		cfg:    cfg,
		sched:  sched,
		logger: logger,
		single: newChannel("single_press", logger),
		double: newChannel("double_press", logger),
		long:   newChannel("long_press", logger),
		raw:    newChannel("raw", logger),
	}
}

// Config returns the effective configuration (defaults applied).
func (c *Classifier) Config() Config {
	return c.cfg
}

// SinglePress is notified when a press is released and not followed by
// another press within the double-press window.
func (c *Classifier) SinglePress() *Channel { return c.single }

// DoublePress is notified on the second press of a double press.
func (c *Classifier) DoublePress() *Channel { return c.double }

// LongPress is notified when a press is held for the long-press delay.
func (c *Classifier) LongPress() *Channel { return c.long }

// Raw is notified with transitions that were not consumed by gesture
// detection.
func (c *Classifier) Raw() *Channel { return c.raw }

// State returns the current gesture phase.
func (c *Classifier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnTransition feeds one raw value change of the wrapped control.
// It never blocks on timers. If a timer cannot be armed the pending gesture is
// dropped, the classifier returns to WAITING and the error is returned.
func (c *Classifier) OnTransition(isDown bool) error {
	down := isDown || !c.cfg.Momentary

	var (
		notifyDouble bool
		forward      bool
		err          error
	)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	switch c.state {
	case StateWaiting:
		if down {
			err = c.armLocked(&c.longPress, c.cfg.LongPressDelay, StateLongPressCandidate, c.long)
		}

	case StateLongPressCandidate:
		if down {
			// Repeated press without release: still the same candidate.
			forward = true
			break
		}
		c.sched.Cancel(&c.longPress)
		err = c.armLocked(&c.doublePress, c.cfg.DoublePressDelay, StateDoubleTapCandidate, c.single)

	case StateDoubleTapCandidate:
		forward = true
		if down {
			c.sched.Cancel(&c.doublePress)
			c.setStateLocked(StateWaiting)
			notifyDouble = true
		}
	}
	c.mu.Unlock()

	if notifyDouble {
		c.logger.Debugw("gesture", "kind", DoublePress)
		c.double.emit(true)
	}
	if forward {
		c.raw.emit(isDown)
	}
	return err
}

// Close cancels both timers and drops every listener. No notification starts
// after Close returns. It is safe to call more than once.
func (c *Classifier) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.sched.Cancel(&c.longPress)
	c.sched.Cancel(&c.doublePress)
	c.setStateLocked(StateWaiting)
	c.mu.Unlock()

	for _, ch := range []*Channel{c.single, c.double, c.long, c.raw} {
		ch.close()
	}
}

func (c *Classifier) setStateLocked(s State) {
	c.state = s
	c.epoch++
}

// armLocked enters next and arms h to notify out on expiry.
func (c *Classifier) armLocked(h *timer.Handle, delay time.Duration, next State, out *Channel) error {
	c.setStateLocked(next)
	epoch := c.epoch

	err := c.sched.Schedule(h, delay, func() {
		c.expire(epoch, next, out)
	})
	if err != nil {
		c.setStateLocked(StateWaiting)
		c.logger.Warnw("gesture dropped", "phase", next, "error", err)
		return fmt.Errorf("button %q: arm %s timer: %w", c.cfg.Name, next, err)
	}
	return nil
}

func (c *Classifier) expire(epoch uint64, from State, out *Channel) {
	c.mu.Lock()
	if c.closed || c.epoch != epoch || c.state != from {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateWaiting)
	c.mu.Unlock()

	c.logger.Debugw("gesture", "channel", out.Name())
	out.emit(true)
}
