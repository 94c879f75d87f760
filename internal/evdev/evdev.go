// Package evdev reads key presses from a Linux input device
// (/dev/input/eventN), such as a USB foot pedal that presents itself as a
// keyboard, and delivers them as input.Transitions.
package evdev

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"go.uber.org/zap"

	"github.com/sweeney/footswitch/internal/input"
)

// Key event values.
const (
	keyReleased = 0
	keyPressed  = 1
	keyRepeat   = 2
)

// Config selects one key on one device.
type Config struct {
	Name    string
	Device  string
	KeyCode uint16

	// Grab takes the device exclusively so its keys stop reaching other
	// consumers, such as the console.
	Grab bool
}

// eventReader is the part of *evdev.InputDevice the key needs.
type eventReader interface {
	Read() ([]evdev.InputEvent, error)
}

// Key forwards press and release events of one key code.
// Autorepeat events are ignored. Keys are always momentary.
type Key struct {
	cfg    Config
	dev    eventReader
	closer io.Closer
	logger *zap.SugaredLogger
	ch     chan input.Transition

	mu  sync.Mutex
	err error
}

// Open opens the device and starts reading.
func Open(cfg Config, logger *zap.SugaredLogger) (*Key, error) {
	dev, err := evdev.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open input device %s: %w", cfg.Device, err)
	}
	if cfg.Grab {
		if err := dev.Grab(); err != nil {
			dev.File.Close()
			return nil, fmt.Errorf("grab %s: %w", cfg.Device, err)
		}
	}
	logger.Named("evdev").Infow("opened input device",
		"button", cfg.Name, "device", cfg.Device, "name", dev.Name, "grab", cfg.Grab)
	return newKey(cfg, dev, dev.File, logger), nil
}

func newKey(cfg Config, dev eventReader, closer io.Closer, logger *zap.SugaredLogger) *Key {
	k := &Key{
		cfg:    cfg,
		dev:    dev,
		closer: closer,
		logger: logger.Named("evdev").With("button", cfg.Name, "device", cfg.Device),
		ch:     input.NewTransitionChan(),
	}
	go k.read()
	return k
}

// Name returns the configured button name.
func (k *Key) Name() string { return k.cfg.Name }

// Momentary is always true for keys.
func (k *Key) Momentary() bool { return true }

// Transitions delivers the key's press and release events.
func (k *Key) Transitions() <-chan input.Transition { return k.ch }

// Err returns the read error that stopped the key, or nil.
func (k *Key) Err() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.err
}

// Close closes the device. The kernel releases a grab with the descriptor.
// A read already blocked on the device returns at its next event.
func (k *Key) Close() error {
	return k.closer.Close()
}

// read runs in a dedicated goroutine and blocks on the device.
func (k *Key) read() {
	defer close(k.ch)

	for {
		events, err := k.dev.Read()
		for _, ev := range events {
			t, ok := k.transition(ev)
			if !ok {
				continue
			}
			select {
			case k.ch <- t:
			default:
				k.logger.Warnw("transition dropped, consumer too slow", "down", t.Down)
			}
		}
		if err != nil {
			if !errors.Is(err, os.ErrClosed) {
				k.mu.Lock()
				k.err = fmt.Errorf("read %s: %w", k.cfg.Device, err)
				k.mu.Unlock()
			}
			return
		}
	}
}

func (k *Key) transition(ev evdev.InputEvent) (input.Transition, bool) {
	if ev.Type != evdev.EV_KEY || ev.Code != k.cfg.KeyCode {
		return input.Transition{}, false
	}
	// keyRepeat is autorepeat while held, not a transition.
	if ev.Value != keyPressed && ev.Value != keyReleased {
		return input.Transition{}, false
	}
	return input.Transition{
		Down: ev.Value == keyPressed,
		Time: time.Unix(0, ev.Time.Nano()),
	}, true
}
