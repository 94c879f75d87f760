//go:build !linux

package gpio

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sweeney/footswitch/internal/input"
)

// Button is not available on non-Linux platforms.
type Button struct{}

// NewButton returns an error on non-Linux platforms.
func NewButton(cfg Config, logger *zap.SugaredLogger) (*Button, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Name is not implemented on non-Linux platforms.
func (b *Button) Name() string { return "" }

// Momentary is not implemented on non-Linux platforms.
func (b *Button) Momentary() bool { return true }

// Transitions is not implemented on non-Linux platforms.
func (b *Button) Transitions() <-chan input.Transition { return nil }

// Err is not implemented on non-Linux platforms.
func (b *Button) Err() error { return errors.New("gpio: not supported") }

// Value is not implemented on non-Linux platforms.
func (b *Button) Value() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *Button) Close() error {
	return nil
}
