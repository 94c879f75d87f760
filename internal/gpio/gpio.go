// Package gpio provides push-button inputs on the Linux GPIO character device.
// The real implementation requests a line with edge detection and turns each
// edge into an input.Transition. The fake level reader allows testing without
// hardware.
package gpio

// DefaultChip is the GPIO chip of the Raspberry Pi header.
const DefaultChip = "gpiochip0"

// Config describes one button line.
type Config struct {
	Name string
	Chip string
	Pin  int // BCM numbering

	// ActiveLow buttons short the pin to ground when pressed; the line is
	// biased with a pull-up. Otherwise a pull-down is used.
	ActiveLow bool

	// Momentary is false for latching controls, see gesture.Config.
	Momentary bool
}

// LevelReader reads the current logical level of a button (true = pressed).
type LevelReader interface {
	Value() (bool, error)
	Close() error
}
