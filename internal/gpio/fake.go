package gpio

import "errors"

// FakeLevel is a test double that returns scripted button levels.
type FakeLevel struct {
	// Levels contains scripted values to return (true = pressed).
	// Each call to Value() consumes the next level.
	Levels []bool

	// index tracks current position in Levels
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Value()
	ReadError error
}

// NewFakeLevel creates a FakeLevel with the given levels.
func NewFakeLevel(levels ...bool) *FakeLevel {
	return &FakeLevel{Levels: levels}
}

// Value returns the next scripted level.
// If levels are exhausted, returns the last level repeatedly.
func (f *FakeLevel) Value() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Levels) == 0 {
		return false, errors.New("no levels configured")
	}

	v := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}
	return v, nil
}

// Close marks the reader as closed.
func (f *FakeLevel) Close() error {
	f.Closed = true
	return nil
}
