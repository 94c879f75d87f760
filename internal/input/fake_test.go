package input

import (
	"errors"
	"testing"
	"time"
)

func TestFakeSourcePush(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFakeSource("pedal", true)
	f.Now = func() time.Time { return at }

	if f.Name() != "pedal" || !f.Momentary() {
		t.Errorf("unexpected traits: name=%q momentary=%v", f.Name(), f.Momentary())
	}

	f.Push(true)
	f.Push(false)

	first := <-f.Transitions()
	second := <-f.Transitions()
	if !first.Down || second.Down {
		t.Errorf("expected down then up, got %+v %+v", first, second)
	}
	if !first.Time.Equal(at) {
		t.Errorf("unexpected timestamp: %v", first.Time)
	}
}

func TestFakeSourceClose(t *testing.T) {
	f := NewFakeSource("pedal", true)

	if err := f.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Closed() {
		t.Error("should be closed after Close()")
	}
	if _, ok := <-f.Transitions(); ok {
		t.Error("expected closed channel")
	}

	f.Push(true) // no panic after close
	if err := f.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if f.Err() != nil {
		t.Errorf("expected nil Err after clean close, got %v", f.Err())
	}
}

func TestFakeSourceFail(t *testing.T) {
	f := NewFakeSource("pedal", true)
	f.Fail(errors.New("device unplugged"))

	if _, ok := <-f.Transitions(); ok {
		t.Error("expected closed channel after Fail")
	}
	if f.Err() == nil || f.Err().Error() != "device unplugged" {
		t.Errorf("unexpected error: %v", f.Err())
	}
}
