package evdev

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
	"unsafe"

	evdev "github.com/gvalkov/golang-evdev"
	"go.uber.org/zap"
)

const keyA = 30

// record is one struct input_event, independent of the host layout.
type record struct {
	sec, usec int64
	typ, code uint16
	value     int32
}

// hostTimeval is the size of struct timeval the kernel writes on this
// platform: 16 bytes on 64-bit, 8 bytes on 32-bit ARM.
var hostTimeval = int(unsafe.Sizeof(syscall.Timeval{}))

// encode writes records in the input_event layout with the given timeval
// size.
func encode(t *testing.T, timeval int, records ...record) []byte {
	t.Helper()
	var buf bytes.Buffer
	put := func(v interface{}) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	for _, r := range records {
		switch timeval {
		case 8:
			put(int32(r.sec))
			put(int32(r.usec))
		case 16:
			put(r.sec)
			put(r.usec)
		default:
			t.Fatalf("unsupported timeval size %d", timeval)
		}
		put(r.typ)
		put(r.code)
		put(r.value)
	}
	return buf.Bytes()
}

// deviceFile returns an input device reading data from a regular file.
func deviceFile(t *testing.T, data []byte) *evdev.InputDevice {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event0")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return &evdev.InputDevice{Fn: path, File: f}
}

func collect(k *Key) ([]bool, []time.Time) {
	var downs []bool
	var times []time.Time
	for tr := range k.Transitions() {
		downs = append(downs, tr.Down)
		times = append(times, tr.Time)
	}
	return downs, times
}

func TestKeyForwardsPressAndRelease(t *testing.T) {
	data := encode(t, hostTimeval,
		record{sec: 100, usec: 0, typ: evdev.EV_KEY, code: keyA, value: keyPressed},
		record{sec: 100, usec: 10, typ: evdev.EV_SYN},
		record{sec: 100, usec: 500000, typ: evdev.EV_KEY, code: keyA, value: keyRepeat},
		record{sec: 100, usec: 600000, typ: evdev.EV_KEY, code: 31, value: keyPressed}, // other key
		record{sec: 101, usec: 0, typ: evdev.EV_KEY, code: keyA, value: keyReleased},
	)
	dev := deviceFile(t, data)

	k := newKey(Config{Name: "pedal", Device: dev.Fn, KeyCode: keyA}, dev, dev.File, zap.NewNop().Sugar())
	got, times := collect(k)

	if len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("expected [true false], got %v", got)
	}
	if !times[0].Equal(time.Unix(100, 0)) || !times[1].Equal(time.Unix(101, 0)) {
		t.Errorf("unexpected timestamps: %v", times)
	}

	// EOF ends the stream and is reported.
	if k.Err() == nil {
		t.Error("expected EOF to be reported by Err")
	}
	if !k.Momentary() || k.Name() != "pedal" {
		t.Errorf("unexpected traits: %q %v", k.Name(), k.Momentary())
	}
}

func TestKeyReadsManyEvents(t *testing.T) {
	// More records than one device read returns.
	var records []record
	for i := 0; i < 20; i++ {
		records = append(records,
			record{sec: int64(200 + i), typ: evdev.EV_KEY, code: keyA, value: int32(1 - i%2)},
			record{sec: int64(200 + i), usec: 1, typ: evdev.EV_SYN},
		)
	}
	dev := deviceFile(t, encode(t, hostTimeval, records...))

	k := newKey(Config{Name: "pedal", KeyCode: keyA}, dev, dev.File, zap.NewNop().Sugar())
	got, times := collect(k)

	if len(got) != 20 {
		t.Fatalf("expected 20 transitions, got %d", len(got))
	}
	for i, down := range got {
		if down != (i%2 == 0) {
			t.Errorf("transition %d: expected down=%v", i, i%2 == 0)
		}
		if !times[i].Equal(time.Unix(int64(200+i), 0)) {
			t.Errorf("transition %d: unexpected time %v", i, times[i])
		}
	}
}

func TestKeyReads32BitLayout(t *testing.T) {
	if hostTimeval != 8 {
		t.Skipf("host kernel writes %d-byte timevals", hostTimeval)
	}
	data := encode(t, 8,
		record{sec: 300, typ: evdev.EV_KEY, code: keyA, value: keyPressed},
		record{sec: 300, usec: 1, typ: evdev.EV_SYN},
		record{sec: 301, typ: evdev.EV_KEY, code: keyA, value: keyReleased},
		record{sec: 301, usec: 1, typ: evdev.EV_SYN},
		record{sec: 302, typ: evdev.EV_KEY, code: keyA, value: keyPressed},
		record{sec: 302, usec: 1, typ: evdev.EV_SYN},
	)
	if len(data) != 6*16 {
		t.Fatalf("expected 16-byte records, got %d bytes", len(data))
	}
	dev := deviceFile(t, data)

	k := newKey(Config{Name: "pedal", KeyCode: keyA}, dev, dev.File, zap.NewNop().Sugar())
	got, _ := collect(k)

	if len(got) != 3 || !got[0] || got[1] || !got[2] {
		t.Errorf("expected [true false true], got %v", got)
	}
}

func TestHostLayoutMatchesDecoder(t *testing.T) {
	var ev evdev.InputEvent
	if got, want := binary.Size(ev), hostTimeval+8; got != want {
		t.Errorf("decoder reads %d-byte records, kernel writes %d", got, want)
	}
}

func TestKeyIgnoresTruncatedEvent(t *testing.T) {
	data := encode(t, hostTimeval, record{sec: 1, typ: evdev.EV_KEY, code: keyA, value: keyPressed})
	data = append(data, 0x01, 0x02) // partial record
	dev := deviceFile(t, data)

	k := newKey(Config{Name: "pedal", KeyCode: keyA}, dev, dev.File, zap.NewNop().Sugar())
	got, _ := collect(k)
	if len(got) != 1 {
		t.Errorf("expected 1 transition, got %d", len(got))
	}
}

func TestKeyCloseStopsWithoutError(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer w.Close()
	dev := &evdev.InputDevice{Fn: "pipe", File: r}

	k := newKey(Config{Name: "pedal", KeyCode: keyA}, dev, dev.File, zap.NewNop().Sugar())
	if err := k.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case _, ok := <-k.Transitions():
		if ok {
			t.Fatal("expected no transitions")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop after Close")
	}
	if k.Err() != nil {
		t.Errorf("expected no error after Close, got %v", k.Err())
	}
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(Config{Name: "pedal", Device: "/nonexistent/event99", KeyCode: keyA}, zap.NewNop().Sugar())
	if err == nil {
		t.Error("expected error opening missing device")
	}
}

func TestOpenRejectsNonDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(Config{Name: "pedal", Device: path, KeyCode: keyA, Grab: true}, zap.NewNop().Sugar()); err == nil {
		t.Error("expected a regular file to be rejected as an input device")
	}
}
