// Package mqtt publishes gestures and lifecycle events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/footswitch/internal/gesture"
)

// Topic is the MQTT topic for gesture events.
const Topic = "footswitch/gestures"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "footswitch/system"

// Lifecycle event names published on TopicSystem.
const (
	EventStartup   = "STARTUP"
	EventShutdown  = "SHUTDOWN"
	EventHeartbeat = "HEARTBEAT"
	EventOnline    = "ONLINE"
	EventOffline   = "OFFLINE" // last will
)

// timestampLayout keeps millisecond precision; gestures are sub-second apart.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a gesture to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event gesture.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event (startup, heartbeat, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // signal name, shutdown only
	RawPayload []byte // pre-formatted status snapshot; returned as-is by FormatSystemPayload
	Retained   bool

	// Counts holds per-button gesture counts, heartbeat only.
	Counts map[string]gesture.Counts
}

// Payload is the MQTT message for a gesture.
type Payload struct {
	Gesture GesturePayload `json:"gesture"`
}

// GesturePayload contains the gesture details.
type GesturePayload struct {
	Timestamp string `json:"timestamp"`
	Button    string `json:"button"`
	Event     string `json:"event"`
}

// FormatPayload creates the JSON payload for a gesture.
func FormatPayload(event gesture.Event) ([]byte, error) {
	return json.Marshal(Payload{
		Gesture: GesturePayload{
			Timestamp: event.Timestamp.UTC().Format(timestampLayout),
			Button:    event.Button,
			Event:     string(event.Kind),
		},
	})
}

// SystemPayload is the MQTT message for simple system events that don't carry
// a status snapshot (LWT, ONLINE).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`

	GestureCounts map[string]CountsPayload `json:"gesture_counts,omitempty"`
}

// CountsPayload is one button's gesture counts.
type CountsPayload struct {
	SinglePress int `json:"single_press"`
	DoublePress int `json:"double_press"`
	LongPress   int `json:"long_press"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	inner := SystemPayloadInner{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		Reason:    event.Reason,
	}
	if len(event.Counts) > 0 {
		inner.GestureCounts = make(map[string]CountsPayload, len(event.Counts))
		for name, c := range event.Counts {
			inner.GestureCounts[name] = CountsPayload{
				SinglePress: c.SinglePress,
				DoublePress: c.DoublePress,
				LongPress:   c.LongPress,
			}
		}
	}
	return json.Marshal(SystemPayload{System: inner})
}
