package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"gesture_counts"`
	Buttons       []ButtonJSON `json:"buttons"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of gesture counts.
type CountsJSON struct {
	SinglePress int `json:"single_press"`
	DoublePress int `json:"double_press"`
	LongPress   int `json:"long_press"`
}

// ButtonJSON is the JSON representation of one control.
type ButtonJSON struct {
	Name          string       `json:"name"`
	Source        string       `json:"source"`
	Momentary     bool         `json:"momentary"`
	LongPressMs   int64        `json:"long_press_ms"`
	DoublePressMs int64        `json:"double_press_ms"`
	Counts        CountsJSON   `json:"gesture_counts"`
	Last          *LastGesture `json:"last_gesture,omitempty"`
}

// LastGesture is the most recent gesture of a control.
type LastGesture struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	buttons := make([]ButtonJSON, len(snap.Buttons))
	for i, b := range snap.Buttons {
		buttons[i] = ButtonJSON{
			Name:          b.Name,
			Source:        b.Source,
			Momentary:     b.Momentary,
			LongPressMs:   b.LongPress.Milliseconds(),
			DoublePressMs: b.DoublePress.Milliseconds(),
			Counts: CountsJSON{
				SinglePress: b.Counts.SinglePress,
				DoublePress: b.Counts.DoublePress,
				LongPress:   b.Counts.LongPress,
			},
		}
		if b.Last != nil {
			buttons[i].Last = &LastGesture{
				Timestamp: b.Last.Timestamp.UTC().Format(time.RFC3339),
				Event:     string(b.Last.Kind),
			}
		}
	}

	return StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			SinglePress: snap.Counts.SinglePress,
			DoublePress: snap.Counts.DoublePress,
			LongPress:   snap.Counts.LongPress,
		},
		Buttons: buttons,
		Config: ConfigJSON{
			HeartbeatMs: snap.Config.Heartbeat.Milliseconds(),
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
