package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the hub.
const (
	EventDeviceConnected    = "device.connected"
	EventDeviceDisconnected = "device.disconnected"
	EventDeviceStatus       = "device.status"
	EventDeviceCommand      = "device.command"
	EventDeviceOnline       = "device.online"
	EventDeviceDetector     = "device.detector"
	EventDeviceEntered      = "device.entered"
	EventAppOpened          = "app.opened"
)

// Event is the canonical event envelope published on arhub.events.<source>.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// NewEvent creates an Event with a generated ID and current timestamp.
func NewEvent(eventType, source string, payload map[string]any) Event {
	return Event{
		ID:        "evt_" + uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
}

// String returns the payload value under key, or "" when it is absent or not a string.
func (e Event) String(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// Int returns the payload value under key as an int. JSON numbers decode as float64.
func (e Event) Int(key string) int {
	switch v := e.Payload[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
