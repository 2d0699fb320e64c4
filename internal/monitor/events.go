package monitor

import (
	"time"
)

// EventType captures lifecycle notifications emitted by the monitor and by
// start/stop operations.
type EventType string

const (
	EventTypeUp       EventType = "up"
	EventTypeDown     EventType = "down"
	EventTypeStarting EventType = "starting"
	EventTypeStopped  EventType = "stopped"
	EventTypeKilled   EventType = "killed"
	EventTypeError    EventType = "error"
)

// Event represents a single status or lifecycle notification for a server.
type Event struct {
	Timestamp time.Time
	Server    string
	Type      EventType
	Message   string
	Err       error
}
