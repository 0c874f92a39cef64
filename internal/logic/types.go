// Package logic contains the pure debounce state machine for push buttons
// and the event types published by the daemon.
// This package has NO external dependencies (no GPIO, MQTT, OS, locks or time.Sleep).
package logic

import "time"

// State is the confirmed logical state of a button.
type State string

const (
	StateReleased State = "RELEASED"
	StatePressed  State = "PRESSED"
)

// StateFor maps an "engaged" observation to a State.
func StateFor(engaged bool) State {
	if engaged {
		return StatePressed
	}
	return StateReleased
}

// EventType represents a published transition.
type EventType string

const (
	EventButtonPressed  EventType = "BUTTON_PRESSED"
	EventButtonReleased EventType = "BUTTON_RELEASED"
	EventOutputOn       EventType = "OUTPUT_ON"
	EventOutputOff      EventType = "OUTPUT_OFF"
)

// Event represents a confirmed button transition or an output change.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Source    string // e.g. "button", "power", "charging"
	Pin       uint8
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Pressed   int
	Released  int
	OutputOn  int
	OutputOff int
}

// Add counts one event.
func (c *EventCounts) Add(t EventType) {
	switch t {
	case EventButtonPressed:
		c.Pressed++
	case EventButtonReleased:
		c.Released++
	case EventOutputOn:
		c.OutputOn++
	case EventOutputOff:
		c.OutputOff++
	}
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
