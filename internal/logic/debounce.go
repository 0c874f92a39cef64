package logic

import (
	"errors"
	"time"
)

// LatchCounter is the counter value reserved for "callback already fired for
// the current state". The counter stays there until the state changes.
const LatchCounter uint8 = 0xFF

// Default number of consecutive confirming scans before a transition fires.
const (
	DefaultPressScans   uint8 = 5
	DefaultReleaseScans uint8 = 5
)

// ErrInvalidThreshold is returned for a threshold of 0 or LatchCounter.
var ErrInvalidThreshold = errors.New("logic: threshold must be between 1 and 254 scans")

// Thresholds holds the per-direction debounce thresholds, in scans.
type Thresholds struct {
	Press   uint8
	Release uint8
}

// DefaultThresholds returns 5 scans in both directions.
func DefaultThresholds() Thresholds {
	return Thresholds{Press: DefaultPressScans, Release: DefaultReleaseScans}
}

// Validate checks both thresholds are usable with the latch sentinel.
func (t Thresholds) Validate() error {
	if t.Press == 0 || t.Press >= LatchCounter || t.Release == 0 || t.Release >= LatchCounter {
		return ErrInvalidThreshold
	}
	return nil
}

func (t Thresholds) forState(s State) uint8 {
	if s == StatePressed {
		return t.Press
	}
	return t.Release
}

// Debouncer tracks debounce progress for a single input.
// The zero value is not ready; use NewDebouncer.
type Debouncer struct {
	// Last confirmed logical state.
	State State
	// Consecutive scans observing State since it was adopted, or LatchCounter
	// once the transition has fired.
	Counter uint8
}

// NewDebouncer returns a debouncer in the Released state with an empty window.
func NewDebouncer() Debouncer {
	return Debouncer{State: StateReleased}
}

// Latched reports whether the callback for the current state already fired.
func (d *Debouncer) Latched() bool {
	return d.Counter == LatchCounter
}

// Process takes one candidate observation and returns the event type to fire,
// or "" if nothing fires on this scan.
//
// A candidate that differs from State is adopted immediately and restarts the
// window; that observation is the first sample of the new window. A candidate
// that confirms State advances the counter, and the scan on which it reaches
// the threshold for that direction latches it and fires exactly once.
func (d *Debouncer) Process(candidate State, th Thresholds) EventType {
	if candidate != d.State {
		d.State = candidate
		d.Counter = 0
	}

	if d.Counter == LatchCounter {
		return ""
	}

	d.Counter++
	if d.Counter < th.forState(d.State) {
		return ""
	}

	d.Counter = LatchCounter
	return eventTypeFor(d.State)
}

func eventTypeFor(s State) EventType {
	if s == StatePressed {
		return EventButtonPressed
	}
	return EventButtonReleased
}

// Heartbeat counts events and decides when a heartbeat is due.
type Heartbeat struct {
	startTime     time.Time
	lastHeartbeat time.Time
	counts        EventCounts
}

// NewHeartbeat creates a heartbeat tracker. The startTime is used for
// calculating uptime in heartbeat events.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Record counts one published event.
func (h *Heartbeat) Record(t EventType) {
	h.counts.Add(t)
}

// Counts returns a copy of the event counts.
func (h *Heartbeat) Counts() EventCounts {
	return h.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (h *Heartbeat) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(h.lastHeartbeat) < interval {
		return nil
	}

	h.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
		Counts:    h.counts,
	}
}
