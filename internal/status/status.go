// Package status provides a thread-safe status tracker for the battery
// controller daemon. It is read by the HTTP handlers and the lifecycle
// events published to MQTT.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/battery-controller/internal/logic"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend      string
	ScanMs       int64
	PressScans   int
	ReleaseScans int
	HeartbeatMs  int64
	Broker       string
	Redis        string
	HTTPPort     string
}

// Button is the display form of one registered button slot.
type Button struct {
	Slot     int
	Pin      uint8
	Polarity string
	State    logic.State
	Latched  bool
}

// Output is the display form of one soft-switched output.
type Output struct {
	Name     string
	Pin      uint8
	Polarity string
	On       bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; the slices are copies and safe to use after the lock
// is released.
type Snapshot struct {
	Buttons       []Button
	Outputs       []Output
	Battery       *int // raw ADC reading, nil if not sampled
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the button and output views and the event counts.
func (t *Tracker) Update(buttons []Button, outputs []Output, counts logic.EventCounts) {
	b := append([]Button(nil), buttons...)
	o := append([]Output(nil), outputs...)
	t.mu.Lock()
	t.snap.Buttons = b
	t.snap.Outputs = o
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetBattery records the latest raw battery sample.
func (t *Tracker) SetBattery(raw int) {
	t.mu.Lock()
	t.snap.Battery = &raw
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buttons = append([]Button(nil), t.snap.Buttons...)
	s.Outputs = append([]Output(nil), t.snap.Outputs...)
	if t.snap.Battery != nil {
		v := *t.snap.Battery
		s.Battery = &v
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
