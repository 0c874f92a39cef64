package status

import (
	"encoding/json"
	"strings"
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
	Outputs       []OutputJSON `json:"outputs"`
	Buttons       []ButtonJSON `json:"buttons"`
	BatteryRaw    *int         `json:"battery_raw,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// OutputJSON is one soft-switched output.
type OutputJSON struct {
	Name     string `json:"name"`
	Pin      uint8  `json:"pin"`
	Polarity string `json:"polarity"`
	State    string `json:"state"`
}

// ButtonJSON is one registered button.
type ButtonJSON struct {
	Slot     int    `json:"slot"`
	Pin      uint8  `json:"pin"`
	Polarity string `json:"polarity"`
	State    string `json:"state"`
	Latched  bool   `json:"latched"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Pressed   int `json:"button_pressed"`
	Released  int `json:"button_released"`
	OutputOn  int `json:"output_on"`
	OutputOff int `json:"output_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend      string `json:"backend"`
	ScanMs       int64  `json:"scan_ms"`
	PressScans   int    `json:"press_scans"`
	ReleaseScans int    `json:"release_scans"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	Redis        string `json:"redis,omitempty"`
	HTTPPort     string `json:"http_port"`
}

// OnOff renders a logical output state.
func OnOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Outputs:       make([]OutputJSON, 0, len(snap.Outputs)),
		Buttons:       make([]ButtonJSON, 0, len(snap.Buttons)),
		BatteryRaw:    snap.Battery,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Pressed:   snap.Counts.Pressed,
			Released:  snap.Counts.Released,
			OutputOn:  snap.Counts.OutputOn,
			OutputOff: snap.Counts.OutputOff,
		},
		Config: ConfigJSON{
			Backend:      snap.Config.Backend,
			ScanMs:       snap.Config.ScanMs,
			PressScans:   snap.Config.PressScans,
			ReleaseScans: snap.Config.ReleaseScans,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			Redis:        snap.Config.Redis,
			HTTPPort:     snap.Config.HTTPPort,
		},
	}

	for _, o := range snap.Outputs {
		inner.Outputs = append(inner.Outputs, OutputJSON{
			Name:     o.Name,
			Pin:      o.Pin,
			Polarity: o.Polarity,
			State:    OnOff(o.On),
		})
	}
	for _, b := range snap.Buttons {
		state := string(b.State)
		if state == "" {
			state = "UNKNOWN"
		}
		inner.Buttons = append(inner.Buttons, ButtonJSON{
			Slot:     b.Slot,
			Pin:      b.Pin,
			Polarity: b.Polarity,
			State:    strings.ToUpper(state),
			Latched:  b.Latched,
		})
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
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
