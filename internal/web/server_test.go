package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/battery-controller/internal/gpio"
	"github.com/sweeney/battery-controller/internal/logic"
	"github.com/sweeney/battery-controller/internal/softswitch"
	"github.com/sweeney/battery-controller/internal/status"
)

// switchSetter drives a real Switcher over a FakeDriver and mirrors the
// result into the tracker, as the daemon does.
type switchSetter struct {
	sw      *softswitch.Switcher
	tracker *status.Tracker
	err     error
	calls   int
}

func (s *switchSetter) Switch(id softswitch.OutputID, on bool) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	var err error
	if on {
		err = s.sw.SetOutput(id)
	} else {
		err = s.sw.ClearOutput(id)
	}
	if err != nil {
		return err
	}
	var outs []status.Output
	for _, o := range s.sw.Outputs() {
		outs = append(outs, status.Output{Name: o.ID.String(), Pin: uint8(o.Pin), Polarity: o.Polarity.String(), On: o.On})
	}
	s.tracker.Update(nil, outs, logic.EventCounts{})
	return nil
}

func newTracker() *status.Tracker {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return status.NewTracker(start, status.Config{
		Backend:      "fake",
		ScanMs:       10,
		PressScans:   5,
		ReleaseScans: 5,
		HeartbeatMs:  900000,
		Broker:       "tcp://192.168.1.200:1883",
		HTTPPort:     ":80",
	})
}

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *switchSetter, *gpio.FakeDriver) {
	t.Helper()
	tr := newTracker()
	drv := gpio.NewFakeDriver()
	sw, err := softswitch.New(drv,
		softswitch.OutputConfig{Pin: gpio.PinPower, Polarity: gpio.ActiveHigh},
		softswitch.OutputConfig{Pin: gpio.PinCharge, Polarity: gpio.ActiveLow},
	)
	if err != nil {
		t.Fatalf("softswitch.New: %v", err)
	}
	setter := &switchSetter{sw: sw, tracker: tr}
	srv := New(":0", tr, setter)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr, setter, drv
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _, _ := newTestServer(t)
	tr.Update(
		[]status.Button{{Slot: 0, Pin: 9, Polarity: "active-low", State: logic.StatePressed, Latched: true}},
		[]status.Output{{Name: "power", Pin: 18, Polarity: "active-high", On: true}},
		logic.EventCounts{Pressed: 5, Released: 2},
	)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if len(sj.Status.Outputs) != 1 || sj.Status.Outputs[0].State != "ON" {
		t.Errorf("unexpected outputs: %+v", sj.Status.Outputs)
	}
	if len(sj.Status.Buttons) != 1 || sj.Status.Buttons[0].State != "PRESSED" {
		t.Errorf("unexpected buttons: %+v", sj.Status.Buttons)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.Pressed != 5 || sj.Status.Counts.Released != 2 {
		t.Errorf("unexpected counts: %+v", sj.Status.Counts)
	}
	if sj.Status.Config.ScanMs != 10 {
		t.Errorf("Config.ScanMs: got %d, want 10", sj.Status.Config.ScanMs)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr, _, _ := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"})

	sj := getStatus(t, ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpoints(t *testing.T) {
	ts, tr, _, _ := newTestServer(t)
	tr.Update(
		[]status.Button{{Slot: 0, Pin: 9, Polarity: "active-low", State: logic.StateReleased}},
		[]status.Output{{Name: "power", Pin: 18, Polarity: "active-high", On: true}},
		logic.EventCounts{},
	)
	tr.SetBattery(2900)

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q, want text/html", path, ct)
		}
		for _, want := range []string{"Battery Controller", "GPIO18", "GPIO9", "2900", `action="/outputs/power/on"`} {
			if !strings.Contains(string(body), want) {
				t.Errorf("%s: body missing %q", path, want)
			}
		}
	}
}

func TestHTMLWithoutControl(t *testing.T) {
	tr := newTracker()
	tr.Update(nil, []status.Output{{Name: "power", Pin: 18, On: false}}, logic.EventCounts{})
	ts := httptest.NewServer(New(":0", tr, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.Contains(string(body), "<form") {
		t.Error("control forms should be hidden without an output setter")
	}

	resp, err = http.Post(ts.URL+"/outputs/power/on", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == 200 {
		t.Error("control endpoint should not be mounted")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestOutputOnOff(t *testing.T) {
	ts, _, setter, drv := newTestServer(t)

	resp, err := http.Post(ts.URL+"/outputs/power/on", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var sj status.StatusJSON
	json.NewDecoder(resp.Body).Decode(&sj)
	resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if drv.Level(gpio.PinPower) != gpio.High {
		t.Error("power pin should be HIGH")
	}
	if len(sj.Status.Outputs) != 2 || sj.Status.Outputs[0].State != "ON" {
		t.Errorf("response should carry new state, got %+v", sj.Status.Outputs)
	}

	resp, _ = http.Post(ts.URL+"/outputs/charging/on", "", nil)
	resp.Body.Close()
	if drv.Level(gpio.PinCharge) != gpio.Low {
		t.Error("active-low charging pin should be LOW when on")
	}

	resp, _ = http.Post(ts.URL+"/outputs/power/off", "", nil)
	resp.Body.Close()
	if drv.Level(gpio.PinPower) != gpio.Low {
		t.Error("power pin should be LOW after off")
	}
	if setter.calls != 3 {
		t.Errorf("expected 3 switch calls, got %d", setter.calls)
	}
}

func TestOutputBadRequests(t *testing.T) {
	ts, _, setter, _ := newTestServer(t)

	for _, path := range []string{"/outputs/lights/on", "/outputs/power/toggle"} {
		resp, err := http.Post(ts.URL+path, "", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 400 {
			t.Errorf("%s: got %d, want 400", path, resp.StatusCode)
		}
	}
	if setter.calls != 0 {
		t.Errorf("bad requests must not reach the switcher, got %d calls", setter.calls)
	}
}

func TestOutputDriverFailure(t *testing.T) {
	ts, _, setter, _ := newTestServer(t)
	setter.err = errors.New("line busy")

	resp, err := http.Post(ts.URL+"/outputs/power/on", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 500 {
		t.Errorf("got %d, want 500", resp.StatusCode)
	}
}

func TestOutputGetNotAllowed(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/outputs/power/on")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want 405", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _, _ := newTestServer(t)

	sj1 := getStatus(t, ts.URL+"/index.json")
	if sj1.Status.MQTT.Connected {
		t.Error("expected MQTT disconnected initially")
	}

	tr.Update(nil, nil, logic.EventCounts{OutputOn: 1})
	tr.SetMQTTConnected(true)

	sj2 := getStatus(t, ts.URL+"/index.json")
	if sj2.Status.Counts.OutputOn != 1 {
		t.Errorf("OutputOn: got %d, want 1", sj2.Status.Counts.OutputOn)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
