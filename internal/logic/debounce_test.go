package logic

import (
	"errors"
	"testing"
	"time"
)

// feed runs the debouncer over a sequence of engaged/not-engaged observations
// and returns the event fired on each scan ("" for none).
func feed(d *Debouncer, th Thresholds, engaged ...bool) []EventType {
	out := make([]EventType, len(engaged))
	for i, e := range engaged {
		out[i] = d.Process(StateFor(e), th)
	}
	return out
}

func firedAt(events []EventType) map[int]EventType {
	m := make(map[int]EventType)
	for i, e := range events {
		if e != "" {
			m[i] = e
		}
	}
	return m
}

func TestNewDebouncer(t *testing.T) {
	d := NewDebouncer()
	if d.State != StateReleased {
		t.Errorf("expected RELEASED, got %s", d.State)
	}
	if d.Counter != 0 {
		t.Errorf("expected counter 0, got %d", d.Counter)
	}
	if d.Latched() {
		t.Error("new debouncer should not be latched")
	}
}

func TestInactiveScanRightAfterRegistration(t *testing.T) {
	d := NewDebouncer()
	ev := d.Process(StateReleased, DefaultThresholds())
	if ev != "" {
		t.Errorf("expected no event, got %s", ev)
	}
	if d.State != StateReleased {
		t.Errorf("expected RELEASED, got %s", d.State)
	}
}

func TestPressFiresOnFifthScan(t *testing.T) {
	d := NewDebouncer()
	events := feed(&d, DefaultThresholds(), true, true, true, true, true, true)

	fired := firedAt(events)
	if len(fired) != 1 {
		t.Fatalf("expected exactly 1 event, got %v", fired)
	}
	if fired[4] != EventButtonPressed {
		t.Errorf("expected BUTTON_PRESSED on scan index 4, got %v", fired)
	}
	if !d.Latched() {
		t.Error("debouncer should be latched after firing")
	}
}

func TestHoldingAfterLatchFiresNothing(t *testing.T) {
	d := NewDebouncer()
	feed(&d, DefaultThresholds(), true, true, true, true, true)

	for i := 0; i < 300; i++ {
		if ev := d.Process(StatePressed, DefaultThresholds()); ev != "" {
			t.Fatalf("scan %d: unexpected event %s while latched", i, ev)
		}
	}
	if d.Counter != LatchCounter {
		t.Errorf("expected latch counter, got %d", d.Counter)
	}
}

func TestBounceIsAbsorbed(t *testing.T) {
	d := NewDebouncer()
	th := DefaultThresholds()

	// active/inactive toggles, never steady for 5 scans
	seq := []bool{true, true, false, true, true, true, false, false, true, true, true, true}
	events := feed(&d, th, seq...)

	if fired := firedAt(events); len(fired) != 0 {
		t.Errorf("expected no events during bounce, got %v", fired)
	}
}

func TestStateChangeResetsCounter(t *testing.T) {
	d := NewDebouncer()
	th := DefaultThresholds()

	feed(&d, th, true, true, true)
	if d.Counter != 3 {
		t.Fatalf("expected counter 3, got %d", d.Counter)
	}

	d.Process(StateReleased, th)
	if d.State != StateReleased {
		t.Errorf("expected RELEASED, got %s", d.State)
	}
	if d.Counter != 1 {
		t.Errorf("expected counter 1 after state change, got %d", d.Counter)
	}
}

func TestPressThenRelease(t *testing.T) {
	d := NewDebouncer()
	th := DefaultThresholds()

	seq := []bool{
		true, true, true, true, true, true, true, // press confirmed at 4
		false, false, false, false, false, false, // release confirmed at 11
	}
	fired := firedAt(feed(&d, th, seq...))

	if len(fired) != 2 {
		t.Fatalf("expected 2 events, got %v", fired)
	}
	if fired[4] != EventButtonPressed {
		t.Errorf("expected BUTTON_PRESSED at 4, got %v", fired)
	}
	if fired[11] != EventButtonReleased {
		t.Errorf("expected BUTTON_RELEASED at 11, got %v", fired)
	}
}

func TestSteadyReleasedConfirmsOnce(t *testing.T) {
	d := NewDebouncer()
	fired := firedAt(feed(&d, DefaultThresholds(), false, false, false, false, false, false, false))

	if len(fired) != 1 || fired[4] != EventButtonReleased {
		t.Errorf("expected a single BUTTON_RELEASED at 4, got %v", fired)
	}
}

func TestAsymmetricThresholds(t *testing.T) {
	d := NewDebouncer()
	th := Thresholds{Press: 2, Release: 4}

	seq := []bool{true, true, false, false, false, false}
	fired := firedAt(feed(&d, th, seq...))

	if fired[1] != EventButtonPressed {
		t.Errorf("expected press at 1, got %v", fired)
	}
	if fired[5] != EventButtonReleased {
		t.Errorf("expected release at 5, got %v", fired)
	}
	if len(fired) != 2 {
		t.Errorf("expected 2 events, got %v", fired)
	}
}

func TestThresholdOfOneFiresOnChange(t *testing.T) {
	d := NewDebouncer()
	th := Thresholds{Press: 1, Release: 1}

	if ev := d.Process(StatePressed, th); ev != EventButtonPressed {
		t.Errorf("expected immediate press, got %q", ev)
	}
	if ev := d.Process(StatePressed, th); ev != "" {
		t.Errorf("expected nothing while latched, got %q", ev)
	}
	if ev := d.Process(StateReleased, th); ev != EventButtonReleased {
		t.Errorf("expected immediate release, got %q", ev)
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("default thresholds should validate: %v", err)
	}

	bad := []Thresholds{
		{Press: 0, Release: 5},
		{Press: 5, Release: 0},
		{Press: LatchCounter, Release: 5},
		{Press: 5, Release: LatchCounter},
	}
	for _, th := range bad {
		if err := th.Validate(); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("%+v: expected ErrInvalidThreshold, got %v", th, err)
		}
	}

	if err := (Thresholds{Press: 254, Release: 1}).Validate(); err != nil {
		t.Errorf("254/1 should validate: %v", err)
	}
}

func TestStateFor(t *testing.T) {
	if StateFor(true) != StatePressed {
		t.Error("engaged should map to PRESSED")
	}
	if StateFor(false) != StateReleased {
		t.Error("not engaged should map to RELEASED")
	}
}

func TestEventCountsAdd(t *testing.T) {
	var c EventCounts
	c.Add(EventButtonPressed)
	c.Add(EventButtonPressed)
	c.Add(EventButtonReleased)
	c.Add(EventOutputOn)
	c.Add(EventOutputOff)
	c.Add(EventOutputOff)
	c.Add("UNKNOWN")

	if c.Pressed != 2 || c.Released != 1 || c.OutputOn != 1 || c.OutputOff != 2 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

// --- heartbeat ---

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)

	if hb := h.CheckHeartbeat(start.Add(time.Hour), 0); hb != nil {
		t.Error("expected nil heartbeat with zero interval")
	}
	if hb := h.CheckHeartbeat(start.Add(time.Hour), -time.Second); hb != nil {
		t.Error("expected nil heartbeat with negative interval")
	}
}

func TestCheckHeartbeatBeforeInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)

	if hb := h.CheckHeartbeat(start.Add(14*time.Minute), 15*time.Minute); hb != nil {
		t.Error("expected nil heartbeat before interval elapsed")
	}
}

func TestCheckHeartbeatAtInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)
	h.Record(EventButtonPressed)
	h.Record(EventOutputOn)

	now := start.Add(15 * time.Minute)
	hb := h.CheckHeartbeat(now, 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if !hb.Timestamp.Equal(now) {
		t.Errorf("unexpected timestamp: %v", hb.Timestamp)
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("expected uptime 15m, got %v", hb.Uptime)
	}
	if hb.Counts.Pressed != 1 || hb.Counts.OutputOn != 1 {
		t.Errorf("unexpected counts: %+v", hb.Counts)
	}
}

func TestCheckHeartbeatUpdatesLastTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)
	interval := time.Minute

	if h.CheckHeartbeat(start.Add(time.Minute), interval) == nil {
		t.Fatal("expected first heartbeat")
	}
	if h.CheckHeartbeat(start.Add(90*time.Second), interval) != nil {
		t.Error("expected no heartbeat 30s after the previous one")
	}
	hb := h.CheckHeartbeat(start.Add(2*time.Minute), interval)
	if hb == nil {
		t.Fatal("expected second heartbeat")
	}
	if hb.Uptime != 2*time.Minute {
		t.Errorf("expected uptime 2m, got %v", hb.Uptime)
	}
}
