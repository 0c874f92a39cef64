package gpio

import (
	"errors"
	"testing"
)

func TestFakeDriverScript(t *testing.T) {
	f := NewFakeDriver()
	f.Script(PinButton, High, Low, High)

	want := []Level{High, Low, High, High, High}
	for i, w := range want {
		got, err := f.GetLevel(PinButton)
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestFakeDriverSetInputDiscardsScript(t *testing.T) {
	f := NewFakeDriver()
	f.Script(PinButton, High, High, High)
	f.SetInput(PinButton, Low)

	got, _ := f.GetLevel(PinButton)
	if got != Low {
		t.Errorf("expected LOW after SetInput, got %s", got)
	}
}

func TestFakeDriverOutputs(t *testing.T) {
	f := NewFakeDriver()

	if err := f.SetLevel(PinPower, High); err == nil {
		t.Error("expected error setting an unconfigured pin")
	}

	if err := f.ConfigureOutput(PinPower); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.IsOutput(PinPower) {
		t.Error("pin should be an output after ConfigureOutput")
	}
	if err := f.SetLevel(PinPower, High); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Level(PinPower) != High {
		t.Errorf("expected HIGH, got %s", f.Level(PinPower))
	}

	got, err := f.GetLevel(PinPower)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != High {
		t.Errorf("read back: expected HIGH, got %s", got)
	}
}

func TestFakeDriverErrors(t *testing.T) {
	f := NewFakeDriver()
	f.ConfigureError = errors.New("configure failed")
	f.GetError = errors.New("read failed")

	if err := f.ConfigureOutput(PinPower); err == nil || err.Error() != "configure failed" {
		t.Errorf("unexpected configure error: %v", err)
	}
	if _, err := f.GetLevel(PinButton); err == nil || err.Error() != "read failed" {
		t.Errorf("unexpected read error: %v", err)
	}
}

func TestFakeDriverRelease(t *testing.T) {
	f := NewFakeDriver()
	f.ConfigurePinErrors = map[Pin]error{PinCharge: errors.New("line busy")}

	if err := f.ConfigureOutput(PinPower); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.ConfigureOutput(PinCharge); err == nil {
		t.Error("expected per-pin configure error")
	}
	if err := f.Release(PinPower); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.IsOutput(PinPower) || !f.Released(PinPower) {
		t.Error("released pin should no longer be an output")
	}
	if err := f.SetLevel(PinPower, High); err == nil {
		t.Error("expected error driving a released pin")
	}

	f.ConfigureOutput(PinPower)
	if f.Released(PinPower) {
		t.Error("reconfiguring should clear the released mark")
	}
}

func TestFakeDriverCallsAndClose(t *testing.T) {
	f := NewFakeDriver()
	if f.Calls() != 0 {
		t.Errorf("expected 0 calls, got %d", f.Calls())
	}

	f.ConfigureOutput(PinCharge)
	f.SetLevel(PinCharge, High)
	f.GetLevel(PinCharge)
	f.Level(PinCharge) // does not count

	if f.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", f.Calls())
	}

	if f.Closed() {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed() {
		t.Error("should be closed after Close()")
	}
}

func TestPolarity(t *testing.T) {
	tests := []struct {
		p        Polarity
		active   Level
		inactive Level
	}{
		{ActiveHigh, High, Low},
		{ActiveLow, Low, High},
	}

	for _, tt := range tests {
		t.Run(tt.p.String(), func(t *testing.T) {
			if !tt.p.Valid() {
				t.Fatal("expected valid polarity")
			}
			if tt.p.ActiveLevel() != tt.active {
				t.Errorf("active level: got %s, want %s", tt.p.ActiveLevel(), tt.active)
			}
			if tt.p.InactiveLevel() != tt.inactive {
				t.Errorf("inactive level: got %s, want %s", tt.p.InactiveLevel(), tt.inactive)
			}
			if !tt.p.Engaged(tt.active) {
				t.Error("active level should be engaged")
			}
			if tt.p.Engaged(tt.inactive) {
				t.Error("inactive level should not be engaged")
			}
		})
	}

	if Polarity(2).Valid() || Polarity(-1).Valid() {
		t.Error("out of range polarity should be invalid")
	}
}

func TestParsePolarity(t *testing.T) {
	for in, want := range map[string]Polarity{
		"low":         ActiveLow,
		"HIGH":        ActiveHigh,
		"active-low":  ActiveLow,
		" high ":      ActiveHigh,
		"active-high": ActiveHigh,
	} {
		got, err := ParsePolarity(in)
		if err != nil {
			t.Errorf("ParsePolarity(%q): unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParsePolarity(%q): got %s, want %s", in, got, want)
		}
	}

	if _, err := ParsePolarity("sideways"); !errors.Is(err, ErrInvalidPolarity) {
		t.Errorf("expected ErrInvalidPolarity, got %v", err)
	}
}
