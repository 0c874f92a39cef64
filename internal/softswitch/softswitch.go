// Package softswitch maps the logical power and charging outputs onto GPIO
// pins with a configured polarity.
package softswitch

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/battery-controller/internal/gpio"
)

// OutputID names a logical output.
type OutputID int

const (
	OutputPower OutputID = iota
	OutputCharging

	outputCount
)

var (
	ErrInvalidOutput = errors.New("softswitch: invalid output id")
	ErrInvalidConfig = errors.New("softswitch: invalid config")
)

// Valid reports whether id names one of the defined outputs.
func (id OutputID) Valid() bool {
	return id >= OutputPower && id < outputCount
}

func (id OutputID) String() string {
	switch id {
	case OutputPower:
		return "power"
	case OutputCharging:
		return "charging"
	}
	return fmt.Sprintf("output(%d)", int(id))
}

// ParseOutputID accepts "power"/"pwr" and "charging"/"charge".
func ParseOutputID(s string) (OutputID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "power", "pwr":
		return OutputPower, nil
	case "charging", "charge":
		return OutputCharging, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrInvalidOutput, s)
}

// OutputConfig is the pin and polarity of one output.
type OutputConfig struct {
	Pin      gpio.Pin
	Polarity gpio.Polarity
}

// OutputStatus is a point-in-time view of one output.
type OutputStatus struct {
	ID       OutputID
	Pin      gpio.Pin
	Polarity gpio.Polarity
	On       bool
}

// Switcher drives the two outputs. All operations hold the lock for their
// full duration.
type Switcher struct {
	mu      sync.Mutex
	driver  gpio.Driver
	outputs [outputCount]OutputConfig
}

// New configures both pins as outputs and drives them to their inactive level.
func New(driver gpio.Driver, pwr, charge OutputConfig) (*Switcher, error) {
	if driver == nil {
		return nil, fmt.Errorf("%w: nil driver", ErrInvalidConfig)
	}
	cfgs := [outputCount]OutputConfig{OutputPower: pwr, OutputCharging: charge}
	for id, c := range cfgs {
		if !c.Polarity.Valid() {
			return nil, fmt.Errorf("%w: %s polarity %v", ErrInvalidConfig, OutputID(id), c.Polarity)
		}
		if c.Pin == gpio.PinNone {
			return nil, fmt.Errorf("%w: %s pin unset", ErrInvalidConfig, OutputID(id))
		}
	}
	if pwr.Pin == charge.Pin {
		return nil, fmt.Errorf("%w: power and charging share pin %d", ErrInvalidConfig, pwr.Pin)
	}

	s := &Switcher{driver: driver, outputs: cfgs}

	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []gpio.Pin
	for id, c := range cfgs {
		if err := driver.ConfigureOutput(c.Pin); err != nil {
			release(driver, claimed)
			return nil, fmt.Errorf("configure %s pin %d: %w", OutputID(id), c.Pin, err)
		}
		claimed = append(claimed, c.Pin)
		if err := driver.SetLevel(c.Pin, c.Polarity.InactiveLevel()); err != nil {
			release(driver, claimed)
			return nil, fmt.Errorf("drive %s pin %d inactive: %w", OutputID(id), c.Pin, err)
		}
		log.WithFields(log.Fields{"output": OutputID(id), "pin": c.Pin, "polarity": c.Polarity}).Info("softswitch: output ready")
	}
	return s, nil
}

// release gives back pins claimed by a failed New.
func release(driver gpio.Driver, pins []gpio.Pin) {
	for _, pin := range pins {
		if err := driver.Release(pin); err != nil {
			log.Warnf("softswitch: release pin %d: %v", pin, err)
		}
	}
}

// SetOutput drives the output to its active level.
func (s *Switcher) SetOutput(id OutputID) error {
	return s.drive(id, true)
}

// ClearOutput drives the output to its inactive level.
func (s *Switcher) ClearOutput(id OutputID) error {
	return s.drive(id, false)
}

// Toggle flips the output and returns its new logical state.
func (s *Switcher) Toggle(id OutputID) (bool, error) {
	if !id.Valid() {
		return false, fmt.Errorf("%w: %d", ErrInvalidOutput, int(id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	on, err := s.readLocked(id)
	if err != nil {
		return false, err
	}
	if err := s.driveLocked(id, !on); err != nil {
		return on, err
	}
	return !on, nil
}

func (s *Switcher) drive(id OutputID, on bool) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidOutput, int(id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driveLocked(id, on)
}

func (s *Switcher) driveLocked(id OutputID, on bool) error {
	c := s.outputs[id]
	level := c.Polarity.InactiveLevel()
	if on {
		level = c.Polarity.ActiveLevel()
	}
	if err := s.driver.SetLevel(c.Pin, level); err != nil {
		return fmt.Errorf("set %s pin %d: %w", id, c.Pin, err)
	}
	log.WithFields(log.Fields{"output": id, "pin": c.Pin, "level": level}).Debug("softswitch: driven")
	return nil
}

// IOState reads the pin back and reports whether the output is logically on.
func (s *Switcher) IOState(id OutputID) (bool, error) {
	if !id.Valid() {
		return false, fmt.Errorf("%w: %d", ErrInvalidOutput, int(id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(id)
}

func (s *Switcher) readLocked(id OutputID) (bool, error) {
	c := s.outputs[id]
	level, err := s.driver.GetLevel(c.Pin)
	if err != nil {
		return false, fmt.Errorf("read %s pin %d: %w", id, c.Pin, err)
	}
	return c.Polarity.Engaged(level), nil
}

// Outputs returns the state of both outputs. An output whose pin cannot be
// read is reported as off.
func (s *Switcher) Outputs() []OutputStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]OutputStatus, 0, len(s.outputs))
	for i, c := range s.outputs {
		id := OutputID(i)
		on, err := s.readLocked(id)
		if err != nil {
			log.Printf("softswitch: %v", err)
		}
		out = append(out, OutputStatus{ID: id, Pin: c.Pin, Polarity: c.Polarity, On: on})
	}
	return out
}
