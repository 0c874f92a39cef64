// Package gpio provides digital pin access with hardware abstraction.
// Real backends use the Linux GPIO character device, periph.io or go-rpio.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
	"strings"
)

// Pin is a physical GPIO line number (BCM numbering on the Pi).
type Pin uint8

// PinNone marks an unused pin slot.
const PinNone Pin = 0xFF

// Pin definitions (BCM numbering)
const (
	PinBattLevel1 Pin = 4 // Battery level indicator LEDs
	PinBattLevel2 Pin = 5
	PinBattLevel3 Pin = 6
	PinBattLevel4 Pin = 7
	PinPower      Pin = 18 // Power enable output
	PinCharge     Pin = 19 // Charge enable output
	PinButton     Pin = 9  // User push button input
)

// Level is a raw electrical pin level.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Polarity says which raw level means "engaged" for a pin.
type Polarity int

const (
	ActiveLow Polarity = iota
	ActiveHigh

	polarityCount
)

// ErrInvalidPolarity is returned for a Polarity outside ActiveLow/ActiveHigh.
var ErrInvalidPolarity = errors.New("gpio: invalid polarity")

// Valid reports whether p is a recognised polarity.
func (p Polarity) Valid() bool {
	return p >= ActiveLow && p < polarityCount
}

// ActiveLevel returns the raw level that means engaged.
func (p Polarity) ActiveLevel() Level {
	if p == ActiveHigh {
		return High
	}
	return Low
}

// InactiveLevel returns the raw level that means disengaged.
func (p Polarity) InactiveLevel() Level {
	if p == ActiveHigh {
		return Low
	}
	return High
}

// Engaged reports whether a raw level read from the pin means engaged.
func (p Polarity) Engaged(l Level) bool {
	return l == p.ActiveLevel()
}

func (p Polarity) String() string {
	switch p {
	case ActiveLow:
		return "active-low"
	case ActiveHigh:
		return "active-high"
	}
	return fmt.Sprintf("polarity(%d)", int(p))
}

// ParsePolarity accepts "low"/"high" (or the active-low/active-high forms).
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "active-low":
		return ActiveLow, nil
	case "high", "active-high":
		return ActiveHigh, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPolarity, s)
}

// Driver is the platform GPIO abstraction used by the button controller and
// the soft switcher. Implementations must be safe for concurrent use.
type Driver interface {
	// ConfigureOutput sets the pin up as a push-pull output with no pull
	// resistors and no edge detection.
	ConfigureOutput(pin Pin) error

	// SetLevel drives an output pin.
	SetLevel(pin Pin, level Level) error

	// GetLevel returns the current raw level of the pin. Pins that were never
	// configured as outputs are read as inputs.
	GetLevel(pin Pin) (Level, error)

	// Release returns a pin to an undriven input and gives it back to the
	// system. Releasing a pin that was never used is not an error.
	Release(pin Pin) error

	// Close releases GPIO resources.
	Close() error
}

// ErrUnsupported is returned by backends that are not available on this platform.
var ErrUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// ErrClosed is returned by a driver used after Close.
var ErrClosed = errors.New("gpio: driver closed")

func levelFromInt(v int) Level {
	if v != 0 {
		return High
	}
	return Low
}
