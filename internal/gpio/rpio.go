//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// RpioDriver drives pins through go-rpio's memory-mapped BCM283x registers.
// Only one RpioDriver may be open at a time.
type RpioDriver struct {
	mu      sync.Mutex
	outputs map[Pin]bool
	inputs  map[Pin]bool
}

// NewRpioDriver maps the GPIO register block.
func NewRpioDriver() (*RpioDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open rpio: %w", err)
	}
	return &RpioDriver{
		outputs: make(map[Pin]bool),
		inputs:  make(map[Pin]bool),
	}, nil
}

// ConfigureOutput switches the pin to output with pulls off, initially low.
func (d *RpioDriver) ConfigureOutput(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := rpio.Pin(pin)
	p.PullOff()
	p.Output()
	p.Low()
	d.outputs[pin] = true
	delete(d.inputs, pin)
	return nil
}

// SetLevel drives a configured output pin.
func (d *RpioDriver) SetLevel(pin Pin, level Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.outputs[pin] {
		return fmt.Errorf("set pin %d: not configured as output", pin)
	}
	rpio.Pin(pin).Write(rpio.State(level))
	return nil
}

// GetLevel reads the pin, switching it to input on first read unless it is
// an output.
func (d *RpioDriver) GetLevel(pin Pin) (Level, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := rpio.Pin(pin)
	if !d.outputs[pin] && !d.inputs[pin] {
		p.Input()
		d.inputs[pin] = true
	}
	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

// Release switches an output pin back to input.
func (d *RpioDriver) Release(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.outputs[pin] {
		rpio.Pin(pin).Input()
	}
	delete(d.outputs, pin)
	delete(d.inputs, pin)
	return nil
}

// Close reverts outputs to inputs and unmaps the register block.
func (d *RpioDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for pin := range d.outputs {
		rpio.Pin(pin).Input()
	}
	d.outputs = make(map[Pin]bool)
	d.inputs = make(map[Pin]bool)

	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close rpio: %w", err)
	}
	return nil
}
