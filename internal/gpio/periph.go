//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphDriver drives pins through periph.io's host drivers.
type PeriphDriver struct {
	mu      sync.Mutex
	pins    map[Pin]gpio.PinIO // cached pin handles
	outputs map[Pin]bool
	inputs  map[Pin]bool
}

// NewPeriphDriver initialises the periph.io host drivers.
func NewPeriphDriver() (*PeriphDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return &PeriphDriver{
		pins:    make(map[Pin]gpio.PinIO),
		outputs: make(map[Pin]bool),
		inputs:  make(map[Pin]bool),
	}, nil
}

// resolve looks a pin up by its "GPIO<n>" name, caching the handle.
// Caller must hold d.mu.
func (d *PeriphDriver) resolve(pin Pin) (gpio.PinIO, error) {
	if p, ok := d.pins[pin]; ok {
		return p, nil
	}
	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %d (%s) not found", pin, name)
	}
	d.pins[pin] = p
	return p, nil
}

// ConfigureOutput switches the pin to output, initially low.
func (d *PeriphDriver) ConfigureOutput(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.resolve(pin)
	if err != nil {
		return err
	}
	if err := p.Out(gpio.Low); err != nil {
		return fmt.Errorf("configure pin %d as output: %w", pin, err)
	}
	d.outputs[pin] = true
	delete(d.inputs, pin)
	return nil
}

// SetLevel drives a configured output pin.
func (d *PeriphDriver) SetLevel(pin Pin, level Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.outputs[pin] {
		return fmt.Errorf("set pin %d: not configured as output", pin)
	}
	p, err := d.resolve(pin)
	if err != nil {
		return err
	}
	if err := p.Out(gpio.Level(level == High)); err != nil {
		return fmt.Errorf("set pin %d: %w", pin, err)
	}
	return nil
}

// GetLevel reads the pin. Pins that are not outputs are switched to input
// without touching the pull configuration on first read.
func (d *PeriphDriver) GetLevel(pin Pin) (Level, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.resolve(pin)
	if err != nil {
		return Low, err
	}
	if !d.outputs[pin] && !d.inputs[pin] {
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return Low, fmt.Errorf("configure pin %d as input: %w", pin, err)
		}
		d.inputs[pin] = true
	}
	if p.Read() == gpio.High {
		return High, nil
	}
	return Low, nil
}

// Release switches the pin back to input and forgets it.
func (d *PeriphDriver) Release(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pins[pin]
	if !ok {
		return nil
	}
	wasOutput := d.outputs[pin]
	delete(d.pins, pin)
	delete(d.outputs, pin)
	delete(d.inputs, pin)
	if wasOutput {
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return fmt.Errorf("revert pin %d: %w", pin, err)
		}
	}
	return p.Halt()
}

// Close reverts outputs to inputs and releases the pin handles.
func (d *PeriphDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for pin := range d.outputs {
		p, ok := d.pins[pin]
		if !ok {
			continue
		}
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("revert pin %d: %w", pin, err))
		}
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt pin %d: %w", pin, err))
		}
	}
	d.pins = make(map[Pin]gpio.PinIO)
	d.outputs = make(map[Pin]bool)
	d.inputs = make(map[Pin]bool)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
