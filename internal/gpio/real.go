//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "battery-controller"

// GpiocdevDriver drives pins through the Linux GPIO character device.
// Output lines are requested by ConfigureOutput; any other line is requested
// as an input the first time it is read.
type GpiocdevDriver struct {
	mu      sync.Mutex
	chip    *gpiocdev.Chip
	outputs map[Pin]*gpiocdev.Line
	inputs  map[Pin]*gpiocdev.Line
}

// NewGpiocdevDriver opens the named chip, e.g. "gpiochip0".
func NewGpiocdevDriver(chipName string) (*GpiocdevDriver, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &GpiocdevDriver{
		chip:    chip,
		outputs: make(map[Pin]*gpiocdev.Line),
		inputs:  make(map[Pin]*gpiocdev.Line),
	}, nil
}

// ConfigureOutput requests the line as an output, initially low.
func (d *GpiocdevDriver) ConfigureOutput(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.chip == nil {
		return ErrClosed
	}
	if _, ok := d.outputs[pin]; ok {
		return nil
	}

	// A line previously read as input is reconfigured in place.
	if line, ok := d.inputs[pin]; ok {
		if err := line.Reconfigure(gpiocdev.AsOutput(0), gpiocdev.WithBiasDisabled); err != nil {
			return fmt.Errorf("reconfigure pin %d as output: %w", pin, err)
		}
		delete(d.inputs, pin)
		d.outputs[pin] = line
		return nil
	}

	line, err := d.chip.RequestLine(int(pin), gpiocdev.AsOutput(0), gpiocdev.WithBiasDisabled)
	if err != nil {
		return fmt.Errorf("request pin %d as output: %w", pin, err)
	}
	d.outputs[pin] = line
	return nil
}

// SetLevel drives a configured output line.
func (d *GpiocdevDriver) SetLevel(pin Pin, level Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.chip == nil {
		return ErrClosed
	}
	line, ok := d.outputs[pin]
	if !ok {
		return fmt.Errorf("set pin %d: not configured as output", pin)
	}
	if err := line.SetValue(int(level)); err != nil {
		return fmt.Errorf("set pin %d: %w", pin, err)
	}
	return nil
}

// GetLevel reads the line, requesting it as an input on first use.
func (d *GpiocdevDriver) GetLevel(pin Pin) (Level, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	line, err := d.lineForRead(pin)
	if err != nil {
		return Low, err
	}
	v, err := line.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return levelFromInt(v), nil
}

// lineForRead must be called with d.mu held.
func (d *GpiocdevDriver) lineForRead(pin Pin) (*gpiocdev.Line, error) {
	if d.chip == nil {
		return nil, ErrClosed
	}
	if line, ok := d.outputs[pin]; ok {
		return line, nil
	}
	if line, ok := d.inputs[pin]; ok {
		return line, nil
	}
	line, err := d.chip.RequestLine(int(pin), gpiocdev.AsInput)
	if err != nil {
		return nil, fmt.Errorf("request pin %d as input: %w", pin, err)
	}
	d.inputs[pin] = line
	return line, nil
}

// Release reverts an output line to input and closes it.
func (d *GpiocdevDriver) Release(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if line, ok := d.outputs[pin]; ok {
		delete(d.outputs, pin)
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			line.Close()
			return fmt.Errorf("reconfigure pin %d: %w", pin, err)
		}
		return line.Close()
	}
	if line, ok := d.inputs[pin]; ok {
		delete(d.inputs, pin)
		return line.Close()
	}
	return nil
}

// Close releases all lines and the chip. Output lines are reverted to inputs
// first so nothing stays driven after the daemon exits.
func (d *GpiocdevDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for pin, line := range d.outputs {
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	for pin, line := range d.inputs {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	d.outputs = make(map[Pin]*gpiocdev.Line)
	d.inputs = make(map[Pin]*gpiocdev.Line)

	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		d.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
