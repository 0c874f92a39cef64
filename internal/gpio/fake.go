package gpio

import (
	"fmt"
	"sync"
)

// FakeDriver is an in-memory Driver for tests and for running the daemon
// without hardware. Safe for concurrent use.
type FakeDriver struct {
	mu sync.Mutex

	levels   map[Pin]Level
	outputs  map[Pin]bool
	scripts  map[Pin][]Level
	released map[Pin]bool

	// Calls counts every Driver method invocation that touched a pin.
	calls int

	// ConfigureError, SetError and GetError, if set, are returned by the
	// corresponding method.
	ConfigureError error
	SetError       error
	GetError       error

	// ConfigurePinErrors fails ConfigureOutput for individual pins.
	ConfigurePinErrors map[Pin]error

	closed bool
}

// NewFakeDriver creates a FakeDriver with every pin reading low.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		levels:   make(map[Pin]Level),
		outputs:  make(map[Pin]bool),
		scripts:  make(map[Pin][]Level),
		released: make(map[Pin]bool),
	}
}

// SetInput sets the level a pin reads back until changed. Any pending script
// for the pin is discarded.
func (f *FakeDriver) SetInput(pin Pin, level Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scripts, pin)
	f.levels[pin] = level
}

// Script queues levels returned by successive GetLevel calls on pin.
// Once the script is exhausted the last level repeats.
func (f *FakeDriver) Script(pin Pin, levels ...Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[pin] = append([]Level(nil), levels...)
}

// ConfigureOutput records the pin as an output.
func (f *FakeDriver) ConfigureOutput(pin Pin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.ConfigureError != nil {
		return f.ConfigureError
	}
	if err := f.ConfigurePinErrors[pin]; err != nil {
		return err
	}
	f.outputs[pin] = true
	delete(f.released, pin)
	f.levels[pin] = Low
	return nil
}

// SetLevel stores the level of an output pin.
func (f *FakeDriver) SetLevel(pin Pin, level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.SetError != nil {
		return f.SetError
	}
	if !f.outputs[pin] {
		return fmt.Errorf("set pin %d: not configured as output", pin)
	}
	f.levels[pin] = level
	return nil
}

// GetLevel returns the next scripted level, or the stored level.
func (f *FakeDriver) GetLevel(pin Pin) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.GetError != nil {
		return Low, f.GetError
	}
	if script := f.scripts[pin]; len(script) > 0 {
		level := script[0]
		if len(script) > 1 {
			f.scripts[pin] = script[1:]
		} else {
			delete(f.scripts, pin)
		}
		f.levels[pin] = level
		return level, nil
	}
	return f.levels[pin], nil
}

// Level returns the stored level of a pin without counting as a call.
func (f *FakeDriver) Level(pin Pin) Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[pin]
}

// IsOutput reports whether ConfigureOutput succeeded for pin.
func (f *FakeDriver) IsOutput(pin Pin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[pin]
}

// Calls returns the number of Driver method calls made so far.
func (f *FakeDriver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Release turns an output pin back into an input.
func (f *FakeDriver) Release(pin Pin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	delete(f.outputs, pin)
	f.released[pin] = true
	return nil
}

// Released reports whether Release was called for pin since it was last
// configured.
func (f *FakeDriver) Released(pin Pin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released[pin]
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeDriver) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
