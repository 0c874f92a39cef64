// Package adc reads raw analog samples, such as the battery voltage divider.
package adc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// DefaultSysfsRoot is where the kernel exposes IIO devices.
const DefaultSysfsRoot = "/sys/bus/iio/devices"

var (
	ErrNotInitialized = errors.New("adc: not initialized")
	ErrNoDevice       = errors.New("adc: device not found")
)

// Controller is an analog input source.
type Controller interface {
	Init() error
	ReadRaw(channel int) (int, error)
}

// SysfsController reads IIO channels through sysfs.
type SysfsController struct {
	Root   string
	Device string

	mu    sync.Mutex
	ready bool
}

// NewSysfsController returns a controller for device under DefaultSysfsRoot.
func NewSysfsController(device string) *SysfsController {
	return &SysfsController{Root: DefaultSysfsRoot, Device: device}
}

func (c *SysfsController) dir() string {
	return filepath.Join(c.Root, c.Device)
}

// Init checks the device directory exists.
func (c *SysfsController) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoDevice, c.dir(), err)
	}
	c.ready = true
	return nil
}

// ReadRaw returns the in_voltage<channel>_raw value.
func (c *SysfsController) ReadRaw(channel int) (int, error) {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()
	if !ready {
		return -1, ErrNotInitialized
	}

	path := filepath.Join(c.dir(), fmt.Sprintf("in_voltage%d_raw", channel))
	data, err := os.ReadFile(path)
	if err != nil {
		return -1, fmt.Errorf("failed reading %s: %w", path, err)
	}

	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return -1, fmt.Errorf("failed parsing ADC value from %s: %w", path, err)
	}
	return v, nil
}

// FakeController returns fixed per-channel values. Safe for concurrent use.
type FakeController struct {
	mu     sync.Mutex
	values map[int]int
	ready  bool
	reads  int

	// InitErr and ReadErr, if set, are returned by Init and ReadRaw.
	InitErr error
	ReadErr error
}

// NewFakeController creates a FakeController with every channel reading 0.
func NewFakeController() *FakeController {
	return &FakeController{values: make(map[int]int)}
}

// Set fixes the value returned for channel.
func (f *FakeController) Set(channel, value int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[channel] = value
}

func (f *FakeController) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InitErr != nil {
		return f.InitErr
	}
	f.ready = true
	return nil
}

func (f *FakeController) ReadRaw(channel int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return -1, ErrNotInitialized
	}
	f.reads++
	if f.ReadErr != nil {
		return -1, f.ReadErr
	}
	return f.values[channel], nil
}

// Reads returns the number of ReadRaw calls after Init.
func (f *FakeController) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}
