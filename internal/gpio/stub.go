//go:build !linux

package gpio

// GpiocdevDriver is not available on non-Linux platforms.
type GpiocdevDriver struct{}

// NewGpiocdevDriver returns an error on non-Linux platforms.
func NewGpiocdevDriver(chipName string) (*GpiocdevDriver, error) {
	return nil, ErrUnsupported
}

func (d *GpiocdevDriver) ConfigureOutput(pin Pin) error       { return ErrUnsupported }
func (d *GpiocdevDriver) SetLevel(pin Pin, level Level) error { return ErrUnsupported }
func (d *GpiocdevDriver) GetLevel(pin Pin) (Level, error)     { return Low, ErrUnsupported }
func (d *GpiocdevDriver) Release(pin Pin) error               { return nil }
func (d *GpiocdevDriver) Close() error                        { return nil }

// PeriphDriver is not available on non-Linux platforms.
type PeriphDriver struct{}

// NewPeriphDriver returns an error on non-Linux platforms.
func NewPeriphDriver() (*PeriphDriver, error) {
	return nil, ErrUnsupported
}

func (d *PeriphDriver) ConfigureOutput(pin Pin) error       { return ErrUnsupported }
func (d *PeriphDriver) SetLevel(pin Pin, level Level) error { return ErrUnsupported }
func (d *PeriphDriver) GetLevel(pin Pin) (Level, error)     { return Low, ErrUnsupported }
func (d *PeriphDriver) Release(pin Pin) error               { return nil }
func (d *PeriphDriver) Close() error                        { return nil }

// RpioDriver is not available on non-Linux platforms.
type RpioDriver struct{}

// NewRpioDriver returns an error on non-Linux platforms.
func NewRpioDriver() (*RpioDriver, error) {
	return nil, ErrUnsupported
}

func (d *RpioDriver) ConfigureOutput(pin Pin) error       { return ErrUnsupported }
func (d *RpioDriver) SetLevel(pin Pin, level Level) error { return ErrUnsupported }
func (d *RpioDriver) GetLevel(pin Pin) (Level, error)     { return Low, ErrUnsupported }
func (d *RpioDriver) Release(pin Pin) error               { return nil }
func (d *RpioDriver) Close() error                        { return nil }
