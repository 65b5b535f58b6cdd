package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}

// DriverPin binds a pin number to a driver so it can serve as a select line.
type DriverPin struct {
	Driver GPIODriver
	Pin    GPIOPin
}

// Set implements OutputPin.
func (p DriverPin) Set(high bool) error {
	return p.Driver.SetPin(p.Pin, high)
}

// ConfigureSelectLines configures each pin as an output on drv and returns
// them as select lines, line 0 first.
func ConfigureSelectLines(drv GPIODriver, pins ...GPIOPin) ([]OutputPin, error) {
	lines := make([]OutputPin, 0, len(pins))
	for _, pin := range pins {
		if err := drv.ConfigureOutput(pin); err != nil {
			return nil, err
		}
		lines = append(lines, DriverPin{Driver: drv, Pin: pin})
	}
	return lines, nil
}

// SelectBusDriver is implemented by GPIO drivers that can drive a group of
// pins with one write. SelectBus returns a bus when pins, line 0 first, are
// all covered by such a group.
type SelectBusDriver interface {
	SelectBus(pins ...GPIOPin) (SelectBus, bool)
}

// newSelectMux builds a multiplexer on pins, preferring a select bus when
// drv offers one for them.
func newSelectMux[A any](analog A, drv GPIODriver, pins ...GPIOPin) (*Multiplexer[A], error) {
	if len(pins) < 1 || len(pins) > MaxSelectLines {
		return nil, ErrSelectLineCount
	}
	if bd, ok := drv.(SelectBusDriver); ok {
		if bus, ok := bd.SelectBus(pins...); ok {
			return NewMultiplexerBus(analog, bus, len(pins))
		}
	}
	lines, err := ConfigureSelectLines(drv, pins...)
	if err != nil {
		return nil, err
	}
	return NewMultiplexer(analog, lines...)
}
