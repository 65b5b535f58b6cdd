//go:build linux

package linux

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"

	"muxscan/core"
)

// RpioLine is a select line on a BCM GPIO pin.
type RpioLine struct {
	pin rpio.Pin
}

// Set implements core.OutputPin.
func (l RpioLine) Set(high bool) error {
	if high {
		l.pin.High()
	} else {
		l.pin.Low()
	}
	return nil
}

// OpenGPIO maps the GPIO registers. Pair with CloseGPIO.
func OpenGPIO() error {
	if err := rpio.Open(); err != nil {
		return errors.Wrap(err, "open gpio")
	}
	return nil
}

// CloseGPIO unmaps the GPIO registers.
func CloseGPIO() error {
	return rpio.Close()
}

// RpioLines configures pins as outputs, driven low, line 0 first.
func RpioLines(pins []int) ([]core.OutputPin, error) {
	lines := make([]core.OutputPin, 0, len(pins))
	for _, p := range pins {
		if p < 0 || p > 255 {
			return nil, errors.Errorf("gpio pin %d out of range", p)
		}
		pin := rpio.Pin(uint8(p))
		pin.Output()
		pin.Low()
		lines = append(lines, RpioLine{pin: pin})
	}
	return lines, nil
}
