//go:build linux

package linux

import (
	"github.com/pkg/errors"
	"github.com/racerxdl/go-mcp23017"

	"muxscan/core"
)

// Expander drives select lines through an MCP23017 on I2C.
type Expander struct {
	device *mcp23017.Device
}

// ExpanderLine is one expander pin used as a select line.
type ExpanderLine struct {
	device *mcp23017.Device
	pin    uint8
}

// Set implements core.OutputPin.
func (l ExpanderLine) Set(high bool) error {
	return l.device.DigitalWrite(l.pin, mcp23017.PinLevel(high))
}

// OpenExpander opens the MCP23017 at address offset dev on bus.
func OpenExpander(bus, dev uint8) (*Expander, error) {
	device, err := mcp23017.Open(bus, dev)
	if err != nil {
		return nil, errors.Wrapf(err, "open mcp23017 bus %d dev %d", bus, dev)
	}
	return &Expander{device: device}, nil
}

// Lines configures pins as outputs, line 0 first.
func (e *Expander) Lines(pins []int) ([]core.OutputPin, error) {
	lines := make([]core.OutputPin, 0, len(pins))
	for _, p := range pins {
		if p < 0 || p > 15 {
			return nil, errors.Errorf("mcp23017 pin %d out of range", p)
		}
		if err := e.device.PinMode(uint8(p), mcp23017.OUTPUT); err != nil {
			return nil, errors.Wrapf(err, "mcp23017 pin %d", p)
		}
		lines = append(lines, ExpanderLine{device: e.device, pin: uint8(p)})
	}
	return lines, nil
}

// Close releases the I2C device.
func (e *Expander) Close() error {
	return e.device.Close()
}
