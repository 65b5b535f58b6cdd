//go:build linux

package linux

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

// MCP3008 reads one channel of an MCP3008 on SPI0 CE0.
type MCP3008 struct {
	Channel uint8
}

// OpenMCP3008 claims SPI0. rpio.Open must have been called.
func OpenMCP3008(channel uint8, speed int) (*MCP3008, error) {
	if channel > 7 {
		return nil, errors.Errorf("mcp3008 channel %d out of range", channel)
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		return nil, errors.Wrap(err, "spi begin")
	}
	rpio.SpiChipSelect(0)
	rpio.SpiSpeed(speed)
	return &MCP3008{Channel: channel}, nil
}

// Sample implements Sampler.
func (m *MCP3008) Sample() (uint16, error) {
	buf := mcp3008Request(m.Channel)
	rpio.SpiExchange(buf[:])
	return mcp3008Value(buf), nil
}

// Close releases SPI0.
func (m *MCP3008) Close() {
	rpio.SpiEnd(rpio.Spi0)
}
