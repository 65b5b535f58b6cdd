package mcu

import (
	"context"

	"github.com/pkg/errors"
)

// MuxState is one analog_mux_state report: the value of every channel after
// a full scan cycle.
type MuxState struct {
	OID       uint8
	NextClock uint32
	Values    []uint16
}

var ErrNotMuxState = errors.New("message is not analog_mux_state")

// DecodeMuxState unpacks an analog_mux_state message.
func DecodeMuxState(msg Message) (MuxState, error) {
	if msg.Name != "analog_mux_state" {
		return MuxState{}, errors.Wrap(ErrNotMuxState, msg.Name)
	}
	raw := msg.Data["values"]
	if len(raw)%2 != 0 {
		return MuxState{}, errors.Errorf("odd values length %d", len(raw))
	}

	st := MuxState{
		OID:       uint8(msg.Args["oid"]),
		NextClock: msg.Args["next_clock"],
		Values:    make([]uint16, len(raw)/2),
	}
	for i := range st.Values {
		st.Values[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return st, nil
}

// MuxConfig is the firmware side of one multiplexer.
type MuxConfig struct {
	OID         uint8
	ADC         uint32
	Pins        []uint32 // select lines, line 0 first
	SampleTicks uint32
	RestTicks   uint32
}

// ConfigureMux sends config_analog_mux for cfg.
func (m *MCU) ConfigureMux(cfg MuxConfig) error {
	if len(cfg.Pins) < 1 || len(cfg.Pins) > 3 {
		return errors.Errorf("mux %d: %d select lines, need 1 to 3", cfg.OID, len(cfg.Pins))
	}
	var lines [3]uint32
	copy(lines[:], cfg.Pins)
	return m.SendCommand("config_analog_mux",
		cfg.OID, cfg.ADC, uint8(len(cfg.Pins)), lines[0], lines[1], lines[2])
}

// StartMux sends query_analog_mux so scanning begins at clock.
func (m *MCU) StartMux(cfg MuxConfig, clock uint32) error {
	return m.SendCommand("query_analog_mux", cfg.OID, clock, cfg.SampleTicks, cfg.RestTicks)
}

// StopMux stops scanning on oid.
func (m *MCU) StopMux(oid uint8) error {
	return m.SendCommand("query_analog_mux", oid, uint32(0), uint32(0), uint32(0))
}

// GetClock asks the firmware for its current clock.
func (m *MCU) GetClock(ctx context.Context) (uint32, error) {
	if err := m.SendCommand("get_clock"); err != nil {
		return 0, err
	}
	for {
		msg, err := m.ReadMessage(ctx)
		if err != nil {
			return 0, errors.Wrap(err, "get_clock")
		}
		if msg.Name == "clock" {
			return msg.Args["clock"], nil
		}
	}
}
