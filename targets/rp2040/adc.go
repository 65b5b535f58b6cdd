//go:build rp2040 || rp2350

package main

import (
	"device/rp"
	"errors"
	"machine"

	"muxscan/core"

	"tinygo.org/x/drivers/mcp3008"
)

// Channel numbering seen by the host:
//
//	0-3   onboard ADC0-ADC3
//	4     internal temperature sensor
//	8-15  MCP3008 inputs 0-7 on SPI0
const (
	tempChannel     = 4
	externalChannel = 8
)

var errADCChannel = errors.New("unsupported ADC channel")

// RpAdcDriver implements core.ADCDriver for the onboard converter and an
// optional MCP3008.
type RpAdcDriver struct {
	channels map[core.ADCChannelID]*machine.ADC
	ext      *mcp3008.Device
}

// NewRPAdcDriver initialises the onboard ADC.
func NewRPAdcDriver() *RpAdcDriver {
	machine.InitADC()
	return &RpAdcDriver{
		channels: make(map[core.ADCChannelID]*machine.ADC),
	}
}

// AttachMCP3008 enables channels 8-15. The SPI bus must already be configured.
func (d *RpAdcDriver) AttachMCP3008(bus *machine.SPI, cs machine.Pin) {
	d.ext = mcp3008.New(bus, cs)
	d.ext.Configure()
}

// rawInternalTemp returns the 12-bit reading of the temperature sensor.
func rawInternalTemp() uint16 {
	rp.ADC.CS.SetBits(rp.ADC_CS_TS_EN)
	rp.ADC.CS.ReplaceBits(uint32(tempChannel)<<rp.ADC_CS_AINSEL_Pos, rp.ADC_CS_AINSEL_Msk, 0)
	rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE)
	for !rp.ADC.CS.HasBits(rp.ADC_CS_READY) {
	}
	return uint16(rp.ADC.RESULT.Get())
}

// ConfigureChannel sets up the pin mux for an onboard channel.
func (d *RpAdcDriver) ConfigureChannel(ch core.ADCChannelID) error {
	switch {
	case ch == tempChannel:
		return nil
	case ch >= externalChannel && ch < externalChannel+8:
		if d.ext == nil {
			return errADCChannel
		}
		return nil
	}
	if _, ok := d.channels[ch]; ok {
		return nil
	}

	var adc machine.ADC
	switch ch {
	case 0:
		adc = machine.ADC{Pin: machine.ADC0}
	case 1:
		adc = machine.ADC{Pin: machine.ADC1}
	case 2:
		adc = machine.ADC{Pin: machine.ADC2}
	case 3:
		adc = machine.ADC{Pin: machine.ADC3}
	default:
		return errADCChannel
	}
	if err := adc.Configure(machine.ADCConfig{}); err != nil {
		return err
	}
	d.channels[ch] = &adc
	return nil
}

// ReadRaw returns the reading at hardware resolution: 12 bits onboard,
// 10 bits from the MCP3008.
func (d *RpAdcDriver) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	if ch == tempChannel {
		return core.ADCValue(rawInternalTemp()), nil
	}
	if ch >= externalChannel && ch < externalChannel+8 {
		if d.ext == nil {
			return 0, errADCChannel
		}
		v, err := d.ext.Read(int(ch - externalChannel))
		if err != nil {
			return 0, err
		}
		// driver scales to 16 bits
		return core.ADCValue(v >> 6), nil
	}

	adc, ok := d.channels[ch]
	if !ok {
		if err := d.ConfigureChannel(ch); err != nil {
			return 0, err
		}
		adc = d.channels[ch]
	}
	// machine.ADC scales to 16 bits
	return core.ADCValue(adc.Get() >> 4), nil
}
