//go:build rp2040 || rp2350

package main

import (
	"machine"

	"muxscan/core"
	"muxscan/targets/pio"
)

// RPGPIODriver implements core.GPIODriver on machine pins. Pins owned by an
// attached PIO select bank are routed to the bank instead.
type RPGPIODriver struct {
	configuredPins map[core.GPIOPin]machine.Pin
	bank           *pio.SelectBank
}

// NewRPGPIODriver creates a driver with no PIO bank attached
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// AttachSelectBank hands the bank's pins to PIO.
func (d *RPGPIODriver) AttachSelectBank(bank *pio.SelectBank) {
	d.bank = bank
}

// SelectBus implements core.SelectBusDriver. Select lines that match the
// PIO bank's pins are driven as one address word.
func (d *RPGPIODriver) SelectBus(pins ...core.GPIOPin) (core.SelectBus, bool) {
	if d.bank == nil || !d.bank.Covers(pins...) {
		return nil, false
	}
	return d.bank, true
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if d.bank != nil && d.bank.Owns(pin) {
		return nil
	}
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}

	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configuredPins[pin] = machinePin
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	if d.bank != nil && d.bank.Owns(pin) {
		d.bank.Set(pin, value)
		return nil
	}
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		machinePin = d.configuredPins[pin]
	}

	machinePin.Set(value)
	return nil
}

// GetPin reads the current pin state
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	if d.bank != nil && d.bank.Owns(pin) {
		return d.bank.Get(pin), nil
	}
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		return false, nil
	}
	return machinePin.Get(), nil
}
