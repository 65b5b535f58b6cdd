package core

// ADCChannelID identifies a logical ADC channel.
type ADCChannelID uint8

// ADCValue is the "raw" ADC reading as seen by the rest of the firmware.
// Targets return the hardware resolution unscaled (12 bits on RP2040).
type ADCValue uint16

// ADCDriver is the abstract ADC interface that core code uses.
type ADCDriver interface {
	// ConfigureChannel prepares a channel for analog input.
	// For pin-muxed channels, this should set pin to analog mode.
	ConfigureChannel(ch ADCChannelID) error

	// ReadRaw performs a one-shot sample from the given channel.
	ReadRaw(ch ADCChannelID) (ADCValue, error)
}

// Global singleton used by core code.
var adcDriver ADCDriver

// SetADCDriver is called by target-specific code to register its driver.
func SetADCDriver(d ADCDriver) {
	adcDriver = d
}

// MustADC returns the configured driver or panics if missing.
func MustADC() ADCDriver {
	if adcDriver == nil {
		panic("ADC driver not configured")
	}
	return adcDriver
}

// ADCInput is the analog handle a multiplexer owns: one channel on a driver,
// wired to the common output of the analog switch bank.
type ADCInput struct {
	Driver  ADCDriver
	Channel ADCChannelID
}

// Read performs a one-shot sample.
func (in *ADCInput) Read() (ADCValue, error) {
	return in.Driver.ReadRaw(in.Channel)
}
