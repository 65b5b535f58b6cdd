// Package config loads the host-side description of the multiplexers: which
// firmware pins drive them, how fast to scan and how to label the channels.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"muxscan/host/mcu"
)

// firmwareTickRate is the firmware clock in ticks per second.
const firmwareTickRate = 1000000

// Config represents the application configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Muxes  []MuxConfig  `yaml:"muxes"`
	Linux  LinuxConfig  `yaml:"linux"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Device      string        `yaml:"device"` // empty: pick the first RP2040 port
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// MuxConfig describes one multiplexer on the firmware.
type MuxConfig struct {
	OID    uint8         `yaml:"oid"`
	ADC    uint32        `yaml:"adc"`    // ADC channel wired to the switch output
	Pins   []uint32      `yaml:"pins"`   // select lines, line 0 (LSB) first
	Sample time.Duration `yaml:"sample"` // time per channel, includes switch settling
	Rest   time.Duration `yaml:"rest"`   // time between the starts of two scan cycles
	Names  []string      `yaml:"names"`  // optional channel labels
	Scale  float64       `yaml:"scale"`  // units per ADC count
}

// LinuxConfig drives the multiplexer straight from a Raspberry Pi.
type LinuxConfig struct {
	Backend    string        `yaml:"backend"` // "rpio" or "mcp23017"
	Pins       []int         `yaml:"pins"`    // BCM pins or expander pins, line 0 first
	I2CBus     int           `yaml:"i2c_bus"`
	I2CDevice  uint8         `yaml:"i2c_device"` // MCP23017 address offset (A2..A0)
	ADCChannel uint8         `yaml:"adc_channel"`
	SPISpeed   int           `yaml:"spi_speed"`
	Interval   time.Duration `yaml:"interval"`
	Scale      float64       `yaml:"scale"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud:        250000,
			ReadTimeout: 100 * time.Millisecond,
		},
		Muxes: []MuxConfig{
			{
				OID:    0,
				ADC:    0,
				Pins:   []uint32{2, 3, 4},
				Sample: 500 * time.Microsecond,
				Rest:   100 * time.Millisecond,
				Scale:  3.3 / 4096,
			},
		},
		Linux: LinuxConfig{
			Backend:  "rpio",
			Pins:     []int{17, 27, 22},
			I2CBus:   1,
			SPISpeed: 1000000,
			Interval: time.Millisecond,
			Scale:    3.3 / 1024,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "read config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config file")
	}
	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}

func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}
	for i := range c.Muxes {
		m := &c.Muxes[i]
		if m.Sample == 0 {
			m.Sample = def.Muxes[0].Sample
		}
		if m.Scale == 0 {
			m.Scale = 1
		}
	}
	if c.Linux.Backend == "" {
		c.Linux.Backend = def.Linux.Backend
	}
	if c.Linux.SPISpeed == 0 {
		c.Linux.SPISpeed = def.Linux.SPISpeed
	}
	if c.Linux.Interval == 0 {
		c.Linux.Interval = def.Linux.Interval
	}
	if c.Linux.Scale == 0 {
		c.Linux.Scale = def.Linux.Scale
	}
}

// Validate checks the multiplexer descriptions.
func (c *Config) Validate() error {
	seen := make(map[uint8]bool)
	for _, m := range c.Muxes {
		if seen[m.OID] {
			return errors.Errorf("mux oid %d defined twice", m.OID)
		}
		seen[m.OID] = true

		if len(m.Pins) < 1 || len(m.Pins) > 3 {
			return errors.Errorf("mux %d: %d select pins, need 1 to 3", m.OID, len(m.Pins))
		}
		if len(m.Names) > m.Channels() {
			return errors.Errorf("mux %d: %d names for %d channels", m.OID, len(m.Names), m.Channels())
		}
		if m.Sample < time.Microsecond {
			return errors.Errorf("mux %d: sample interval %v too short", m.OID, m.Sample)
		}
		if m.Rest < 0 {
			return errors.Errorf("mux %d: negative rest interval", m.OID)
		}
	}

	switch c.Linux.Backend {
	case "rpio", "mcp23017":
	default:
		return errors.Errorf("linux backend %q, want rpio or mcp23017", c.Linux.Backend)
	}
	if n := len(c.Linux.Pins); n < 1 || n > 3 {
		return errors.Errorf("linux: %d select pins, need 1 to 3", n)
	}
	if c.Linux.ADCChannel > 7 {
		return errors.Errorf("linux: adc channel %d, MCP3008 has 0-7", c.Linux.ADCChannel)
	}
	return nil
}

// Channels returns the number of channels the mux scans.
func (m MuxConfig) Channels() int {
	return 1 << len(m.Pins)
}

// ChannelName returns the label of channel ch, or "chN".
func (m MuxConfig) ChannelName(ch int) string {
	if ch < len(m.Names) && m.Names[ch] != "" {
		return m.Names[ch]
	}
	return "ch" + strconv.Itoa(ch)
}

// Scaled converts a raw reading into configured units.
func (m MuxConfig) Scaled(raw uint16) float64 {
	return float64(raw) * m.Scale
}

// Firmware converts the description into firmware ticks.
func (m MuxConfig) Firmware() mcu.MuxConfig {
	return mcu.MuxConfig{
		OID:         m.OID,
		ADC:         m.ADC,
		Pins:        m.Pins,
		SampleTicks: durationTicks(m.Sample),
		RestTicks:   durationTicks(m.Rest),
	}
}

func durationTicks(d time.Duration) uint32 {
	return uint32(d.Nanoseconds() * firmwareTickRate / int64(time.Second))
}

