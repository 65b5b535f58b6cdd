package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "muxscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 250000, cfg.Serial.Baud)
	require.Len(t, cfg.Muxes, 1)
	assert.Equal(t, 8, cfg.Muxes[0].Channels())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, `
serial:
  device: /dev/ttyACM0
muxes:
  - oid: 1
    adc: 26
    pins: [6, 7]
    sample: 250us
    rest: 20ms
    names: [x, y, z]
    scale: 0.5
  - oid: 2
    adc: 27
    pins: [8]
linux:
  backend: mcp23017
  pins: [0, 1, 2]
  adc_channel: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Device)
	assert.Equal(t, 250000, cfg.Serial.Baud, "baud falls back to default")
	require.Len(t, cfg.Muxes, 2)

	m := cfg.Muxes[0]
	assert.Equal(t, uint8(1), m.OID)
	assert.Equal(t, []uint32{6, 7}, m.Pins)
	assert.Equal(t, 250*time.Microsecond, m.Sample)
	assert.Equal(t, 20*time.Millisecond, m.Rest)
	assert.Equal(t, "y", m.ChannelName(1))
	assert.Equal(t, "ch3", m.ChannelName(3))
	assert.Equal(t, 50.0, m.Scaled(100))

	assert.Equal(t, Default().Muxes[0].Sample, cfg.Muxes[1].Sample)
	assert.Equal(t, 1.0, cfg.Muxes[1].Scale)

	assert.Equal(t, "mcp23017", cfg.Linux.Backend)
	assert.Equal(t, uint8(3), cfg.Linux.ADCChannel)
	assert.Equal(t, time.Millisecond, cfg.Linux.Interval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"duplicate oid":  "muxes:\n  - {oid: 1, pins: [1]}\n  - {oid: 1, pins: [2]}\n",
		"no pins":        "muxes:\n  - {oid: 1, pins: []}\n",
		"four pins":      "muxes:\n  - {oid: 1, pins: [1, 2, 3, 4]}\n",
		"too many names": "muxes:\n  - {oid: 1, pins: [1], names: [a, b, c]}\n",
		"bad backend":    "linux:\n  backend: sysfs\n",
		"bad adc":        "linux:\n  adc_channel: 8\n",
		"bad yaml":       "muxes: [\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Serial.Device = "/dev/ttyACM1"
	cfg.Muxes[0].Names = []string{"pot", "ldr"}

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestFirmwareTicks(t *testing.T) {
	m := MuxConfig{OID: 3, ADC: 1, Pins: []uint32{2, 3}, Sample: 250 * time.Microsecond, Rest: 10 * time.Millisecond}
	fw := m.Firmware()

	assert.Equal(t, uint8(3), fw.OID)
	assert.Equal(t, uint32(250), fw.SampleTicks)
	assert.Equal(t, uint32(10000), fw.RestTicks)
	assert.Equal(t, m.Pins, fw.Pins)
}
