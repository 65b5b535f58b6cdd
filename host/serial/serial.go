// Package serial opens the USB CDC link to the scanner firmware and finds
// candidate ports on the host.
package serial

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	tarm "github.com/tarm/serial"
	"go.bug.st/serial/enumerator"
)

// RaspberryPiVID is the USB vendor ID the RP2040/RP2350 USB stack reports.
const RaspberryPiVID = "2E8A"

// Port is the byte stream the MCU client talks over. Tests substitute an
// in-memory implementation.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate. USB CDC ignores it but the OS still wants one.
	Baud int

	// Read timeout (0 = blocking)
	ReadTimeout time.Duration
}

// DefaultConfig returns the settings the firmware expects
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
	}
}

type nativePort struct {
	port *tarm.Port
}

// Open opens a serial port
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("serial: nil config")
	}

	port, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", cfg.Device)
	}
	return &nativePort{port: port}, nil
}

func (p *nativePort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *nativePort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *nativePort) Close() error                { return p.port.Close() }
func (p *nativePort) Flush() error                { return p.port.Flush() }

// PortInfo describes one serial port found on the host.
type PortInfo struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// IsPico reports whether the port belongs to an RP2040/RP2350 USB device.
func (p PortInfo) IsPico() bool {
	return p.IsUSB && strings.EqualFold(p.VID, RaspberryPiVID)
}

// ListPorts enumerates the serial ports on the host.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			IsUSB:   d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return ports, nil
}

// FindDevice returns the first port that looks like the scanner firmware.
func FindDevice(ports []PortInfo) (string, bool) {
	for _, p := range ports {
		if p.IsPico() {
			return p.Name, true
		}
	}
	return "", false
}
