//go:build linux

// muxpi scans an analog multiplexer wired straight to a Raspberry Pi and logs
// every completed cycle.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dikkadev/prettyslog"
	"github.com/pkg/errors"

	"muxscan/core"
	"muxscan/host/config"
	"muxscan/targets/linux"
)

var (
	configPath = flag.String("config", "muxscan.yaml", "Configuration file")
	backend    = flag.String("backend", "", "Select line backend: rpio or mcp23017 (overrides config)")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(prettyslog.NewPrettyslogHandler("muxpi", prettyslog.WithLevel(level)))

	if err := run(log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("muxpi failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	lc := cfg.Linux
	if *backend != "" {
		lc.Backend = *backend
	}

	if err := linux.OpenGPIO(); err != nil {
		return err
	}
	defer linux.CloseGPIO()

	var lines []core.OutputPin
	switch lc.Backend {
	case "rpio":
		lines, err = linux.RpioLines(lc.Pins)
	case "mcp23017":
		var exp *linux.Expander
		exp, err = linux.OpenExpander(uint8(lc.I2CBus), lc.I2CDevice)
		if err != nil {
			return err
		}
		defer exp.Close()
		lines, err = exp.Lines(lc.Pins)
	default:
		err = errors.Errorf("unknown backend %q", lc.Backend)
	}
	if err != nil {
		return err
	}

	adc, err := linux.OpenMCP3008(lc.ADCChannel, lc.SPISpeed)
	if err != nil {
		return err
	}
	defer adc.Close()

	mux, err := core.NewMultiplexer[linux.Sampler](adc, lines...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("scanning", "backend", lc.Backend, "channels", mux.ChannelCount(), "interval", lc.Interval)
	sc := linux.NewScanner(mux, lc.Interval, log, func(values []uint32) {
		attrs := make([]any, 0, 2*len(values))
		for i, v := range values {
			attrs = append(attrs, "ch"+strconv.Itoa(i), float64(v)*lc.Scale)
		}
		log.Info("cycle", attrs...)
	})
	return sc.Scan(ctx)
}
