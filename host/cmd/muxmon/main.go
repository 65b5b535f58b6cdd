// muxmon configures the analog multiplexers on a connected scanner board and
// logs every completed scan cycle.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dikkadev/prettyslog"
	"github.com/pkg/errors"

	"muxscan/host/config"
	"muxscan/host/mcu"
	"muxscan/host/serial"
)

var (
	configPath = flag.String("config", "muxscan.yaml", "Configuration file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	list       = flag.Bool("list", false, "List serial ports and exit")
	dict       = flag.Bool("dict", false, "Print the firmware dictionary and exit")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

// startDelay gives the firmware time to process configuration before the
// first scan cycle is due.
const startDelay = 100 * time.Millisecond

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(prettyslog.NewPrettyslogHandler("muxmon", prettyslog.WithLevel(level)))
	slog.SetDefault(log)

	if err := run(log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("muxmon failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	if *list {
		return listPorts()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if cfg.Serial.Device == "" {
		ports, err := serial.ListPorts()
		if err != nil {
			return err
		}
		name, ok := serial.FindDevice(ports)
		if !ok {
			return errors.New("no scanner board found, use -device")
		}
		cfg.Serial.Device = name
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("connecting", "device", cfg.Serial.Device)
	m, err := mcu.Connect(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
	}, mcu.WithLogger(log))
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.RetrieveDictionary(ctx); err != nil {
		return err
	}
	if *dict {
		fmt.Print(string(m.RawDictionary()))
		return nil
	}

	if err := startScanning(ctx, log, m, cfg); err != nil {
		return err
	}

	byOID := make(map[uint8]config.MuxConfig, len(cfg.Muxes))
	for _, mc := range cfg.Muxes {
		byOID[mc.OID] = mc
	}

	// Run closes the port when its context ends, so stop the firmware first
	// and only then end the read loop.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	afterStop := context.AfterFunc(ctx, func() {
		stopScanning(log, m, cfg)
		cancelRun()
	})
	defer afterStop()

	return m.Run(runCtx, func(msg mcu.Message) error {
		if msg.Name != "analog_mux_state" {
			log.Debug("response", "name", msg.Name, "args", msg.Args)
			return nil
		}
		st, err := mcu.DecodeMuxState(msg)
		if err != nil {
			return err
		}
		logState(log, byOID[st.OID], st)
		return nil
	})
}

func startScanning(ctx context.Context, log *slog.Logger, m *mcu.MCU, cfg *config.Config) error {
	if err := m.SendCommand("config_reset"); err != nil {
		return err
	}
	for _, mc := range cfg.Muxes {
		if err := m.ConfigureMux(mc.Firmware()); err != nil {
			return errors.Wrapf(err, "configure mux %d", mc.OID)
		}
	}

	clock, err := m.GetClock(ctx)
	if err != nil {
		return err
	}
	start := clock + uint32(startDelay/time.Microsecond)
	for _, mc := range cfg.Muxes {
		if err := m.StartMux(mc.Firmware(), start); err != nil {
			return errors.Wrapf(err, "start mux %d", mc.OID)
		}
		log.Info("scanning", "oid", mc.OID, "channels", mc.Channels(), "sample", mc.Sample, "rest", mc.Rest)
	}
	return nil
}

// stopScanning leaves the board idle on exit. Errors are only logged; the
// port is about to close anyway.
func stopScanning(log *slog.Logger, m *mcu.MCU, cfg *config.Config) {
	for _, mc := range cfg.Muxes {
		if err := m.StopMux(mc.OID); err != nil {
			log.Warn("stop mux", "oid", mc.OID, "err", err)
		}
	}
}

func logState(log *slog.Logger, mc config.MuxConfig, st mcu.MuxState) {
	attrs := make([]any, 0, 2+2*len(st.Values))
	attrs = append(attrs, "oid", st.OID, "next_clock", st.NextClock)
	for i, raw := range st.Values {
		attrs = append(attrs, mc.ChannelName(i), mc.Scaled(raw))
	}
	log.Info("cycle", attrs...)
}

func listPorts() error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}
	for _, p := range ports {
		marker := ""
		if p.IsPico() {
			marker = " (rp2040)"
		}
		fmt.Printf("%s\t%s:%s\t%s%s\n", p.Name, p.VID, p.PID, p.Product, marker)
	}
	return nil
}
