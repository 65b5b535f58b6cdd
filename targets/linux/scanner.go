// Package linux runs the multiplexer directly on a Raspberry Pi: select lines
// on SoC GPIO or an MCP23017 expander, readings from an MCP3008 over SPI and
// a ticker as the periodic trigger.
package linux

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"muxscan/core"
)

// Sampler is the analog handle: one conversion of whatever the switch bank
// currently routes to the converter.
type Sampler interface {
	Sample() (uint16, error)
}

// CycleFunc receives the channel values after every full scan cycle. The
// slice is reused between calls.
type CycleFunc func(values []uint32)

// Scanner samples, attributes and ticks one multiplexer on a fixed interval.
type Scanner struct {
	mux      *core.Multiplexer[Sampler]
	interval time.Duration
	log      *slog.Logger
	onCycle  CycleFunc

	snapshot [core.MaxChannels]uint32
	failures int
}

// NewScanner builds a scanner. Settle time between a select change and the
// next sample is one interval.
func NewScanner(mux *core.Multiplexer[Sampler], interval time.Duration, log *slog.Logger, onCycle CycleFunc) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		mux:      mux,
		interval: interval,
		log:      log,
		onCycle:  onCycle,
	}
}

// Step takes one sample, stores it against the channel it was taken on and
// moves to the next channel. It reports whether a cycle completed. A failed
// sample leaves the channel's previous value in place and still advances.
func (s *Scanner) Step() (cycled bool, err error) {
	ch := s.mux.Selected()
	v, serr := (*s.mux.AnalogPin()).Sample()
	if serr != nil {
		s.failures++
		err = errors.Wrapf(serr, "sample channel %d", ch)
	} else {
		_ = s.mux.UpdateChannel(ch, uint32(v))
	}
	s.mux.Tick()

	if s.mux.Selected() != 0 {
		return false, err
	}
	n := s.mux.Snapshot(s.snapshot[:])
	if s.onCycle != nil {
		s.onCycle(s.snapshot[:n])
	}
	return true, err
}

// Errors returns the number of failed samples so far.
func (s *Scanner) Errors() int {
	return s.failures
}

// Scan steps on every tick until ctx is done. Sample failures are logged.
func (s *Scanner) Scan(ctx context.Context) error {
	if err := s.mux.Select(0); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Step(); err != nil {
				s.log.Warn("sample failed", "err", err, "failures", s.failures)
			}
		}
	}
}
