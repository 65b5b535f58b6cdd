// Analog multiplexer scanning
// Implements config_analog_mux / query_analog_mux: a timer-driven scan of an
// external analog switch bank through one ADC channel, reporting every
// channel once per cycle.
package core

import (
	"errors"

	"muxscan/protocol"
)

// Scan states
const (
	MuxStateIdle     = 0
	MuxStateReady    = 1
	MuxStateSampling = 2
)

var ErrUnknownOID = errors.New("analog mux oid not configured")

// AnalogMux is one configured multiplexer plus its scan schedule.
//
// Each timer firing samples the ADC, stores the reading against the channel
// that was selected while sampling, then ticks to the next channel. The gap
// between firings (SampleTicks) is also the settle time of the switches.
// After the last channel the values are latched for AnalogMuxTask and the
// next cycle starts RestTicks after the previous one began.
type AnalogMux struct {
	OID   uint8
	Mux   *Multiplexer[ADCInput]
	State uint8

	Timer Timer

	SampleTicks   uint32 // ticks between channel samples
	RestTicks     uint32 // ticks between the starts of consecutive cycles
	NextBeginTime uint32 // start of the next cycle

	reportPending bool
	pending       [MaxChannels]uint16
	pendingClock  uint32
}

// Global registry of analog muxes
var analogMuxes = make(map[uint8]*AnalogMux)

// Wake flag for the report task
var analogMuxWake bool

// InitAnalogMuxCommands registers the analog mux commands
func InitAnalogMuxCommands() {
	RegisterCommand("config_analog_mux", "oid=%c adc=%u line_count=%c line0=%u line1=%u line2=%u", handleConfigAnalogMux)
	RegisterCommand("query_analog_mux", "oid=%c clock=%u sample_ticks=%u rest_ticks=%u", handleQueryAnalogMux)
	RegisterResponse("analog_mux_state", "oid=%c next_clock=%u values=%*s")
	RegisterCommand("analog_mux_select", "oid=%c channel=%c", handleAnalogMuxSelect)
}

// NewAnalogMux wraps a multiplexer and parks its select lines on channel 0.
func NewAnalogMux(oid uint8, mux *Multiplexer[ADCInput]) *AnalogMux {
	am := &AnalogMux{
		OID:   oid,
		Mux:   mux,
		State: MuxStateReady,
	}
	am.Timer.Handler = am.timerEvent
	_ = mux.Select(0)
	return am
}

// Start begins scanning at clock. sampleTicks of zero stops scanning.
func (am *AnalogMux) Start(s *Scheduler, clock, sampleTicks, restTicks uint32) {
	s.Cancel(&am.Timer)
	am.reportPending = false

	if sampleTicks == 0 {
		am.stop(clock)
		return
	}

	am.SampleTicks = sampleTicks
	am.RestTicks = restTicks
	am.NextBeginTime = clock
	am.State = MuxStateSampling
	_ = am.Mux.Select(0)

	am.Timer.WakeTime = clock
	s.Schedule(&am.Timer)
}

// Stop halts scanning and drops any unsent report.
func (am *AnalogMux) Stop(s *Scheduler) {
	s.Cancel(&am.Timer)
	am.reportPending = false
	am.stop(GetTime())
}

func (am *AnalogMux) stop(clock uint32) {
	if am.State == MuxStateSampling {
		RecordMuxEvent(EvtMuxStop, am.OID, clock, am.Mux.Selected(), 0)
	}
	am.State = MuxStateReady
}

// TakeReport returns the latched cycle values, if any, and clears the latch.
// values aliases internal storage and is valid until the next cycle ends.
func (am *AnalogMux) TakeReport() (values []uint16, nextClock uint32, ok bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if !am.reportPending {
		return nil, 0, false
	}
	am.reportPending = false
	return am.pending[:am.Mux.ChannelCount()], am.pendingClock, true
}

func (am *AnalogMux) timerEvent(t *Timer) uint8 {
	if am.State != MuxStateSampling {
		return SF_DONE
	}

	ch := am.Mux.Selected()
	value, err := am.Mux.AnalogPin().Read()
	if err != nil {
		am.stop(t.WakeTime)
		return SF_DONE
	}
	_ = am.Mux.UpdateChannel(ch, uint32(value))
	RecordMuxEvent(EvtMuxSample, am.OID, t.WakeTime, ch, uint32(value))

	am.Mux.Tick()
	now := GetTime()

	if am.Mux.Selected() != 0 {
		t.WakeTime = am.nextWake(t.WakeTime+am.SampleTicks, now)
		return SF_RESCHEDULE
	}

	// Cycle complete: every channel has a fresh value.
	am.NextBeginTime = am.nextWake(am.NextBeginTime+am.RestTicks, now)
	for i, v := range am.Mux.Channels() {
		am.pending[i] = uint16(v)
	}
	am.pendingClock = am.NextBeginTime
	am.reportPending = true
	RecordMuxEvent(EvtMuxCycle, am.OID, t.WakeTime, ch, am.NextBeginTime)
	wakeAnalogMuxTask()

	t.WakeTime = am.NextBeginTime
	return SF_RESCHEDULE
}

// nextWake keeps a rescheduled timer strictly in the future so a late
// dispatch cannot spin on the same timer.
func (am *AnalogMux) nextWake(want, now uint32) uint32 {
	if timerIsBefore(now, want) {
		return want
	}
	return now + am.SampleTicks
}

// wakeAnalogMuxTask marks the report task as needing to run.
func wakeAnalogMuxTask() {
	state := disableInterrupts()
	analogMuxWake = true
	restoreInterrupts(state)
}

// AnalogMuxTask runs in task context and sends analog_mux_state for every
// mux that completed a cycle since the last call.
func AnalogMuxTask() {
	state := disableInterrupts()
	if !analogMuxWake {
		restoreInterrupts(state)
		return
	}
	analogMuxWake = false
	restoreInterrupts(state)

	for oid, am := range analogMuxes {
		values, nextClock, ok := am.TakeReport()
		if !ok {
			continue
		}
		SendResponse("analog_mux_state", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(oid))
			protocol.EncodeVLQUint(output, nextClock)
			protocol.EncodeVLQBytes(output, packValues(values))
		})
	}
}

// packValues lays values out little-endian, two bytes per channel.
func packValues(values []uint16) []byte {
	var buf [2 * MaxChannels]byte
	for i, v := range values {
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(v >> 8)
	}
	return buf[:2*len(values)]
}

// handleConfigAnalogMux: config_analog_mux oid=%c adc=%u line_count=%c line0=%u line1=%u line2=%u
func handleConfigAnalogMux(data *[]byte) error {
	var args [6]uint32
	for i := range args {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		args[i] = v
	}
	oid, adc, lineCount := uint8(args[0]), ADCChannelID(args[1]), args[2]

	if lineCount < 1 || lineCount > MaxSelectLines {
		return ErrSelectLineCount
	}
	pins := make([]GPIOPin, lineCount)
	for i := range pins {
		pins[i] = GPIOPin(args[3+i])
	}

	// The old mux may share pins with the new one; retire it before any
	// pin is reconfigured.
	if old, ok := analogMuxes[oid]; ok {
		old.Stop(DefaultScheduler)
		delete(analogMuxes, oid)
	}

	drv := MustADC()
	if err := drv.ConfigureChannel(adc); err != nil {
		return err
	}
	mux, err := newSelectMux(ADCInput{Driver: drv, Channel: adc}, MustGPIO(), pins...)
	if err != nil {
		return err
	}
	analogMuxes[oid] = NewAnalogMux(oid, mux)
	return nil
}

// handleQueryAnalogMux: query_analog_mux oid=%c clock=%u sample_ticks=%u rest_ticks=%u
func handleQueryAnalogMux(data *[]byte) error {
	var args [4]uint32
	for i := range args {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		args[i] = v
	}

	am, ok := analogMuxes[uint8(args[0])]
	if !ok {
		return ErrUnknownOID
	}
	am.Start(DefaultScheduler, args[1], args[2], args[3])
	return nil
}

// handleAnalogMuxSelect: analog_mux_select oid=%c channel=%c
// Parks a stopped mux on one channel, e.g. to probe a single input.
func handleAnalogMuxSelect(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	ch, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	am, ok := analogMuxes[uint8(oid)]
	if !ok {
		return ErrUnknownOID
	}
	am.Stop(DefaultScheduler)
	return am.Mux.Select(uint8(ch))
}

// GetAnalogMux returns the mux configured under oid.
func GetAnalogMux(oid uint8) (*AnalogMux, bool) {
	am, ok := analogMuxes[oid]
	return am, ok
}

// ShutdownAllAnalogMux stops scanning on every configured mux.
func ShutdownAllAnalogMux() {
	for _, am := range analogMuxes {
		am.Stop(DefaultScheduler)
	}
}

func clearAnalogMuxes() {
	analogMuxes = make(map[uint8]*AnalogMux)
}
