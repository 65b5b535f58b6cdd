package core

import "strconv"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// MuxEvent captures one multiplexer scan event for post-mortem analysis
type MuxEvent struct {
	EventType uint8  // Event type code
	OID       uint8  // Analog mux object ID
	Clock     uint32 // System clock at event
	Channel   uint8  // Channel selected when the event was recorded
	Value     uint32 // Context-dependent value
}

// Event type codes
const (
	EvtMuxSample = 1 // sample attributed to a channel
	EvtMuxCycle  = 2 // full scan cycle completed, report pending
	EvtMuxStop   = 3 // scanning stopped (read error, query with zero ticks, shutdown)
)

const EventRingSize = 32

var (
	// debugPrintln is the global debug print function (set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled gates DebugPrintln; off by default to keep timer paths quiet
	debugEnabled bool

	eventRing     [EventRingSize]MuxEvent
	eventRingHead uint8
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordMuxEvent stores an event in the ring buffer. Safe to call from timer
// handlers: no allocation, no output.
func RecordMuxEvent(eventType, oid uint8, clock uint32, channel uint8, value uint32) {
	idx := eventRingHead
	eventRing[idx] = MuxEvent{
		EventType: eventType,
		OID:       oid,
		Clock:     clock,
		Channel:   channel,
		Value:     value,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// MuxEvents returns recorded events, oldest first.
func MuxEvents() []MuxEvent {
	events := make([]MuxEvent, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(eventRingHead+i)%EventRingSize]
		if evt.EventType != 0 {
			events = append(events, evt)
		}
	}
	return events
}

// DumpMuxEvents writes the event ring through the debug writer
func DumpMuxEvents() {
	if debugPrintln == nil {
		return
	}

	for _, evt := range MuxEvents() {
		var name string
		switch evt.EventType {
		case EvtMuxSample:
			name = "SAMPLE"
		case EvtMuxCycle:
			name = "CYCLE"
		case EvtMuxStop:
			name = "STOP"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[MUX] " + name +
			" oid=" + strconv.Itoa(int(evt.OID)) +
			" clock=" + strconv.FormatUint(uint64(evt.Clock), 10) +
			" ch=" + strconv.Itoa(int(evt.Channel)) +
			" v=" + strconv.FormatUint(uint64(evt.Value), 10))
	}
}

// ClearMuxEvents clears the event ring
func ClearMuxEvents() {
	eventRing = [EventRingSize]MuxEvent{}
	eventRingHead = 0
}
