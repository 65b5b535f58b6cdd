// Analog multiplexer sequencing
// Drives 1-3 select lines of an external analog switch bank so a single ADC
// input can scan 2, 4 or 8 channels round-robin, one channel per tick.
package core

import "errors"

const (
	MaxSelectLines = 3
	MaxChannels    = 1 << MaxSelectLines
)

var (
	ErrSelectLineCount = errors.New("multiplexer needs 1 to 3 select lines")
	ErrChannelRange    = errors.New("multiplexer channel out of range")
)

// OutputPin is a digital output that can be driven high or low.
// The multiplexer ignores errors returned by Set.
type OutputPin interface {
	Set(high bool) error
}

// SelectBus drives every select line in a single write; bit i of addr lands
// on line i. The multiplexer ignores errors returned by WriteAddress.
type SelectBus interface {
	WriteAddress(addr uint8) error
}

// Multiplexer sequences an analog switch bank through its select lines and
// caches the last value recorded for each channel.
//
// A owns the analog reading handle. The multiplexer never samples it; callers
// use AnalogPin to read it and Update or UpdateChannel to store the result.
//
// There is no internal locking. Tick and Update must not run concurrently;
// firmware calls both from the same timer handler.
type Multiplexer[A any] struct {
	analog    A
	lines     [MaxSelectLines]OutputPin
	bus       SelectBus
	lineCount uint8
	values    [MaxChannels]uint32
	index     uint8
}

// New1 builds a two channel multiplexer addressed by one select line.
// A nil line is never driven.
func New1[A any](analog A, s0 OutputPin) *Multiplexer[A] {
	return &Multiplexer[A]{
		analog:    analog,
		lines:     [MaxSelectLines]OutputPin{s0},
		lineCount: 1,
	}
}

// New2 builds a four channel multiplexer addressed by two select lines.
func New2[A any](analog A, s0, s1 OutputPin) *Multiplexer[A] {
	return &Multiplexer[A]{
		analog:    analog,
		lines:     [MaxSelectLines]OutputPin{s0, s1},
		lineCount: 2,
	}
}

// New3 builds an eight channel multiplexer addressed by three select lines.
func New3[A any](analog A, s0, s1, s2 OutputPin) *Multiplexer[A] {
	return &Multiplexer[A]{
		analog:    analog,
		lines:     [MaxSelectLines]OutputPin{s0, s1, s2},
		lineCount: 3,
	}
}

// NewMultiplexer builds a multiplexer when the line count is only known at
// runtime (e.g. from a host configuration command). Line 0 is the LSB.
func NewMultiplexer[A any](analog A, lines ...OutputPin) (*Multiplexer[A], error) {
	if len(lines) < 1 || len(lines) > MaxSelectLines {
		return nil, ErrSelectLineCount
	}
	for _, l := range lines {
		if l == nil {
			return nil, ErrSelectLineCount
		}
	}

	m := &Multiplexer[A]{
		analog:    analog,
		lineCount: uint8(len(lines)),
	}
	copy(m.lines[:], lines)
	return m, nil
}

// NewMultiplexerBus builds a multiplexer with lineCount select lines that
// are all driven through bus, so a tick never presents an intermediate
// address to the switch bank.
func NewMultiplexerBus[A any](analog A, bus SelectBus, lineCount int) (*Multiplexer[A], error) {
	if bus == nil || lineCount < 1 || lineCount > MaxSelectLines {
		return nil, ErrSelectLineCount
	}
	return &Multiplexer[A]{
		analog:    analog,
		bus:       bus,
		lineCount: uint8(lineCount),
	}, nil
}

// AnalogPin gives mutable access to the owned analog handle.
func (m *Multiplexer[A]) AnalogPin() *A {
	return &m.analog
}

// Channels returns the cached values in channel order.
// The slice aliases the cache and must be treated as read-only; its capacity
// is clipped so appending never writes into it.
func (m *Multiplexer[A]) Channels() []uint32 {
	n := m.ChannelCount()
	return m.values[:n:n]
}

// Snapshot copies the cached values into dst and returns the number copied.
func (m *Multiplexer[A]) Snapshot(dst []uint32) int {
	return copy(dst, m.values[:m.ChannelCount()])
}

// ChannelCount returns 2^SelectLines().
func (m *Multiplexer[A]) ChannelCount() int {
	return 1 << m.lineCount
}

// SelectLines returns the number of select lines.
func (m *Multiplexer[A]) SelectLines() int {
	return int(m.lineCount)
}

// Selected returns the channel currently addressed by the select lines.
func (m *Multiplexer[A]) Selected() uint8 {
	return m.index
}

// Update stores value against the currently selected channel.
// A reading taken before the last Tick belongs to the previous channel; use
// UpdateChannel with the index captured at sample time in that case.
func (m *Multiplexer[A]) Update(value uint32) {
	m.values[m.index] = value
}

// UpdateChannel stores value against an explicit channel.
func (m *Multiplexer[A]) UpdateChannel(ch uint8, value uint32) error {
	if int(ch) >= m.ChannelCount() {
		return ErrChannelRange
	}
	m.values[ch] = value
	return nil
}

// Tick advances to the next channel and drives the select lines to its
// binary encoding.
func (m *Multiplexer[A]) Tick() {
	m.index = uint8((int(m.index) + 1) % m.ChannelCount())
	m.drive()
}

// Select jumps straight to ch and drives the select lines.
func (m *Multiplexer[A]) Select(ch uint8) error {
	if int(ch) >= m.ChannelCount() {
		return ErrChannelRange
	}
	m.index = ch
	m.drive()
	return nil
}

// drive writes bit i of the index to line i, or the whole index to the bus
// when there is one. Write failures are dropped: GPIO writes on the supported
// boards do not fail in practice and the call runs in timer context.
func (m *Multiplexer[A]) drive() {
	if m.bus != nil {
		_ = m.bus.WriteAddress(m.index)
		return
	}
	mask := m.index
	for i := uint8(0); i < m.lineCount; i++ {
		if line := m.lines[i]; line != nil {
			_ = line.Set(mask&1 != 0)
		}
		mask >>= 1
	}
}
