package core

import (
	"errors"
	"testing"
)

// recordPin is an OutputPin that remembers its last level and write count.
type recordPin struct {
	high   bool
	writes int
	err    error
}

func (p *recordPin) Set(high bool) error {
	p.high = high
	p.writes++
	return p.err
}

func newPins(n int) ([]*recordPin, []OutputPin) {
	pins := make([]*recordPin, n)
	lines := make([]OutputPin, n)
	for i := range pins {
		pins[i] = &recordPin{}
		lines[i] = pins[i]
	}
	return pins, lines
}

func lineLevels(pins []*recordPin) uint8 {
	var v uint8
	for i, p := range pins {
		if p.high {
			v |= 1 << i
		}
	}
	return v
}

func TestNewMultiplexerLineCount(t *testing.T) {
	tests := []struct {
		lines    int
		channels int
		wantErr  bool
	}{
		{0, 0, true},
		{1, 2, false},
		{2, 4, false},
		{3, 8, false},
		{4, 0, true},
	}

	for _, tt := range tests {
		_, lines := newPins(tt.lines)
		m, err := NewMultiplexer(struct{}{}, lines...)
		if tt.wantErr {
			if !errors.Is(err, ErrSelectLineCount) {
				t.Errorf("lines=%d: expected ErrSelectLineCount, got %v", tt.lines, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("lines=%d: unexpected error %v", tt.lines, err)
		}
		if m.ChannelCount() != tt.channels {
			t.Errorf("lines=%d: ChannelCount() = %d, want %d", tt.lines, m.ChannelCount(), tt.channels)
		}
		if m.SelectLines() != tt.lines {
			t.Errorf("lines=%d: SelectLines() = %d", tt.lines, m.SelectLines())
		}
	}
}

func TestNewMultiplexerNilLine(t *testing.T) {
	if _, err := NewMultiplexer(0, &recordPin{}, nil); !errors.Is(err, ErrSelectLineCount) {
		t.Errorf("expected ErrSelectLineCount for nil line, got %v", err)
	}
}

func TestConstructionDrivesNoLine(t *testing.T) {
	pins, _ := newPins(3)
	m := New3(0, pins[0], pins[1], pins[2])

	for i, p := range pins {
		if p.writes != 0 {
			t.Errorf("line %d written %d times during construction", i, p.writes)
		}
	}
	if m.Selected() != 0 {
		t.Errorf("initial index = %d, want 0", m.Selected())
	}
}

func TestTickIndexAndLines(t *testing.T) {
	for lineCount := 1; lineCount <= MaxSelectLines; lineCount++ {
		pins, lines := newPins(lineCount)
		m, err := NewMultiplexer(0, lines...)
		if err != nil {
			t.Fatal(err)
		}
		n := m.ChannelCount()

		for k := 1; k <= 3*n; k++ {
			m.Tick()
			want := uint8(k % n)
			if m.Selected() != want {
				t.Fatalf("lines=%d after %d ticks: index %d, want %d", lineCount, k, m.Selected(), want)
			}
			if got := lineLevels(pins); got != want {
				t.Fatalf("lines=%d after %d ticks: levels %03b, want %03b", lineCount, k, got, want)
			}
			for i, p := range pins {
				if p.writes != k {
					t.Fatalf("lines=%d: line %d written %d times after %d ticks", lineCount, i, p.writes, k)
				}
			}
		}
	}
}

func TestChannelsBeforeUpdate(t *testing.T) {
	_, lines := newPins(2)
	m, _ := NewMultiplexer(0, lines...)

	ch := m.Channels()
	if len(ch) != 4 {
		t.Fatalf("len(Channels()) = %d, want 4", len(ch))
	}
	for i, v := range ch {
		if v != 0 {
			t.Errorf("channel %d = %d before any update", i, v)
		}
	}
}

func TestUpdateBeforeTick(t *testing.T) {
	pins, _ := newPins(2)
	m := New2(0, pins[0], pins[1])

	m.Update(99)
	ch := m.Channels()
	if ch[0] != 99 {
		t.Errorf("channel 0 = %d, want 99", ch[0])
	}
	for i := 1; i < len(ch); i++ {
		if ch[i] != 0 {
			t.Errorf("channel %d = %d, want 0", i, ch[i])
		}
	}
}

func TestChannelsIdempotent(t *testing.T) {
	pins, _ := newPins(1)
	m := New1(0, pins[0])
	m.Update(5)

	a := append([]uint32(nil), m.Channels()...)
	b := m.Channels()
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("channel %d changed between reads: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestChannelsAppendDoesNotReachCache(t *testing.T) {
	pins, _ := newPins(1)
	m := New1(0, pins[0])

	ch := m.Channels()
	_ = append(ch, 1234)

	m.Tick()
	m.Tick()
	if err := m.Select(0); err != nil {
		t.Fatal(err)
	}
	var all [MaxChannels]uint32
	copy(all[:], m.values[:])
	if all[2] != 0 {
		t.Errorf("append wrote into the cache: %v", all)
	}
}

func TestTwoChannelScenario(t *testing.T) {
	s0 := &recordPin{}
	m := New1(0, s0)

	m.Tick()
	if !s0.high {
		t.Error("select line should be high at index 1")
	}
	m.Update(42)
	if m.Channels()[1] != 42 {
		t.Errorf("channel 1 = %d, want 42", m.Channels()[1])
	}

	m.Tick()
	if s0.high {
		t.Error("select line should be low at index 0")
	}
	m.Update(7)

	got := m.Channels()
	if len(got) != 2 || got[0] != 7 || got[1] != 42 {
		t.Errorf("Channels() = %v, want [7 42]", got)
	}
}

func TestEightChannelScenario(t *testing.T) {
	pins, _ := newPins(3)
	m := New3(0, pins[0], pins[1], pins[2])

	for i := 0; i < 5; i++ {
		m.Tick()
	}
	if m.Selected() != 5 {
		t.Fatalf("index = %d, want 5", m.Selected())
	}
	if !pins[0].high || pins[1].high || !pins[2].high {
		t.Errorf("levels = (%v, %v, %v), want (true, false, true)", pins[0].high, pins[1].high, pins[2].high)
	}
}

func TestFullCycleRoundTrip(t *testing.T) {
	for lineCount := 1; lineCount <= MaxSelectLines; lineCount++ {
		pins, lines := newPins(lineCount)
		m, _ := NewMultiplexer(0, lines...)

		// Start mid-cycle so the pre-cycle line state is non-trivial.
		m.Tick()
		startIdx, startLevels := m.Selected(), lineLevels(pins)

		for i := 0; i < m.ChannelCount(); i++ {
			m.Tick()
		}
		if m.Selected() != startIdx {
			t.Errorf("lines=%d: index %d after full cycle, want %d", lineCount, m.Selected(), startIdx)
		}
		if got := lineLevels(pins); got != startLevels {
			t.Errorf("lines=%d: levels %03b after full cycle, want %03b", lineCount, got, startLevels)
		}
	}
}

func TestSetErrorsIgnored(t *testing.T) {
	bad := &recordPin{err: errors.New("gpio fault")}
	good := &recordPin{}
	m := New2(0, bad, good)

	m.Tick()
	m.Tick()
	if m.Selected() != 2 {
		t.Errorf("index = %d, want 2", m.Selected())
	}
	if !good.high {
		t.Error("line 1 should still be driven after line 0 failed")
	}
}

func TestUpdateChannel(t *testing.T) {
	pins, _ := newPins(2)
	m := New2(0, pins[0], pins[1])

	if err := m.UpdateChannel(3, 11); err != nil {
		t.Fatalf("UpdateChannel(3): %v", err)
	}
	if m.Channels()[3] != 11 {
		t.Errorf("channel 3 = %d, want 11", m.Channels()[3])
	}
	if err := m.UpdateChannel(4, 1); !errors.Is(err, ErrChannelRange) {
		t.Errorf("UpdateChannel(4): expected ErrChannelRange, got %v", err)
	}
}

func TestSelect(t *testing.T) {
	pins, _ := newPins(3)
	m := New3(0, pins[0], pins[1], pins[2])

	if err := m.Select(6); err != nil {
		t.Fatal(err)
	}
	if m.Selected() != 6 || lineLevels(pins) != 6 {
		t.Errorf("Select(6): index %d, levels %03b", m.Selected(), lineLevels(pins))
	}
	if err := m.Select(8); !errors.Is(err, ErrChannelRange) {
		t.Errorf("Select(8): expected ErrChannelRange, got %v", err)
	}
	if m.Selected() != 6 {
		t.Errorf("failed Select moved the index to %d", m.Selected())
	}
}

func TestSnapshot(t *testing.T) {
	pins, _ := newPins(1)
	m := New1(0, pins[0])
	m.Update(3)
	m.Tick()
	m.Update(4)

	dst := make([]uint32, MaxChannels)
	n := m.Snapshot(dst)
	if n != 2 || dst[0] != 3 || dst[1] != 4 {
		t.Errorf("Snapshot = %d %v", n, dst[:n])
	}

	short := make([]uint32, 1)
	if n := m.Snapshot(short); n != 1 || short[0] != 3 {
		t.Errorf("short Snapshot = %d %v", n, short)
	}
}

func TestAnalogPinIsOwned(t *testing.T) {
	type handle struct{ reads int }
	pins, _ := newPins(1)
	m := New1(handle{}, pins[0])

	m.AnalogPin().reads++
	m.AnalogPin().reads++
	if m.AnalogPin().reads != 2 {
		t.Errorf("AnalogPin mutations lost: %d", m.AnalogPin().reads)
	}
}

// recordBus is a SelectBus that remembers every address written.
type recordBus struct {
	addrs []uint8
	err   error
}

func (b *recordBus) WriteAddress(addr uint8) error {
	b.addrs = append(b.addrs, addr)
	return b.err
}

func TestBusOneWritePerTick(t *testing.T) {
	bus := &recordBus{}
	m, err := NewMultiplexerBus(0, bus, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(bus.addrs) != 0 {
		t.Fatalf("construction wrote %v", bus.addrs)
	}

	if err := m.Select(3); err != nil {
		t.Fatal(err)
	}
	m.Tick()
	want := []uint8{3, 4}
	if len(bus.addrs) != len(want) {
		t.Fatalf("addresses = %v, want %v", bus.addrs, want)
	}
	for i := range want {
		if bus.addrs[i] != want[i] {
			t.Errorf("addresses = %v, want %v", bus.addrs, want)
		}
	}

	bus.addrs = nil
	for k := 1; k <= 2*m.ChannelCount(); k++ {
		m.Tick()
		if len(bus.addrs) != k {
			t.Fatalf("%d ticks made %d writes", k, len(bus.addrs))
		}
		if bus.addrs[k-1] != m.Selected() {
			t.Fatalf("tick %d wrote %d, index %d", k, bus.addrs[k-1], m.Selected())
		}
	}
}

func TestBusErrorsIgnored(t *testing.T) {
	bus := &recordBus{err: errors.New("fifo stalled")}
	m, _ := NewMultiplexerBus(0, bus, 1)
	m.Tick()
	m.Tick()
	if m.Selected() != 0 || len(bus.addrs) != 2 {
		t.Errorf("index %d after %d writes", m.Selected(), len(bus.addrs))
	}
}

func TestNewMultiplexerBusLineCount(t *testing.T) {
	for _, n := range []int{0, 4} {
		if _, err := NewMultiplexerBus(0, &recordBus{}, n); !errors.Is(err, ErrSelectLineCount) {
			t.Errorf("lines=%d: expected ErrSelectLineCount, got %v", n, err)
		}
	}
	if _, err := NewMultiplexerBus[int](0, nil, 2); !errors.Is(err, ErrSelectLineCount) {
		t.Errorf("nil bus: expected ErrSelectLineCount, got %v", err)
	}
	m, err := NewMultiplexerBus(0, &recordBus{}, 2)
	if err != nil || m.ChannelCount() != 4 || m.SelectLines() != 2 {
		t.Errorf("two line bus mux: %v", err)
	}
}

func TestNilLineNotDriven(t *testing.T) {
	s1 := &recordPin{}
	m := New2(0, nil, s1)

	m.Tick()
	m.Tick()
	m.Tick()
	if m.Selected() != 3 || !s1.high {
		t.Errorf("index %d, line 1 high=%v", m.Selected(), s1.high)
	}
}
