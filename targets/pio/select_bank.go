//go:build rp2040 || rp2350

// Package pio drives multiplexer select lines from a PIO state machine so a
// whole channel address changes in one write instead of one GPIO at a time.
package pio

import (
	"errors"
	"machine"

	"muxscan/core"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// BankWidth is the number of consecutive pins a select bank owns.
const BankWidth = 3

var ErrNoStateMachine = errors.New("no free PIO state machine")

// RP2040/RP2350 have two PIO blocks with four state machines each
var smAllocations = [2][4]bool{}

// buildSelectProgram emits the address word's low bits onto the pins.
//
//	pull block
//	out pins, 3
func buildSelectProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		asm.Pull(false, true).Encode(),
		asm.Out(rp2pio.OutDestPins, BankWidth).Encode(),
	}
}

// SelectBank owns BankWidth consecutive GPIOs starting at Base.
type SelectBank struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	Base   machine.Pin
	shadow uint32
}

// NewSelectBank claims a free state machine, loads the select program and
// drives all bank pins low.
func NewSelectBank(base machine.Pin) (*SelectBank, error) {
	pioNum, smNum, ok := allocateSM()
	if !ok {
		return nil, ErrNoStateMachine
	}
	hw := rp2pio.PIO0
	if pioNum == 1 {
		hw = rp2pio.PIO1
	}
	b := &SelectBank{pio: hw, sm: hw.StateMachine(smNum), Base: base}
	b.sm.TryClaim()

	program := buildSelectProgram()
	offset, err := b.pio.AddProgram(program, -1)
	if err != nil {
		smAllocations[pioNum][smNum] = false
		return nil, err
	}

	for i := 0; i < BankWidth; i++ {
		(base + machine.Pin(i)).Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(base, BankWidth)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1, 0)

	b.sm.Init(offset, cfg)
	b.sm.SetPindirsConsecutive(base, BankWidth, true)
	b.sm.SetPinsConsecutive(base, BankWidth, false)
	b.sm.SetEnabled(true)
	return b, nil
}

// Owns reports whether pin is one of the bank's outputs.
func (b *SelectBank) Owns(pin core.GPIOPin) bool {
	return pin >= core.GPIOPin(b.Base) && pin < core.GPIOPin(b.Base)+BankWidth
}

// Set changes one bank pin and pushes the new address word.
func (b *SelectBank) Set(pin core.GPIOPin, high bool) {
	bit := uint32(1) << (uint32(pin) - uint32(b.Base))
	if high {
		b.shadow |= bit
	} else {
		b.shadow &^= bit
	}
	b.Write(b.shadow)
}

// Write pushes a full address word; bit i lands on Base+i.
func (b *SelectBank) Write(addr uint32) {
	b.shadow = addr & (1<<BankWidth - 1)
	for b.sm.IsTxFIFOFull() {
	}
	b.sm.TxPut(b.shadow)
}

// WriteAddress implements core.SelectBus: every bank pin changes in the
// same PIO instruction.
func (b *SelectBank) WriteAddress(addr uint8) error {
	b.Write(uint32(addr))
	return nil
}

// Covers reports whether pins, line 0 first, start at Base and are
// consecutive, so an address word lines up with them.
func (b *SelectBank) Covers(pins ...core.GPIOPin) bool {
	if len(pins) == 0 || len(pins) > BankWidth {
		return false
	}
	for i, pin := range pins {
		if pin != core.GPIOPin(b.Base)+core.GPIOPin(i) {
			return false
		}
	}
	return true
}

// Get returns the last level written to pin.
func (b *SelectBank) Get(pin core.GPIOPin) bool {
	return b.shadow&(1<<(uint32(pin)-uint32(b.Base))) != 0
}

func allocateSM() (uint8, uint8, bool) {
	for p := range smAllocations {
		for s := range smAllocations[p] {
			if !smAllocations[p][s] {
				smAllocations[p][s] = true
				return uint8(p), uint8(s), true
			}
		}
	}
	return 0, 0, false
}
