//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"

	"muxscan/core"
)

// Raw read of the low word of the 1MHz timer; no latching side effects.
const timerTimeRawL = timerBase + 0x28

var timerRawL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTimeRawL)))

// GetHardwareTime returns the low 32 bits of the microsecond counter.
func GetHardwareTime() uint32 {
	return timerRawL.Get()
}

// UpdateSystemTime copies the hardware counter into the core clock.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
