package core

import "sync/atomic"

// TimerFreq is the rate of the system clock in ticks per second. Both
// supported chips expose a free-running 1MHz microsecond counter.
const TimerFreq = 1000000

var systemTicks atomic.Uint32

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return systemTicks.Load()
}

// SetTime sets the current system time. Targets call it from the main loop
// with the hardware counter; tests call it directly.
func SetTime(ticks uint32) {
	systemTicks.Store(ticks)
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// timerIsBefore reports whether a comes before b, tolerating wraparound of
// the 32-bit clock.
func timerIsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// ProcessTimers runs every timer on the default scheduler that is due.
func ProcessTimers() {
	DefaultScheduler.Dispatch(GetTime())
}
