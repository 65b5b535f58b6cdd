//go:build !tinygo

package core

// irqState is a placeholder for interrupt state on regular Go
type irqState uintptr

// disableInterrupts is a no-op on regular Go. Host builds drive the
// scheduler from a single goroutine.
func disableInterrupts() irqState {
	return 0
}

func restoreInterrupts(irqState) {}
