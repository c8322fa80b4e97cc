//go:build !tinygo

package core

// irqState stands in for the saved interrupt mask on regular Go.
type irqState uintptr

// disableInterrupts is a no-op on regular Go; host builds have no tick ISR.
func disableInterrupts() irqState {
	return 0
}

// restoreInterrupts is a no-op on regular Go.
func restoreInterrupts(state irqState) {}
