//go:build rp2040 || rp2350

package main

import "machine"

// PinBus drives the PS/2 lines as open drain outputs: released lines are
// inputs pulled up, held lines are outputs driven low.
type PinBus struct {
	clock machine.Pin
	data  machine.Pin
}

func NewPinBus(clock, data machine.Pin) *PinBus {
	b := &PinBus{clock: clock, data: data}
	b.ReleaseClock()
	b.ReleaseData()
	return b
}

func release(p machine.Pin) {
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
}

func hold(p machine.Pin) {
	p.Low()
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
}

func (b *PinBus) ReleaseClock()   { release(b.clock) }
func (b *PinBus) HoldClock()      { hold(b.clock) }
func (b *PinBus) ReleaseData()    { release(b.data) }
func (b *PinBus) HoldData()       { hold(b.data) }
func (b *PinBus) ClockHigh() bool { return b.clock.Get() }
func (b *PinBus) DataHigh() bool  { return b.data.Get() }
