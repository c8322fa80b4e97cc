// Package sim provides a software PS/2 bus and a model of the PC side
// keyboard controller, stepped in lockstep with the keyboard tick.
package sim

import "ps2key/core"

// line is one open-drain wire. Each side either holds it low or lets the
// pull-up win.
type line struct {
	device bool
	host   bool
}

func (l line) high() bool {
	return !l.device && !l.host
}

// Bus is a wired-AND clock and data pair.
type Bus struct {
	clock line
	data  line
}

// NewBus returns a bus with both lines released.
func NewBus() *Bus {
	return &Bus{}
}

// Device returns the keyboard's view of the bus.
func (b *Bus) Device() core.Bus {
	return deviceSide{b}
}

// ClockHigh reports the clock level.
func (b *Bus) ClockHigh() bool { return b.clock.high() }

// DataHigh reports the data level.
func (b *Bus) DataHigh() bool { return b.data.high() }

// HostClock holds or releases the clock from the host side.
func (b *Bus) HostClock(hold bool) { b.clock.host = hold }

// HostData holds or releases the data line from the host side.
func (b *Bus) HostData(hold bool) { b.data.host = hold }

// DeviceHoldsClock reports whether the keyboard drives the clock low.
func (b *Bus) DeviceHoldsClock() bool { return b.clock.device }

// DeviceHoldsData reports whether the keyboard drives the data line low.
func (b *Bus) DeviceHoldsData() bool { return b.data.device }

type deviceSide struct {
	b *Bus
}

func (d deviceSide) ReleaseClock()   { d.b.clock.device = false }
func (d deviceSide) HoldClock()      { d.b.clock.device = true }
func (d deviceSide) ReleaseData()    { d.b.data.device = false }
func (d deviceSide) HoldData()       { d.b.data.device = true }
func (d deviceSide) ClockHigh() bool { return d.b.clock.high() }
func (d deviceSide) DataHigh() bool  { return d.b.data.high() }
