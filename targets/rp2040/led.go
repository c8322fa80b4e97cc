//go:build rp2040 || rp2350

package main

import "machine"

// LED is the power-up status indicator.
type LED struct {
	pin machine.Pin
}

func NewLED(pin machine.Pin) *LED {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return &LED{pin: pin}
}

func (l *LED) Set(on bool) {
	l.pin.Set(on)
}
