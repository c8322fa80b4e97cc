//go:build rp2040 || rp2350

package main

import (
	"machine"

	"ps2key/protocol"
)

// InitUSB configures the USB CDC port that carries the diagnostic link.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

var diagOutput = protocol.NewScratchOutput()

// NewReporter returns a diagnostic reporter that pushes every frame to USB.
func NewReporter() *protocol.Reporter {
	r := protocol.NewReporter(diagOutput)
	r.SetFlushCallback(writeUSB)
	return r
}

func writeUSB() {
	data := diagOutput.Result()
	if len(data) == 0 {
		return
	}
	// A closed port drops the frame; the host sees a sequence gap
	_, _ = machine.Serial.Write(data)
	diagOutput.Reset()
}
