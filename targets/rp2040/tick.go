//go:build rp2040 || rp2350

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

const (
	tickProgramCycles = 64 // per square wave period
	tickPIOOrigin     = 0
	tickSM            = 0
)

// buildTickProgram toggles the SET pin every 32 cycles.
func buildTickProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Set(rp2pio.SetDestPins, 1).Delay(31).Encode(), // 0: set pins, 1 [31]
		asm.Set(rp2pio.SetDestPins, 0).Delay(31).Encode(), // 1: set pins, 0 [31]
		// .wrap
	}
}

// tickClkDiv returns the divider that makes both edges of the wave arrive
// rate times a second, as a 16.8 fixed point value.
func tickClkDiv(cpuHz, rate uint32) (whole uint16, frac uint8) {
	edgeCycles := uint64(tickProgramCycles / 2)
	div256 := uint64(cpuHz) * 256 / (edgeCycles * uint64(rate))
	return uint16(div256 >> 8), uint8(div256)
}

// StartTick runs the square wave on pin and calls tick on every edge.
func StartTick(pin machine.Pin, rate uint32, tick func()) error {
	pio := rp2pio.PIO1
	sm := pio.StateMachine(tickSM)
	sm.TryClaim()

	program := buildTickProgram()
	offset, err := pio.AddProgram(program, tickPIOOrigin)
	if err != nil {
		return err
	}

	pin.Configure(machine.PinConfig{Mode: pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(pin, 1)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	whole, frac := tickClkDiv(machine.CPUFrequency(), rate)
	cfg.SetClkDivIntFrac(whole, frac)

	sm.Init(offset, cfg)
	sm.SetPindirsConsecutive(pin, 1, true)
	sm.SetPinsConsecutive(pin, 1, false)

	err = pin.SetInterrupt(machine.PinRising|machine.PinFalling, func(machine.Pin) {
		tick()
	})
	if err != nil {
		return err
	}

	sm.SetEnabled(true)
	return nil
}
