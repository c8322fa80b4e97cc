//go:build rp2040 || rp2350

// Firmware for an RP2040 board that acts as a one-key PS/2 keyboard. A knock
// sensor triggers a space key; the host's keyboard commands are answered.
package main

import (
	"machine"
	"time"

	"ps2key/core"
)

// Board wiring
const (
	clockPin  = machine.GPIO2  // PS/2 CLK, open drain
	dataPin   = machine.GPIO3  // PS/2 DATA, open drain
	tickPin   = machine.GPIO15 // PIO square wave, edges raise the tick interrupt
	buttonPin = machine.GPIO14 // active low push button
	knockADC  = machine.ADC0   // piezo on GPIO26
	i2cSDA    = machine.GPIO4
	i2cSCL    = machine.GPIO5
)

// Sensor selection
const (
	sensorPiezo = iota
	sensorButton
	sensorAccel
	sensorEither // button or piezo
)

const (
	tickRate          = core.DefaultTickRate
	knockSensor       = sensorEither
	knockThreshold    = core.DefaultThreshold
	accelThreshold    = 40 // raw counts above the resting magnitude
	watchdogTimeoutMS = 1000
)

var (
	kb     *core.Keyboard
	panics uint32
)

func main() {
	// Clear any watchdog left running across a reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	InitDebugUART()
	core.DebugPrintln("[PS2] boot")

	core.SetBusDriver(NewPinBus(clockPin, dataPin))
	kb = core.New(core.MustBus(), core.Config{TickRate: tickRate})
	core.DebugPrintln("[PS2] commands:\n" + kb.Interpreter().Registry().GetDictionary())
	kb.SetIndicator(NewLED(machine.LED))
	kb.SetWatchdog(hardwareWatchdog{})
	kb.SetSensor(newSensor(knockSensor))
	kb.Trace().SetSink(NewReporter().Report)

	if err := StartTick(tickPin, tickRate, kb.Tick); err != nil {
		core.DebugPrintln("[PS2] tick start failed: " + err.Error())
		return
	}

	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogTimeoutMS}); err == nil {
		machine.Watchdog.Start()
	}
	kb.Start()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					panics++
					kb.Trace().Dump()
				}
			}()
			kb.Poll()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

func newSensor(kind int) core.Sensor {
	switch kind {
	case sensorButton:
		return NewButton(buttonPin)
	case sensorEither:
		return core.AnySensor{NewButton(buttonPin), NewPiezo(knockADC, knockThreshold)}
	case sensorAccel:
		s, err := NewAccelSensor(machine.I2C0, i2cSDA, i2cSCL, accelThreshold)
		if err != nil {
			core.DebugPrintln("[PS2] accelerometer: " + err.Error())
			return NewPiezo(knockADC, knockThreshold)
		}
		return s
	default:
		return NewPiezo(knockADC, knockThreshold)
	}
}

// hardwareWatchdog feeds the RP2040 watchdog once per foreground poll.
type hardwareWatchdog struct{}

func (hardwareWatchdog) Update() {
	machine.Watchdog.Update()
}
