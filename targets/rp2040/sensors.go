//go:build rp2040 || rp2350

package main

import (
	"machine"

	"tinygo.org/x/drivers/adxl345"

	"ps2key/core"
)

// NewPiezo reads a piezo element on an ADC pin. Readings are scaled to ten
// bits so the threshold matches the classic analogRead range.
func NewPiezo(pin machine.Pin, threshold uint16) *core.ThresholdSensor {
	machine.InitADC()
	adc := machine.ADC{Pin: pin}
	adc.Configure(machine.ADCConfig{})
	return &core.ThresholdSensor{
		Read:      func() uint16 { return adc.Get() >> 6 },
		Threshold: threshold,
	}
}

// NewButton treats a pressed active low button as a knock.
func NewButton(pin machine.Pin) core.Sensor {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return core.SensorFunc(func() bool { return !pin.Get() })
}

// AccelSensor reports a knock when the acceleration magnitude leaves its
// slowly tracked resting value.
type AccelSensor struct {
	dev  adxl345.Device
	rest int32
	core.ThresholdSensor
}

// NewAccelSensor sets up an ADXL345 on bus.
func NewAccelSensor(bus *machine.I2C, sda, scl machine.Pin, threshold uint16) (*AccelSensor, error) {
	err := bus.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       sda,
		SCL:       scl,
	})
	if err != nil {
		return nil, err
	}

	s := &AccelSensor{dev: adxl345.New(bus)}
	s.dev.Configure()
	s.dev.SetRate(adxl345.RATE_100HZ)
	s.dev.SetRange(adxl345.RANGE_2G)
	s.rest = s.magnitude()
	s.ThresholdSensor = core.ThresholdSensor{Read: s.deviation, Threshold: threshold}
	return s, nil
}

func (s *AccelSensor) magnitude() int32 {
	x, y, z := s.dev.ReadRawAcceleration()
	return abs(int32(x)) + abs(int32(y)) + abs(int32(z))
}

func (s *AccelSensor) deviation() uint16 {
	m := s.magnitude()
	d := abs(m - s.rest)
	s.rest += (m - s.rest) / 16
	if d > 0xFFFF {
		d = 0xFFFF
	}
	return uint16(d)
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
