package core

// Bus is the device side of the two open-drain PS/2 lines. Holding a line
// drives it low; releasing it lets the pull-up and the host decide the level.
// Every method must be safe to call from the tick interrupt.
type Bus interface {
	// ReleaseClock stops driving the clock line.
	ReleaseClock()

	// HoldClock drives the clock line low.
	HoldClock()

	// ReleaseData stops driving the data line.
	ReleaseData()

	// HoldData drives the data line low.
	HoldData()

	// ClockHigh reports the wired level of the clock line.
	ClockHigh() bool

	// DataHigh reports the wired level of the data line.
	DataHigh() bool
}

// Global bus registered by the target.
var busDriver Bus

// SetBusDriver is called by target-specific code to register its bus.
func SetBusDriver(b Bus) {
	busDriver = b
}

// MustBus returns the registered bus or panics if missing.
func MustBus() Bus {
	if busDriver == nil {
		panic("PS/2 bus driver not configured")
	}
	return busDriver
}
