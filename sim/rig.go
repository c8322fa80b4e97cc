package sim

import "ps2key/core"

// Rig wires a keyboard to a simulated host over a simulated bus. Each Step
// is one tick: the keyboard's tick runs, then the host reacts, then the
// keyboard's foreground loop gets a poll every PollEvery ticks.
type Rig struct {
	Bus      *Bus
	Host     *Host
	Keyboard *core.Keyboard
	Sensor   *Switch
	Watchdog *Watchdog
	LED      *LED

	PollEvery int
	ticks     int
}

// NewRig builds a keyboard with cfg and attaches the host model and
// simulated peripherals.
func NewRig(cfg core.Config) *Rig {
	bus := NewBus()
	r := &Rig{
		Bus:       bus,
		Host:      NewHost(bus),
		Keyboard:  core.New(bus.Device(), cfg),
		Sensor:    &Switch{},
		Watchdog:  &Watchdog{},
		LED:       &LED{},
		PollEvery: 1,
	}
	r.Keyboard.SetSensor(r.Sensor)
	r.Keyboard.SetWatchdog(r.Watchdog)
	r.Keyboard.SetIndicator(r.LED)
	return r
}

// Step runs one tick.
func (r *Rig) Step() {
	r.Keyboard.Tick()
	r.Host.Step()
	r.ticks++
	if r.PollEvery <= 1 || r.ticks%r.PollEvery == 0 {
		r.Keyboard.Poll()
	}
}

// Run runs n ticks.
func (r *Rig) Run(n int) {
	for i := 0; i < n; i++ {
		r.Step()
	}
}

// RunMillis runs until the keyboard clock has advanced by ms.
func (r *Rig) RunMillis(ms uint32) {
	clock := r.Keyboard.Clock()
	until := clock.Deadline(ms)
	for !clock.Expired(until) {
		r.Step()
	}
}

// RunUntil steps until cond holds or maxTicks pass, and reports whether
// cond was met.
func (r *Rig) RunUntil(cond func() bool, maxTicks int) bool {
	for i := 0; i < maxTicks; i++ {
		if cond() {
			return true
		}
		r.Step()
	}
	return cond()
}

// Settle runs until the host is idle, the keyboard has nothing queued or
// pending, or maxTicks pass.
func (r *Rig) Settle(maxTicks int) bool {
	kb := r.Keyboard
	return r.RunUntil(func() bool {
		return !r.Host.Busy() && kb.Outbound().IsEmpty() && kb.Inbound().IsEmpty() &&
			kb.KeyIdle() && !kb.Interpreter().Busy() && kb.Engine().State() == core.StateIdle
	}, maxTicks)
}

// Knock holds the sensor active for ms milliseconds.
func (r *Rig) Knock(ms uint32) {
	r.Sensor.Set(true)
	r.RunMillis(ms)
	r.Sensor.Set(false)
}

// Ticks returns the number of ticks run.
func (r *Rig) Ticks() int {
	return r.ticks
}

// Switch is a sensor controlled by the test.
type Switch struct {
	on bool
}

func (s *Switch) Set(on bool) { s.on = on }

func (s *Switch) Active() bool { return s.on }

// Watchdog counts feeds.
type Watchdog struct {
	Feeds int
}

func (w *Watchdog) Update() { w.Feeds++ }

// LED records indicator changes.
type LED struct {
	On      bool
	Changes int
}

func (l *LED) Set(on bool) {
	if l.On != on {
		l.Changes++
	}
	l.On = on
}
