package core

// Watchdog is fed once per foreground poll.
type Watchdog interface {
	Update()
}

// Indicator is a status output such as an LED.
type Indicator interface {
	Set(on bool)
}

// Config holds the keyboard tunables. Zero fields take their defaults.
type Config struct {
	TickRate     uint32 // tick interrupts per second
	KeyCode      byte   // make code reported for a trigger
	KeyHold      uint32 // ms between make and break
	KeyGap       uint32 // ms between consecutive typed keys
	ParamTimeout uint32 // ms to wait for a command parameter
	ResetDelay   uint32 // ms between the reset ACK and the self-test result
	PowerUpHold  uint32 // ms the indicator stays lit after boot
	Knock        KnockPolicy
}

// DefaultConfig returns the stock keyboard configuration.
func DefaultConfig() Config {
	return Config{
		TickRate:     DefaultTickRate,
		KeyCode:      KeySpace,
		KeyHold:      10,
		KeyGap:       10,
		ParamTimeout: DefaultParamTimeout,
		ResetDelay:   DefaultResetDelay,
		PowerUpHold:  3000,
		Knock:        DefaultKnockPolicy(),
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.TickRate == 0 {
		c.TickRate = def.TickRate
	}
	if c.KeyCode == 0 {
		c.KeyCode = def.KeyCode
	}
	if c.KeyHold == 0 {
		c.KeyHold = def.KeyHold
	}
	if c.KeyGap == 0 {
		c.KeyGap = def.KeyGap
	}
	if c.ParamTimeout == 0 {
		c.ParamTimeout = def.ParamTimeout
	}
	if c.ResetDelay == 0 {
		c.ResetDelay = def.ResetDelay
	}
	if c.PowerUpHold == 0 {
		c.PowerUpHold = def.PowerUpHold
	}
	if c.Knock.Required == 0 {
		c.Knock.Required = def.Knock.Required
	}
	if c.Knock.Window == 0 {
		c.Knock.Window = def.Knock.Window
	}
	if c.Knock.MinInterval == 0 {
		c.Knock.MinInterval = def.Knock.MinInterval
	}
}

// keyPhase tracks one key press through make, hold and break.
type keyPhase uint8

const (
	keyReleased  keyPhase = iota
	keyPressed            // make queued, break timer armed
	keyReleasing          // break owed to the host
	keyBreaking           // break queued, waiting for it to drain
)

const typeAheadSize = 8

// Keyboard ties the protocol engine, the command interpreter and the event
// source together. Tick belongs to the tick interrupt; every other method
// belongs to the foreground loop.
type Keyboard struct {
	cfg    Config
	clock  Clock
	out    Queue
	in     Queue
	sched  *Scheduler
	trace  Trace
	engine *Engine
	interp *Interpreter
	knocks *KnockCounter

	sensor   Sensor
	watchdog Watchdog
	led      Indicator

	key         keyPhase
	keyCode     byte
	keyTimer    Timer
	nextPress   uint32
	breakTarget uint32 // stream position of the last break byte

	typeAhead [typeAheadSize]byte
	typeHead  uint8
	typeLen   uint8

	booting   bool
	bootTimer Timer
	seen      EngineStats
}

// New creates a keyboard on bus.
func New(bus Bus, cfg Config) *Keyboard {
	cfg.applyDefaults()
	k := &Keyboard{cfg: cfg}
	k.sched = NewScheduler(&k.clock)
	k.engine = NewEngine(bus, &k.out, &k.in, &k.clock, cfg.TickRate)
	k.interp = NewInterpreter(&k.in, &k.out, &k.clock, k.sched, &k.trace)
	k.interp.ParamTimeout = cfg.ParamTimeout
	k.interp.ResetDelay = cfg.ResetDelay
	k.interp.OnDiscard(k.outputDiscarded)
	k.knocks = NewKnockCounter(cfg.Knock)

	k.keyTimer.Handler = func(*Timer) uint8 {
		if k.key == keyPressed {
			k.key = keyReleasing
		}
		return SF_DONE
	}
	k.bootTimer.Handler = func(*Timer) uint8 {
		k.booting = false
		k.setIndicator(false)
		return SF_DONE
	}
	return k
}

// SetSensor sets the trigger source.
func (k *Keyboard) SetSensor(s Sensor) { k.sensor = s }

// SetWatchdog sets the watchdog fed by Poll.
func (k *Keyboard) SetWatchdog(w Watchdog) { k.watchdog = w }

// SetIndicator sets the status output.
func (k *Keyboard) SetIndicator(i Indicator) { k.led = i }

// Tick runs one protocol engine tick. Call it from the tick interrupt.
func (k *Keyboard) Tick() {
	k.engine.Tick()
}

// Start lights the indicator for the power-up period and records the boot.
// Sensor triggers are ignored until the period ends; host commands are
// served right away.
func (k *Keyboard) Start() {
	k.trace.Record(EvtBoot, k.clock.Now(), k.cfg.TickRate)
	k.booting = true
	k.setIndicator(true)
	k.sched.After(&k.bootTimer, k.cfg.PowerUpHold)
}

// Poll runs one pass of the foreground loop. It never blocks.
func (k *Keyboard) Poll() {
	if k.watchdog != nil {
		k.watchdog.Update()
	}

	k.checkLink()
	k.interp.Poll()
	k.sched.Dispatch()
	k.serviceKey()
	k.sampleSensor()
}

// checkLink recovers from an interrupted transfer and mirrors engine
// counters into the trace.
func (k *Keyboard) checkLink() {
	if k.engine.LinkError() != LinkOK {
		n := k.out.Len()
		k.out.Clear()
		if n > 0 {
			k.trace.Record(EvtOutputCleared, k.clock.Now(), uint32(n))
		}
		k.outputDiscarded()
		k.engine.ClearLinkError()
	}

	st := k.engine.Stats()
	now := k.clock.Now()
	if st.Interrupted != k.seen.Interrupted {
		k.trace.Record(EvtInterrupted, now, st.Interrupted)
	}
	if st.Resends != k.seen.Resends {
		k.trace.Record(EvtResend, now, st.Resends)
	}
	if st.AckTimeouts != k.seen.AckTimeouts {
		k.trace.Record(EvtAckTimeout, now, st.AckTimeouts)
	}
	if st.InboundDrops != k.seen.InboundDrops {
		k.trace.Record(EvtInboundDrop, now, st.InboundDrops)
	}
	k.seen = st
}

// outputDiscarded keeps the host's view of the key consistent after queued
// output was thrown away: a break that may have been lost is owed again.
func (k *Keyboard) outputDiscarded() {
	if k.key == keyBreaking && !k.breakSent() {
		k.key = keyReleasing
	}
}

// breakSent reports whether both break bytes have completed on the wire.
func (k *Keyboard) breakSent() bool {
	_, done := k.engine.Position()
	return int32(done-k.breakTarget) >= 0
}

// queueBreak enqueues the break code and records where its last byte sits
// in the outbound stream. The tick is masked so that a byte taken in between
// cannot be counted twice or not at all.
func (k *Keyboard) queueBreak() {
	state := disableInterrupts()
	k.out.Enqueue(BreakPrefix)
	k.out.Enqueue(k.keyCode)
	taken, _ := k.engine.Position()
	k.breakTarget = taken + uint32(k.out.Len())
	restoreInterrupts(state)
}

func (k *Keyboard) serviceKey() {
	switch k.key {
	case keyReleasing:
		if k.interp.Busy() || !k.in.IsEmpty() || k.out.Free() < 2 {
			return
		}
		k.queueBreak()
		k.trace.Record(EvtKeyBreak, k.clock.Now(), uint32(k.keyCode))
		k.key = keyBreaking

	case keyBreaking:
		if k.breakSent() {
			k.key = keyReleased
			k.nextPress = k.clock.Deadline(k.cfg.KeyGap)
		}

	case keyReleased:
		if !k.interp.Scanning() {
			k.typeLen = 0
			return
		}
		if k.typeLen > 0 && k.clock.Expired(k.nextPress) {
			code := k.typeAhead[k.typeHead]
			if k.Press(code) {
				k.typeHead = (k.typeHead + 1) % typeAheadSize
				k.typeLen--
			}
		}
	}
}

func (k *Keyboard) sampleSensor() {
	if k.sensor == nil || k.booting {
		return
	}
	if !k.interp.Scanning() {
		k.knocks.Reset()
		return
	}
	if k.key != keyReleased || k.typeLen > 0 || k.interp.Busy() ||
		!k.out.IsEmpty() || !k.in.IsEmpty() || k.engine.Sending() {
		return
	}
	now := k.clock.Now()
	if k.knocks.Sample(k.sensor.Active(), now) {
		k.trace.Record(EvtTrigger, now, uint32(k.knocks.Policy().Required))
		k.Press(k.cfg.KeyCode)
	}
}

// Press reports one key: the make code now and the break code KeyHold
// milliseconds later. It returns false while scanning is disabled, another
// key is in flight or the outbound queue cannot take the make code.
func (k *Keyboard) Press(code byte) bool {
	if !k.interp.Scanning() || k.key != keyReleased || k.interp.Busy() || !k.in.IsEmpty() {
		return false
	}
	if !k.out.Enqueue(code) {
		return false
	}
	k.keyCode = code
	k.key = keyPressed
	k.trace.Record(EvtKeyMake, k.clock.Now(), uint32(code))
	k.sched.After(&k.keyTimer, k.cfg.KeyHold)
	return true
}

// TypeHex queues the two hex digit keys spelling v. It returns false when
// the type-ahead buffer is full.
func (k *Keyboard) TypeHex(v byte) bool {
	if int(k.typeLen)+2 > typeAheadSize {
		return false
	}
	k.typeIn(HexScanCode(v >> 4))
	k.typeIn(HexScanCode(v))
	return true
}

func (k *Keyboard) typeIn(code byte) {
	k.typeAhead[(k.typeHead+k.typeLen)%typeAheadSize] = code
	k.typeLen++
}

// KeyIdle reports whether no key press is in flight or waiting.
func (k *Keyboard) KeyIdle() bool {
	return k.key == keyReleased && k.typeLen == 0
}

func (k *Keyboard) setIndicator(on bool) {
	if k.led != nil {
		k.led.Set(on)
	}
}

// Engine returns the protocol engine.
func (k *Keyboard) Engine() *Engine { return k.engine }

// Interpreter returns the host command interpreter.
func (k *Keyboard) Interpreter() *Interpreter { return k.interp }

// Clock returns the millisecond clock advanced by the engine.
func (k *Keyboard) Clock() *Clock { return &k.clock }

// Trace returns the foreground event trace.
func (k *Keyboard) Trace() *Trace { return &k.trace }

// Outbound returns the keyboard to host queue.
func (k *Keyboard) Outbound() *Queue { return &k.out }

// Inbound returns the host to keyboard queue.
func (k *Keyboard) Inbound() *Queue { return &k.in }

// Config returns the effective configuration.
func (k *Keyboard) Config() Config { return k.cfg }
