package core

import "sync/atomic"

// State is the bit-level transfer state of the protocol engine.
type State uint8

const (
	StateIdle State = iota
	StateInhibited
	StateSendBit
	StateSendParity
	StateSendStop
	StateReceiveBit
	StateReceiveParity
	StateReceiveAck
	StateReceiveEnd
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInhibited:
		return "inhibited"
	case StateSendBit:
		return "send_bit"
	case StateSendParity:
		return "send_parity"
	case StateSendStop:
		return "send_stop"
	case StateReceiveBit:
		return "receive_bit"
	case StateReceiveParity:
		return "receive_parity"
	case StateReceiveAck:
		return "receive_ack"
	case StateReceiveEnd:
		return "receive_end"
	default:
		return "unknown"
	}
}

// LinkError is the sticky error latched by the tick and cleared by the
// foreground.
type LinkError uint32

const (
	LinkOK LinkError = iota
	LinkInterrupted
)

// Engine timing, in PS/2 clock periods.
const (
	// IdleSettleClocks is how long both lines must read high before the
	// engine starts a new outbound frame.
	IdleSettleClocks = 3

	// AckWaitClocks bounds how long the engine keeps clocking while the
	// host has not released data for the stop bit.
	AckWaitClocks = 4
)

// Tick phases within one PS/2 clock period.
const (
	phaseFall = iota
	phaseLow
	phaseRise
	phaseHigh
)

// EngineStats counts link activity since the engine was created.
type EngineStats struct {
	BytesSent     uint32
	BytesReceived uint32
	Resends       uint32
	ParityErrors  uint32
	Interrupted   uint32
	AckTimeouts   uint32
	InboundDrops  uint32
}

// Engine is the PS/2 device-side wire protocol. Tick must be called at
// TicksPerClock times the bus clock rate from a single interrupt context.
// Everything except the queues, the link error and the stats belongs to
// that context.
type Engine struct {
	bus      Bus
	out      *Queue
	in       *Queue
	clock    *Clock
	ms       tickDivider
	settle   uint8
	ackWait  uint8
	phase    uint8
	state    State
	genClock bool
	bits     uint8
	parity   uint8
	shift    byte

	linkErr uint32
	stats   EngineStats

	// Outbound stream positions: bytes taken from the queue, the position
	// of the last byte that completed on the wire, and whether a byte is
	// on the wire now.
	taken   uint32
	done    uint32
	sending uint32
}

// NewEngine creates an engine that sends from out and receives into in.
// When clock is non-nil it is advanced once per millisecond of ticks.
func NewEngine(bus Bus, out, in *Queue, clock *Clock, tickRate uint32) *Engine {
	if tickRate == 0 {
		tickRate = DefaultTickRate
	}
	e := &Engine{
		bus:   bus,
		out:   out,
		in:    in,
		clock: clock,
		ms:    tickDivider{rate: tickRate},
	}
	bus.ReleaseClock()
	bus.ReleaseData()
	return e
}

// Tick advances the engine by one quarter of a PS/2 clock period.
func (e *Engine) Tick() {
	if e.clock != nil && e.ms.tick() {
		e.clock.Advance(1)
	}

	switch e.phase {
	case phaseFall:
		if e.genClock {
			e.bus.HoldClock()
		}
	case phaseRise:
		e.bus.ReleaseClock()
	case phaseHigh:
		e.step()
	}
	e.phase = (e.phase + 1) % TicksPerClock
}

// step runs the state logic once per clock period while the clock is high.
func (e *Engine) step() {
	switch e.state {
	case StateIdle:
		e.idle()

	case StateInhibited:
		e.genClock = false
		if !e.bus.ClockHigh() {
			return
		}
		if e.bus.DataHigh() {
			e.enterIdle()
			return
		}
		e.beginReceive()

	case StateSendBit:
		if e.hostTookOver() {
			return
		}
		if e.shift&1 != 0 {
			e.bus.ReleaseData()
			e.parity++
		} else {
			e.bus.HoldData()
		}
		e.shift >>= 1
		e.bits--
		if e.bits == 0 {
			e.state = StateSendParity
		}

	case StateSendParity:
		if e.hostTookOver() {
			return
		}
		if e.parity&1 == 0 {
			e.bus.ReleaseData()
		} else {
			e.bus.HoldData()
		}
		e.state = StateSendStop

	case StateSendStop:
		// genClock stays set so the host still gets the stop bit's edge;
		// idle stops the clock one period later.
		e.bus.ReleaseData()
		atomic.AddUint32(&e.stats.BytesSent, 1)
		atomic.StoreUint32(&e.done, atomic.LoadUint32(&e.taken))
		atomic.StoreUint32(&e.sending, 0)
		e.settle = 0
		e.state = StateIdle

	case StateReceiveBit:
		if !e.bus.ClockHigh() {
			e.abortReceive()
			return
		}
		e.shift >>= 1
		if e.bus.DataHigh() {
			e.shift |= 0x80
			e.parity++
		}
		e.bits--
		if e.bits == 0 {
			e.state = StateReceiveParity
		}

	case StateReceiveParity:
		if !e.bus.ClockHigh() {
			e.abortReceive()
			return
		}
		if e.bus.DataHigh() {
			e.parity++
		}
		e.ackWait = 0
		e.state = StateReceiveAck

	case StateReceiveAck:
		if !e.bus.DataHigh() {
			// Host has not released data for the stop bit yet.
			e.ackWait++
			if e.ackWait >= AckWaitClocks {
				atomic.AddUint32(&e.stats.AckTimeouts, 1)
				e.push(ReceiveError)
				e.enterIdle()
			}
			return
		}
		e.bus.HoldData()
		e.deliver()
		e.state = StateReceiveEnd

	case StateReceiveEnd:
		e.bus.ReleaseData()
		e.enterIdle()
		e.idle()
	}
}

// idle stops the clock and starts the next outbound frame once the bus has
// settled.
func (e *Engine) idle() {
	e.genClock = false
	if !e.bus.ClockHigh() {
		e.state = StateInhibited
		return
	}
	if !e.bus.DataHigh() {
		// Request to send seen without the clock inhibit.
		e.beginReceive()
		return
	}
	if e.settle < IdleSettleClocks {
		e.settle++
		return
	}
	if e.LinkError() != LinkOK {
		return
	}
	b, ok := e.out.Dequeue()
	if !ok {
		return
	}
	atomic.AddUint32(&e.taken, 1)
	atomic.StoreUint32(&e.sending, 1)
	e.bus.HoldData() // start bit
	e.shift = b
	e.bits = 8
	e.parity = 0
	e.genClock = true
	e.state = StateSendBit
}

func (e *Engine) enterIdle() {
	e.genClock = false
	e.settle = 0
	e.bits = 0
	e.parity = 0
	e.shift = 0
	e.state = StateIdle
}

func (e *Engine) beginReceive() {
	e.shift = 0
	e.bits = 8
	e.parity = 0
	e.genClock = true
	e.state = StateReceiveBit
}

// hostTookOver checks for the host holding the clock low while a byte is
// going out. The byte is lost and the link error is latched.
func (e *Engine) hostTookOver() bool {
	if e.bus.ClockHigh() {
		return false
	}
	e.bus.ReleaseData()
	e.genClock = false
	atomic.StoreUint32(&e.sending, 0)
	atomic.StoreUint32(&e.linkErr, uint32(LinkInterrupted))
	atomic.AddUint32(&e.stats.Interrupted, 1)
	e.state = StateInhibited
	return true
}

// abortReceive drops a partial inbound frame when the host pulls the clock.
func (e *Engine) abortReceive() {
	e.genClock = false
	e.state = StateInhibited
}

// deliver hands a received byte to the foreground. A valid resend request is
// served here by restoring the last byte sent.
func (e *Engine) deliver() {
	if e.parity&1 == 0 {
		atomic.AddUint32(&e.stats.ParityErrors, 1)
		e.push(ReceiveError)
		return
	}
	atomic.AddUint32(&e.stats.BytesReceived, 1)
	if e.shift == CmdResend {
		if e.out.Unqueue() {
			// The repeated byte keeps its stream position.
			atomic.AddUint32(&e.taken, ^uint32(0))
		}
		atomic.AddUint32(&e.stats.Resends, 1)
		return
	}
	e.push(e.shift)
}

func (e *Engine) push(b byte) {
	if !e.in.Enqueue(b) {
		atomic.AddUint32(&e.stats.InboundDrops, 1)
	}
}

// LinkError returns the latched link error.
func (e *Engine) LinkError() LinkError {
	return LinkError(atomic.LoadUint32(&e.linkErr))
}

// ClearLinkError re-enables transmission after the foreground has handled
// an interrupted transfer.
func (e *Engine) ClearLinkError() {
	atomic.StoreUint32(&e.linkErr, uint32(LinkOK))
}

// State returns the current transfer state. Only meaningful when the caller
// runs in, or is synchronized with, the tick context.
func (e *Engine) State() State {
	return e.state
}

// Position returns how many bytes have been taken from the outbound queue
// and the position of the last byte that completed on the wire. The byte
// taken nth has position n. Call it with the tick masked when the two
// values must agree with the queue length.
func (e *Engine) Position() (taken, done uint32) {
	return atomic.LoadUint32(&e.taken), atomic.LoadUint32(&e.done)
}

// Sending reports whether a byte is on the wire.
func (e *Engine) Sending() bool {
	return atomic.LoadUint32(&e.sending) != 0
}

// Stats returns a snapshot of the link counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		BytesSent:     atomic.LoadUint32(&e.stats.BytesSent),
		BytesReceived: atomic.LoadUint32(&e.stats.BytesReceived),
		Resends:       atomic.LoadUint32(&e.stats.Resends),
		ParityErrors:  atomic.LoadUint32(&e.stats.ParityErrors),
		Interrupted:   atomic.LoadUint32(&e.stats.Interrupted),
		AckTimeouts:   atomic.LoadUint32(&e.stats.AckTimeouts),
		InboundDrops:  atomic.LoadUint32(&e.stats.InboundDrops),
	}
}
