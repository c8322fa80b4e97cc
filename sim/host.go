package sim

import (
	"errors"
	"fmt"

	"ps2key/core"
)

// Host timing, in ticks.
const (
	DefaultRequestTicks = 6    // clock inhibit before a request to send
	DefaultTimeoutTicks = 4000 // give up on a stalled transfer
)

var (
	ErrNoAck       = errors.New("device did not acknowledge")
	ErrSendTimeout = errors.New("device stopped clocking")
)

// Frame is one byte received from the keyboard, with its raw bits in wire
// order: start, eight data bits LSB first, parity, stop.
type Frame struct {
	Bits     [11]byte
	Value    byte
	ParityOK bool
	FramedOK bool
}

type txItem struct {
	b         byte
	badParity bool
}

type hostMode uint8

const (
	hostIdle hostMode = iota
	hostInhibit
	hostRequest
	hostSending
	hostAwaitRelease
)

// Host models the PC keyboard controller. It samples device bits on falling
// clock edges and sends host bytes with the request-to-send sequence.
type Host struct {
	bus       *Bus
	prevClock bool
	mode      hostMode

	rx     [11]byte
	rxN    int
	frames []Frame

	txQueue []txItem
	txByte  byte
	txBad   bool
	edges   int
	ticks   int
	errs    []error
	inhibit bool
	sent    []byte

	// ResendOnError makes the host answer a bad frame with a resend request.
	ResendOnError bool
	// RequestTicks is how long the clock is held before a transmission.
	RequestTicks int
	// TimeoutTicks bounds each transmission.
	TimeoutTicks int
}

// NewHost attaches a host model to bus.
func NewHost(bus *Bus) *Host {
	return &Host{
		bus:          bus,
		prevClock:    true,
		RequestTicks: DefaultRequestTicks,
		TimeoutTicks: DefaultTimeoutTicks,
	}
}

// Send queues bytes for transmission to the keyboard.
func (h *Host) Send(bs ...byte) {
	for _, b := range bs {
		h.txQueue = append(h.txQueue, txItem{b: b})
	}
}

// SendBadParity queues a byte sent with the wrong parity bit.
func (h *Host) SendBadParity(b byte) {
	h.txQueue = append(h.txQueue, txItem{b: b, badParity: true})
}

// Inhibit holds or releases the clock line, as a host does to take the bus.
func (h *Host) Inhibit(on bool) {
	h.inhibit = on
}

// Step advances the host by one tick. Call it after every keyboard tick.
func (h *Host) Step() {
	clk := h.bus.ClockHigh()
	fell := h.prevClock && !clk
	h.prevClock = clk

	switch h.mode {
	case hostIdle:
		if h.inhibit {
			h.bus.HostClock(true)
			h.rxN = 0
			h.mode = hostInhibit
			return
		}
		if fell {
			h.receiveBit(h.bus.DataHigh())
			return
		}
		if len(h.txQueue) > 0 && h.rxN == 0 && clk && h.bus.DataHigh() {
			h.txByte = h.txQueue[0].b
			h.txBad = h.txQueue[0].badParity
			h.txQueue = h.txQueue[1:]
			h.bus.HostClock(true)
			h.ticks = 0
			h.mode = hostRequest
		}

	case hostInhibit:
		if !h.inhibit {
			h.bus.HostClock(false)
			h.mode = hostIdle
		}

	case hostRequest:
		h.ticks++
		if h.ticks == h.RequestTicks {
			h.bus.HostData(true) // start bit
		}
		if h.ticks > h.RequestTicks {
			h.bus.HostClock(false)
			h.edges = 0
			h.ticks = 0
			h.mode = hostSending
		}

	case hostSending:
		h.ticks++
		if h.ticks > h.TimeoutTicks {
			h.fail(ErrSendTimeout)
			return
		}
		if !fell {
			return
		}
		h.edges++
		switch {
		case h.edges <= 8:
			h.bus.HostData(h.txByte&(1<<(h.edges-1)) == 0)
		case h.edges == 9:
			p := core.OddParity(h.txByte)
			if h.txBad {
				p ^= 1
			}
			h.bus.HostData(p == 0)
		case h.edges == 10:
			h.bus.HostData(false) // stop bit
		case h.edges == 11:
			if h.bus.DataHigh() {
				h.fail(ErrNoAck)
				return
			}
			h.sent = append(h.sent, h.txByte)
			h.mode = hostAwaitRelease
		}

	case hostAwaitRelease:
		h.ticks++
		if clk && h.bus.DataHigh() {
			h.mode = hostIdle
			return
		}
		if h.ticks > h.TimeoutTicks {
			h.fail(ErrSendTimeout)
		}
	}
}

func (h *Host) fail(err error) {
	h.errs = append(h.errs, fmt.Errorf("sending 0x%02X: %w", h.txByte, err))
	h.bus.HostClock(false)
	h.bus.HostData(false)
	h.mode = hostIdle
}

func (h *Host) receiveBit(high bool) {
	if high {
		h.rx[h.rxN] = 1
	} else {
		h.rx[h.rxN] = 0
	}
	h.rxN++
	if h.rxN < len(h.rx) {
		return
	}
	h.rxN = 0

	f := Frame{Bits: h.rx}
	ones := 0
	for i := 0; i < 8; i++ {
		if h.rx[1+i] == 1 {
			f.Value |= 1 << i
			ones++
		}
	}
	ones += int(h.rx[9])
	f.ParityOK = ones%2 == 1
	f.FramedOK = h.rx[0] == 0 && h.rx[10] == 1
	h.frames = append(h.frames, f)

	if !(f.ParityOK && f.FramedOK) && h.ResendOnError {
		h.txQueue = append([]txItem{{b: core.CmdResend}}, h.txQueue...)
	}
}

// Frames returns every frame received so far.
func (h *Host) Frames() []Frame {
	return h.frames
}

// Received returns the values of every frame received so far.
func (h *Host) Received() []byte {
	out := make([]byte, len(h.frames))
	for i, f := range h.frames {
		out[i] = f.Value
	}
	return out
}

// Sent returns the bytes the keyboard acknowledged.
func (h *Host) Sent() []byte {
	return h.sent
}

// Errors returns transmission failures.
func (h *Host) Errors() []error {
	return h.errs
}

// Busy reports whether the host still has bytes to send or is mid-transfer.
func (h *Host) Busy() bool {
	return len(h.txQueue) > 0 || h.mode != hostIdle
}

// ReceivedBits returns how many bits of the current device frame have been
// sampled.
func (h *Host) ReceivedBits() int {
	return h.rxN
}

// Reset drops captured frames and sent bytes.
func (h *Host) Reset() {
	h.frames = nil
	h.sent = nil
	h.errs = nil
}
