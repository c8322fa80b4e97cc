package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// EventKind identifies a traced keyboard event. The numeric values travel
// over the diagnostic link and must stay stable.
type EventKind uint8

const (
	EvtBoot          EventKind = 1  // value: tick rate in Hz
	EvtKeyMake       EventKind = 2  // value: scan code
	EvtKeyBreak      EventKind = 3  // value: scan code
	EvtCommand       EventKind = 4  // value: command byte
	EvtParam         EventKind = 5  // value: command<<8 | parameter
	EvtReplyDropped  EventKind = 6  // value: reply byte that did not fit
	EvtParityError   EventKind = 7  // value: total parity errors
	EvtInterrupted   EventKind = 8  // value: total interrupted transfers
	EvtParamTimeout  EventKind = 9  // value: command byte
	EvtResend        EventKind = 10 // value: total resend requests
	EvtLEDs          EventKind = 11 // value: LED bits
	EvtAckTimeout    EventKind = 12 // value: total receive frames dropped
	EvtTrigger       EventKind = 13 // value: knocks counted
	EvtScanning      EventKind = 14 // value: 1 enabled, 0 disabled
	EvtInboundDrop   EventKind = 15 // value: total inbound bytes dropped
	EvtOutputCleared EventKind = 16 // value: bytes discarded
)

// String returns the event name used in logs
func (k EventKind) String() string {
	switch k {
	case EvtBoot:
		return "boot"
	case EvtKeyMake:
		return "key_make"
	case EvtKeyBreak:
		return "key_break"
	case EvtCommand:
		return "command"
	case EvtParam:
		return "param"
	case EvtReplyDropped:
		return "reply_dropped"
	case EvtParityError:
		return "parity_error"
	case EvtInterrupted:
		return "interrupted"
	case EvtParamTimeout:
		return "param_timeout"
	case EvtResend:
		return "resend"
	case EvtLEDs:
		return "leds"
	case EvtAckTimeout:
		return "ack_timeout"
	case EvtTrigger:
		return "trigger"
	case EvtScanning:
		return "scanning"
	case EvtInboundDrop:
		return "inbound_drop"
	case EvtOutputCleared:
		return "output_cleared"
	default:
		return "unknown"
	}
}

// TraceEvent is one entry of the trace ring
type TraceEvent struct {
	Kind  EventKind
	Clock uint32 // milliseconds
	Value uint32
}

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether DebugPrintln produces output
	debugEnabled bool = false
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// Trace keeps the most recent foreground events. It is written only from the
// foreground loop.
type Trace struct {
	ring [TraceRingSize]TraceEvent
	head uint8
	sink func(TraceEvent)
}

// SetSink registers a callback that sees every recorded event
func (t *Trace) SetSink(sink func(TraceEvent)) {
	t.sink = sink
}

// Record captures an event in the ring and forwards it to the sink
func (t *Trace) Record(kind EventKind, clock, value uint32) {
	evt := TraceEvent{Kind: kind, Clock: clock, Value: value}
	t.ring[t.head] = evt
	t.head = (t.head + 1) % TraceRingSize
	if t.sink != nil {
		t.sink(evt)
	}
}

// Events returns the captured events, oldest first
func (t *Trace) Events() []TraceEvent {
	out := make([]TraceEvent, 0, TraceRingSize)
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := t.ring[(t.head+i)%TraceRingSize]
		if evt.Kind == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// Last returns the most recent event of the given kind
func (t *Trace) Last(kind EventKind) (TraceEvent, bool) {
	for i := uint8(1); i <= TraceRingSize; i++ {
		evt := t.ring[(t.head+TraceRingSize-i)%TraceRingSize]
		if evt.Kind == kind {
			return evt, true
		}
	}
	return TraceEvent{}, false
}

// Dump writes the ring through the debug writer regardless of the enabled flag
func (t *Trace) Dump() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TRACE] === Trace Ring Dump ===")
	for _, evt := range t.Events() {
		debugPrintln("[TRACE] " + evt.Kind.String() +
			" clock=" + utoa(evt.Clock) +
			" value=" + utoa(evt.Value))
	}
	debugPrintln("[TRACE] === End Dump ===")
}

// Clear empties the ring
func (t *Trace) Clear() {
	for i := range t.ring {
		t.ring[i] = TraceEvent{}
	}
	t.head = 0
}
