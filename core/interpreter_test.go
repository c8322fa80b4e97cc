package core

import (
	"bytes"
	"errors"
	"testing"
)

type interpFixture struct {
	in    Queue
	out   Queue
	clock Clock
	trace Trace
	sched *Scheduler
	it    *Interpreter
}

func newInterpFixture() *interpFixture {
	f := &interpFixture{}
	f.sched = NewScheduler(&f.clock)
	f.it = NewInterpreter(&f.in, &f.out, &f.clock, f.sched, &f.trace)
	return f
}

// host queues bytes as if the engine had received them and polls once.
func (f *interpFixture) host(bs ...byte) {
	for _, b := range bs {
		f.in.Enqueue(b)
	}
	f.it.Poll()
}

// advance moves the clock and runs the foreground once.
func (f *interpFixture) advance(ms uint32) {
	f.clock.Advance(ms)
	f.it.Poll()
	f.sched.Dispatch()
}

// drain returns everything waiting to be sent.
func (f *interpFixture) drain() []byte {
	var out []byte
	for {
		b, ok := f.out.Dequeue()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

func expectBytes(t *testing.T, what string, got, want []byte) {
	t.Helper()
	if !bytes.Equal(got, want) {
		t.Errorf("%s: expected % X, got % X", what, want, got)
	}
}

func TestInterpreterSimpleReplies(t *testing.T) {
	testCases := []struct {
		name string
		cmd  byte
		want []byte
	}{
		{"echo", CmdEcho, []byte{ReplyEcho}},
		{"read id", CmdReadID, []byte{ReplyAck, ReplyID0, ReplyID1}},
		{"enable", CmdEnable, []byte{ReplyAck}},
		{"set default", CmdSetDefault, []byte{ReplyAck}},
		{"unregistered command", 0xF7, []byte{ReplyAck}},
		{"non-command byte", 0x42, []byte{ReplyAck}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newInterpFixture()
			f.host(tc.cmd)
			expectBytes(t, tc.name, f.drain(), tc.want)
		})
	}
}

func TestInterpreterReset(t *testing.T) {
	f := newInterpFixture()

	f.host(CmdSetLEDs, LEDCapsLock)
	f.host(CmdDisable)
	f.drain()

	f.host(CmdReset)
	expectBytes(t, "reset ack", f.drain(), []byte{ReplyAck})

	if !f.it.Busy() {
		t.Error("Interpreter should be busy until the self-test result is sent")
	}

	f.advance(DefaultResetDelay - 1)
	if !f.out.IsEmpty() {
		t.Error("Self-test result sent before the reset delay")
	}

	f.advance(1)
	expectBytes(t, "self-test", f.drain(), []byte{ReplyBATOK})

	if f.it.LEDs() != 0 {
		t.Errorf("Expected LEDs cleared by reset, got %d", f.it.LEDs())
	}
	if !f.it.Scanning() {
		t.Error("Reset should re-enable scanning")
	}
	if f.it.Busy() {
		t.Error("Interpreter should be idle after the self-test result")
	}
}

func TestInterpreterResetCancelledByCommand(t *testing.T) {
	f := newInterpFixture()

	f.host(CmdReset)
	f.drain()
	f.host(CmdEcho)
	f.advance(DefaultResetDelay)

	expectBytes(t, "after echo", f.drain(), []byte{ReplyEcho})
}

func TestInterpreterSetLEDs(t *testing.T) {
	f := newInterpFixture()

	f.host(CmdSetLEDs)
	expectBytes(t, "command ack", f.drain(), []byte{ReplyAck})

	if code, ok := f.it.Pending(); !ok || code != CmdSetLEDs {
		t.Fatalf("Expected pending set_leds, got 0x%02X (ok=%v)", code, ok)
	}

	f.host(LEDNumLock | LEDCapsLock)
	expectBytes(t, "parameter ack", f.drain(), []byte{ReplyAck})

	if f.it.LEDs() != LEDNumLock|LEDCapsLock {
		t.Errorf("Expected LEDs 0x06, got 0x%02X", f.it.LEDs())
	}
	if _, ok := f.it.Pending(); ok {
		t.Error("Parameter wait should be over")
	}

	evt, ok := f.trace.Last(EvtLEDs)
	if !ok || evt.Value != 0x06 {
		t.Errorf("Expected LED trace event with 0x06, got %+v (ok=%v)", evt, ok)
	}
}

func TestInterpreterZeroParameter(t *testing.T) {
	f := newInterpFixture()

	f.host(CmdSetLEDs, LEDCapsLock)
	f.drain()

	// Zero turns every LED off; it must not be answered as a receive error
	f.host(CmdSetLEDs, 0x00)
	expectBytes(t, "replies", f.drain(), []byte{ReplyAck, ReplyAck})
	if f.it.LEDs() != 0 {
		t.Errorf("Expected LEDs off, got 0x%02X", f.it.LEDs())
	}
}

func TestInterpreterTypematic(t *testing.T) {
	f := newInterpFixture()

	f.host(CmdSetTypematic, 0x20)
	expectBytes(t, "replies", f.drain(), []byte{ReplyAck, ReplyAck})

	if f.it.Typematic() != 0x20 {
		t.Errorf("Expected typematic 0x20, got 0x%02X", f.it.Typematic())
	}
}

func TestInterpreterParamTimeout(t *testing.T) {
	f := newInterpFixture()

	f.host(CmdSetTypematic)
	f.drain()

	f.advance(DefaultParamTimeout - 1)
	if _, ok := f.it.Pending(); !ok {
		t.Fatal("Parameter wait ended early")
	}

	f.advance(1)
	if _, ok := f.it.Pending(); ok {
		t.Fatal("Parameter wait should have timed out")
	}
	if f.it.Stats().ParamTimeouts != 1 {
		t.Errorf("Expected 1 timeout, got %d", f.it.Stats().ParamTimeouts)
	}
	if !f.out.IsEmpty() {
		t.Errorf("Timeout should be silent, got % X", f.drain())
	}
	if _, ok := f.trace.Last(EvtParamTimeout); !ok {
		t.Error("Timeout not traced")
	}

	// A late parameter is handled as an ordinary byte
	f.host(0x20)
	expectBytes(t, "late byte", f.drain(), []byte{ReplyAck})
	if f.it.Typematic() != DefaultTypematic {
		t.Errorf("Late parameter changed typematic to 0x%02X", f.it.Typematic())
	}
}

func TestInterpreterCommandDuringParamWait(t *testing.T) {
	f := newInterpFixture()

	f.host(CmdSetLEDs)
	f.host(CmdEcho)

	// The echo clears the unsent ACK and is answered normally
	expectBytes(t, "replies", f.drain(), []byte{ReplyEcho})
	if _, ok := f.it.Pending(); ok {
		t.Error("Parameter wait should be abandoned")
	}
}

func TestInterpreterCommandClearsOutput(t *testing.T) {
	f := newInterpFixture()

	discarded := 0
	f.it.OnDiscard(func() { discarded++ })

	f.out.Enqueue(KeySpace)
	f.out.Enqueue(BreakPrefix)
	f.out.Enqueue(KeySpace)

	f.host(CmdEcho)
	expectBytes(t, "after command", f.drain(), []byte{ReplyEcho})

	if discarded != 1 {
		t.Errorf("Expected 1 discard callback, got %d", discarded)
	}
	if evt, ok := f.trace.Last(EvtOutputCleared); !ok || evt.Value != 3 {
		t.Errorf("Expected output_cleared with 3 bytes, got %+v (ok=%v)", evt, ok)
	}
}

func TestInterpreterDataByteKeepsOutput(t *testing.T) {
	f := newInterpFixture()

	f.out.Enqueue(KeySpace)
	f.host(0x01)

	expectBytes(t, "after data byte", f.drain(), []byte{KeySpace, ReplyAck})
}

func TestInterpreterReceiveError(t *testing.T) {
	f := newInterpFixture()

	f.host(ReceiveError)
	expectBytes(t, "error reply", f.drain(), []byte{ReplyResend})

	if f.it.Stats().ParityErrors != 1 {
		t.Errorf("Expected 1 parity error, got %d", f.it.Stats().ParityErrors)
	}
}

func TestInterpreterScanning(t *testing.T) {
	f := newInterpFixture()

	f.host(CmdDisable)
	if f.it.Scanning() {
		t.Error("Scanning should be disabled")
	}

	f.host(CmdEnable)
	if !f.it.Scanning() {
		t.Error("Scanning should be enabled")
	}
}

func TestInterpreterReplyDrop(t *testing.T) {
	f := newInterpFixture()

	for !f.out.IsFull() {
		f.out.Enqueue(0x11)
	}

	// A data byte does not clear the queue, so its ACK has nowhere to go
	f.host(0x01)
	if f.it.Stats().ReplyDrops != 1 {
		t.Errorf("Expected 1 dropped reply, got %d", f.it.Stats().ReplyDrops)
	}
	if _, ok := f.trace.Last(EvtReplyDropped); !ok {
		t.Error("Dropped reply not traced")
	}
}

func TestInterpreterCustomCommand(t *testing.T) {
	f := newInterpFixture()

	f.it.Registry().Register(0xF7, "set_all_typematic", 0, func([]byte) error {
		f.it.reply(ReplyAck, 0x55)
		return nil
	})

	f.host(0xF7)
	expectBytes(t, "custom", f.drain(), []byte{ReplyAck, 0x55})
}

func TestInterpreterHandlerError(t *testing.T) {
	f := newInterpFixture()
	rejected := errors.New("rejected")

	f.it.Registry().Register(0xF8, "failing", 0, func([]byte) error { return rejected })
	f.it.Registry().Register(0xFB, "failing_param", 1, func([]byte) error { return rejected })

	f.host(0xF8)
	expectBytes(t, "no params", f.drain(), []byte{ReplyResend})

	f.host(0xFB, 0x10)
	expectBytes(t, "with param", f.drain(), []byte{ReplyAck, ReplyResend})
}

func TestInterpreterParamUsesCurrentHandler(t *testing.T) {
	f := newInterpFixture()

	f.host(CmdSetTypematic)
	var got []byte
	f.it.Registry().Register(CmdSetTypematic, "set_typematic", 1, func(args []byte) error {
		got = append([]byte(nil), args...)
		return nil
	})
	f.host(0x2B)

	if !bytes.Equal(got, []byte{0x2B}) {
		t.Errorf("Replacement handler saw % X", got)
	}
	expectBytes(t, "typematic", f.drain(), []byte{ReplyAck, ReplyAck})
}
