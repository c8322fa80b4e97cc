package core_test

import (
	"bytes"
	"testing"

	"ps2key/core"
	"ps2key/sim"
)

const maxTicks = 200000

func newRig(t *testing.T) *sim.Rig {
	t.Helper()
	return sim.NewRig(core.DefaultConfig())
}

func expectReceived(t *testing.T, r *sim.Rig, want ...byte) {
	t.Helper()
	if got := r.Host.Received(); !bytes.Equal(got, want) {
		t.Errorf("Expected host to receive % X, got % X", want, got)
	}
}

// exchange sends bytes from the host and waits for the line to go quiet.
func exchange(t *testing.T, r *sim.Rig, bs ...byte) {
	t.Helper()
	r.Host.Send(bs...)
	if !r.Settle(maxTicks) {
		t.Fatalf("Rig did not settle after sending % X", bs)
	}
	if errs := r.Host.Errors(); len(errs) != 0 {
		t.Fatalf("Host errors: %v", errs)
	}
}

func TestKeyboardEcho(t *testing.T) {
	r := newRig(t)
	exchange(t, r, core.CmdEcho)
	expectReceived(t, r, core.ReplyEcho)
}

func TestKeyboardReadID(t *testing.T) {
	r := newRig(t)
	exchange(t, r, core.CmdReadID)
	expectReceived(t, r, core.ReplyAck, core.ReplyID0, core.ReplyID1)
}

func TestKeyboardReset(t *testing.T) {
	r := newRig(t)

	r.Host.Send(core.CmdReset)
	if !r.RunUntil(func() bool { return len(r.Host.Frames()) == 1 }, maxTicks) {
		t.Fatal("No reset acknowledgement")
	}
	ackAt := r.Keyboard.Clock().Now()

	if !r.RunUntil(func() bool { return len(r.Host.Frames()) == 2 }, maxTicks) {
		t.Fatal("No self-test result")
	}
	batAt := r.Keyboard.Clock().Now()

	expectReceived(t, r, core.ReplyAck, core.ReplyBATOK)
	if batAt-ackAt < uint32(r.Keyboard.Config().ResetDelay)-1 {
		t.Errorf("Self-test result only %dms after the ACK", batAt-ackAt)
	}
}

func TestKeyboardSetLEDs(t *testing.T) {
	r := newRig(t)
	exchange(t, r, core.CmdSetLEDs, core.LEDNumLock)

	expectReceived(t, r, core.ReplyAck, core.ReplyAck)
	if r.Keyboard.Interpreter().LEDs() != core.LEDNumLock {
		t.Errorf("Expected LEDs 0x02, got 0x%02X", r.Keyboard.Interpreter().LEDs())
	}
}

func TestKeyboardParityErrorAnswered(t *testing.T) {
	r := newRig(t)
	r.Host.SendBadParity(core.CmdEcho)
	r.Settle(maxTicks)

	expectReceived(t, r, core.ReplyResend)
}

func TestKeyboardResendRepeatsReply(t *testing.T) {
	r := newRig(t)
	exchange(t, r, core.CmdEcho)
	exchange(t, r, core.CmdResend)

	expectReceived(t, r, core.ReplyEcho, core.ReplyEcho)
}

func TestKeyboardKnockSendsSpace(t *testing.T) {
	r := newRig(t)

	for i := 0; i < 3; i++ {
		r.Knock(5)
		r.RunMillis(800)
	}
	r.Settle(maxTicks)

	expectReceived(t, r, core.KeySpace, core.BreakPrefix, core.KeySpace)

	trace := r.Keyboard.Trace()
	mk, ok1 := trace.Last(core.EvtKeyMake)
	br, ok2 := trace.Last(core.EvtKeyBreak)
	if !ok1 || !ok2 {
		t.Fatal("Key events not traced")
	}
	if br.Clock-mk.Clock < 10 {
		t.Errorf("Break only %dms after make", br.Clock-mk.Clock)
	}
	if _, ok := trace.Last(core.EvtTrigger); !ok {
		t.Error("Trigger not traced")
	}
}

func TestKeyboardKnockWindowExpires(t *testing.T) {
	r := newRig(t)

	r.Knock(5)
	r.RunMillis(1000)
	r.Knock(5)
	r.RunMillis(2500)

	// Outside the window: this one starts a new series
	r.Knock(5)
	r.RunMillis(600)
	r.Settle(maxTicks)
	expectReceived(t, r)

	r.Knock(5)
	r.RunMillis(600)
	r.Knock(5)
	r.Settle(maxTicks)
	expectReceived(t, r, core.KeySpace, core.BreakPrefix, core.KeySpace)
}

func TestKeyboardScanningDisabled(t *testing.T) {
	r := newRig(t)
	exchange(t, r, core.CmdDisable)
	r.Host.Reset()

	for i := 0; i < 3; i++ {
		r.Knock(5)
		r.RunMillis(800)
	}
	r.Settle(maxTicks)
	expectReceived(t, r)
}

func TestKeyboardDisableForgetsKnocks(t *testing.T) {
	r := newRig(t)

	for i := 0; i < 2; i++ {
		r.Knock(5)
		r.RunMillis(800)
	}
	exchange(t, r, core.CmdDisable)
	exchange(t, r, core.CmdEnable)
	r.Host.Reset()

	// Would complete the series without the disable in between
	r.Knock(5)
	r.RunMillis(100)
	r.Settle(maxTicks)
	expectReceived(t, r)
}

func TestKeyboardInterruptedBreakIsResent(t *testing.T) {
	r := newRig(t)

	if !r.Keyboard.Press(core.KeySpace) {
		t.Fatal("Press refused")
	}

	// Let the make code through, then take the bus in the middle of F0
	if !r.RunUntil(func() bool {
		return len(r.Host.Frames()) == 1 && r.Host.ReceivedBits() == 5
	}, maxTicks) {
		t.Fatal("Break code never started")
	}
	r.Host.Inhibit(true)
	r.Run(20)
	r.Host.Inhibit(false)
	r.Settle(maxTicks)

	expectReceived(t, r, core.KeySpace, core.BreakPrefix, core.KeySpace)
	if _, ok := r.Keyboard.Trace().Last(core.EvtInterrupted); !ok {
		t.Error("Interruption not traced")
	}
	if r.Keyboard.Engine().LinkError() != core.LinkOK {
		t.Error("Link error should be cleared by the foreground")
	}
}

func TestKeyboardBreakBehindReplyIsResent(t *testing.T) {
	queuedBehindReply := 0

	// Different hold times put the break at different points of the reply
	for hold := uint32(10); hold < 18; hold++ {
		cfg := core.DefaultConfig()
		cfg.KeyHold = hold
		r := sim.NewRig(cfg)
		kb := r.Keyboard

		if !kb.Press(core.KeySpace) {
			t.Fatal("Press refused")
		}

		// Keep reply bytes going out until the break is queued
		if !r.RunUntil(func() bool {
			if _, ok := kb.Trace().Last(core.EvtKeyBreak); ok {
				if kb.Engine().Sending() {
					queuedBehindReply++
				}
				return true
			}
			if kb.Outbound().IsEmpty() {
				kb.Outbound().Enqueue(core.ReplyAck)
			}
			return false
		}, maxTicks) {
			t.Fatalf("hold %dms: break never queued", hold)
		}

		// Take the bus in the middle of the final break byte
		if !r.RunUntil(func() bool {
			got := r.Host.Received()
			return len(got) > 0 && got[len(got)-1] == core.BreakPrefix && r.Host.ReceivedBits() == 4
		}, maxTicks) {
			t.Fatalf("hold %dms: break code never started", hold)
		}
		r.Host.Inhibit(true)
		r.Run(20)
		r.Host.Inhibit(false)
		if !r.Settle(maxTicks) {
			t.Fatalf("hold %dms: rig did not settle", hold)
		}

		got := r.Host.Received()
		if len(got) < 2 || !bytes.Equal(got[len(got)-2:], []byte{core.BreakPrefix, core.KeySpace}) {
			t.Errorf("hold %dms: expected the break code last, got % X", hold, got)
		}
		if !kb.KeyIdle() {
			t.Errorf("hold %dms: key still in flight", hold)
		}
	}

	if queuedBehindReply == 0 {
		t.Error("Break was never queued while a reply byte was on the wire")
	}
}

func TestKeyboardKnockWaitsForReplyOnWire(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Knock = core.KnockPolicy{Required: 1, MinInterval: 500}
	r := sim.NewRig(cfg)
	kb := r.Keyboard

	// A reply byte leaves the queue as soon as it starts going out
	kb.Outbound().Enqueue(core.ReplyAck)
	if !r.RunUntil(func() bool { return kb.Engine().Sending() }, maxTicks) {
		t.Fatal("Reply never started")
	}
	if !kb.Outbound().IsEmpty() {
		t.Fatal("Reply still queued")
	}

	// Well inside the eleven clock periods of one frame
	r.Sensor.Set(true)
	r.Run(6 * core.TicksPerClock)
	r.Sensor.Set(false)
	if !kb.Engine().Sending() {
		t.Fatal("Reply finished early")
	}

	if _, ok := kb.Trace().Last(core.EvtTrigger); ok {
		t.Error("Sensor sampled while a reply was on the wire")
	}
}

func TestKeyboardTypeHexWhileDisabled(t *testing.T) {
	r := newRig(t)
	exchange(t, r, core.CmdDisable)
	r.Host.Reset()

	if r.Keyboard.Press(core.KeySpace) {
		t.Error("Press accepted with scanning disabled")
	}
	r.Keyboard.TypeHex(0x5A)
	r.RunMillis(200)
	r.Settle(maxTicks)

	expectReceived(t, r)
	if !r.Keyboard.KeyIdle() {
		t.Error("Typed keys left waiting while scanning is disabled")
	}
}

func TestKeyboardCommandDuringKeyKeepsBreak(t *testing.T) {
	r := newRig(t)

	r.Keyboard.Press(core.KeySpace)
	r.RunUntil(func() bool { return len(r.Host.Frames()) == 1 }, maxTicks)

	// The host talks before the break is due; it still has to arrive
	exchange(t, r, core.CmdEcho)

	got := r.Host.Received()
	if len(got) < 3 || got[0] != core.KeySpace {
		t.Fatalf("Unexpected traffic % X", got)
	}
	if !bytes.Equal(got[len(got)-2:], []byte{core.BreakPrefix, core.KeySpace}) {
		t.Errorf("Expected the break code last, got % X", got)
	}
	if !bytes.Contains(got, []byte{core.ReplyEcho}) {
		t.Errorf("Echo reply missing from % X", got)
	}
}

func TestKeyboardTypeHex(t *testing.T) {
	r := newRig(t)

	if !r.Keyboard.TypeHex(0x5A) {
		t.Fatal("TypeHex refused")
	}
	r.RunUntil(func() bool { return len(r.Host.Frames()) == 6 }, maxTicks)

	five := core.HexScanCode(5)
	ay := core.HexScanCode(0xA)
	expectReceived(t, r, five, core.BreakPrefix, five, ay, core.BreakPrefix, ay)
}

func TestKeyboardPowerUp(t *testing.T) {
	r := newRig(t)
	r.Keyboard.Start()
	r.Run(1)

	if !r.LED.On {
		t.Error("Indicator should be lit during power-up")
	}

	// Knocks during power-up are ignored
	for i := 0; i < 3; i++ {
		r.Knock(5)
		r.RunMillis(800)
	}
	if !r.LED.On {
		t.Error("Power-up indication ended early")
	}
	r.RunMillis(700)
	r.Settle(maxTicks)

	if r.LED.On {
		t.Error("Indicator should be off after power-up")
	}
	if len(r.Host.Frames()) != 0 {
		t.Errorf("Key sent during power-up: % X", r.Host.Received())
	}
	if _, ok := r.Keyboard.Trace().Last(core.EvtBoot); !ok {
		t.Error("Boot not traced")
	}
	if r.Watchdog.Feeds == 0 {
		t.Error("Watchdog never fed")
	}
}

func TestKeyboardCommandsDuringPowerUp(t *testing.T) {
	r := newRig(t)
	r.Keyboard.Start()

	exchange(t, r, core.CmdEcho)
	expectReceived(t, r, core.ReplyEcho)
	if !r.LED.On {
		t.Error("Power-up indication ended early")
	}
}
