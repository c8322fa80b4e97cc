package core

// Foreground timing defaults, in milliseconds.
const (
	DefaultParamTimeout = 1000
	DefaultResetDelay   = 10
)

const maxParams = 4

// InterpreterStats counts foreground command handling.
type InterpreterStats struct {
	Commands      uint32
	Params        uint32
	ParamTimeouts uint32
	ParityErrors  uint32
	ReplyDrops    uint32
}

// Interpreter consumes host bytes from the inbound queue and answers on the
// outbound queue. It never blocks: a command that takes a parameter leaves a
// deadline behind and the next Poll picks up where the last one stopped.
type Interpreter struct {
	in       *Queue
	out      *Queue
	clock    *Clock
	sched    *Scheduler
	trace    *Trace
	registry *CommandRegistry

	// ParamTimeout is how long a parameter command waits for its argument.
	ParamTimeout uint32
	// ResetDelay separates the reset ACK from the self-test result.
	ResetDelay uint32

	pending  *Command
	args     [maxParams]byte
	argN     int
	deadline uint32

	leds      byte
	typematic byte
	scanSet   byte
	scanning  bool

	batTimer  Timer
	onDiscard func()
	stats     InterpreterStats
}

// NewInterpreter creates an interpreter with the standard keyboard command
// set registered.
func NewInterpreter(in, out *Queue, clock *Clock, sched *Scheduler, trace *Trace) *Interpreter {
	it := &Interpreter{
		in:           in,
		out:          out,
		clock:        clock,
		sched:        sched,
		trace:        trace,
		registry:     NewCommandRegistry(),
		ParamTimeout: DefaultParamTimeout,
		ResetDelay:   DefaultResetDelay,
	}
	it.restoreDefaults()
	it.batTimer.Handler = func(*Timer) uint8 {
		it.reply(ReplyBATOK)
		return SF_DONE
	}
	it.registerCommands()
	return it
}

func (it *Interpreter) registerCommands() {
	r := it.registry
	r.Register(CmdReset, "reset", 0, it.cmdReset)
	r.Register(CmdSetDefault, "set_default", 0, it.cmdSetDefault)
	r.Register(CmdDisable, "disable_scanning", 0, it.cmdDisable)
	r.Register(CmdEnable, "enable_scanning", 0, it.cmdEnable)
	r.Register(CmdSetTypematic, "set_typematic", 1, it.cmdSetTypematic)
	r.Register(CmdReadID, "read_id", 0, it.cmdReadID)
	r.Register(CmdSetScanCodeSet, "set_scan_code_set", 1, it.cmdSetScanCodeSet)
	r.Register(CmdEcho, "echo", 0, it.cmdEcho)
	r.Register(CmdSetLEDs, "set_leds", 1, it.cmdSetLEDs)
}

// Registry exposes the command table so callers can add or override
// commands.
func (it *Interpreter) Registry() *CommandRegistry {
	return it.registry
}

// OnDiscard registers a callback run whenever a command clears the outbound
// queue.
func (it *Interpreter) OnDiscard(fn func()) {
	it.onDiscard = fn
}

// Poll drains the inbound queue and expires a stale parameter wait.
func (it *Interpreter) Poll() {
	for {
		b, ok := it.in.Peek()
		if !ok {
			break
		}
		if it.pending != nil {
			if !IsCommand(b) {
				it.in.Dequeue()
				it.acceptParam(b)
				continue
			}
			// A fresh command abandons the parameter wait.
			it.pending = nil
		}
		it.in.Dequeue()
		it.handle(b)
	}

	if it.pending != nil && it.clock.Expired(it.deadline) {
		it.stats.ParamTimeouts++
		it.record(EvtParamTimeout, uint32(it.pending.Code))
		it.pending = nil
	}
}

func (it *Interpreter) handle(b byte) {
	if IsCommand(b) {
		it.stats.Commands++
		it.discardOutput()
		it.record(EvtCommand, uint32(b))
	}

	if b == ReceiveError {
		it.stats.ParityErrors++
		it.record(EvtParityError, it.stats.ParityErrors)
		it.reply(ReplyResend)
		return
	}

	cmd, ok := it.registry.GetCommand(b)
	if !ok || cmd.Handler == nil {
		// Everything else is acknowledged and otherwise ignored.
		it.reply(ReplyAck)
		return
	}

	if cmd.Params > 0 {
		it.reply(ReplyAck)
		it.pending = cmd
		it.argN = 0
		it.deadline = it.clock.Deadline(it.ParamTimeout)
		return
	}

	if err := it.registry.Dispatch(b, nil); err != nil {
		DebugPrintln("[PS2] command 0x" + hex2(b) + " failed: " + err.Error())
		it.reply(ReplyResend)
	}
}

func (it *Interpreter) acceptParam(b byte) {
	cmd := it.pending
	it.args[it.argN] = b
	it.argN++
	if it.argN < cmd.Params && it.argN < maxParams {
		it.deadline = it.clock.Deadline(it.ParamTimeout)
		return
	}

	it.pending = nil
	it.stats.Params++
	it.record(EvtParam, uint32(cmd.Code)<<8|uint32(b))

	if err := it.registry.Dispatch(cmd.Code, it.args[:it.argN]); err != nil {
		DebugPrintln("[PS2] parameter for 0x" + hex2(cmd.Code) + " rejected: " + err.Error())
		it.reply(ReplyResend)
		return
	}
	it.reply(ReplyAck)
}

// discardOutput drops whatever the keyboard still had to say. The host has
// moved on to a new command.
func (it *Interpreter) discardOutput() {
	n := it.out.Len()
	it.out.Clear()
	it.sched.Cancel(&it.batTimer)
	if n > 0 {
		it.record(EvtOutputCleared, uint32(n))
	}
	if it.onDiscard != nil {
		it.onDiscard()
	}
}

// reply enqueues response bytes, counting any that do not fit.
func (it *Interpreter) reply(bs ...byte) {
	for _, b := range bs {
		if !it.out.Enqueue(b) {
			it.stats.ReplyDrops++
			it.record(EvtReplyDropped, uint32(b))
		}
	}
}

func (it *Interpreter) record(kind EventKind, value uint32) {
	if it.trace != nil {
		it.trace.Record(kind, it.clock.Now(), value)
	}
}

func (it *Interpreter) restoreDefaults() {
	it.leds = 0
	it.typematic = DefaultTypematic
	it.scanSet = 2
	it.scanning = true
}

func (it *Interpreter) cmdReset(args []byte) error {
	it.reply(ReplyAck)
	it.restoreDefaults()
	it.sched.After(&it.batTimer, it.ResetDelay)
	return nil
}

func (it *Interpreter) cmdSetDefault(args []byte) error {
	it.reply(ReplyAck)
	it.typematic = DefaultTypematic
	it.scanSet = 2
	it.setScanning(true)
	return nil
}

func (it *Interpreter) cmdDisable(args []byte) error {
	it.reply(ReplyAck)
	it.typematic = DefaultTypematic
	it.setScanning(false)
	return nil
}

func (it *Interpreter) cmdEnable(args []byte) error {
	it.reply(ReplyAck)
	it.setScanning(true)
	return nil
}

func (it *Interpreter) cmdReadID(args []byte) error {
	it.reply(ReplyAck, ReplyID0, ReplyID1)
	return nil
}

func (it *Interpreter) cmdEcho(args []byte) error {
	it.reply(ReplyEcho)
	return nil
}

func (it *Interpreter) cmdSetTypematic(args []byte) error {
	it.typematic = args[0] & 0x7F
	return nil
}

func (it *Interpreter) cmdSetScanCodeSet(args []byte) error {
	if args[0] != 0 {
		it.scanSet = args[0]
	}
	return nil
}

func (it *Interpreter) cmdSetLEDs(args []byte) error {
	it.leds = args[0] & (LEDScrollLock | LEDNumLock | LEDCapsLock)
	it.record(EvtLEDs, uint32(it.leds))
	return nil
}

func (it *Interpreter) setScanning(on bool) {
	if it.scanning == on {
		return
	}
	it.scanning = on
	v := uint32(0)
	if on {
		v = 1
	}
	it.record(EvtScanning, v)
}

// Busy reports whether the interpreter is mid-exchange with the host: a
// parameter is outstanding or a reset still owes its self-test result.
func (it *Interpreter) Busy() bool {
	return it.pending != nil || it.sched.Pending(&it.batTimer)
}

// Pending returns the command waiting for a parameter, if any.
func (it *Interpreter) Pending() (byte, bool) {
	if it.pending == nil {
		return 0, false
	}
	return it.pending.Code, true
}

// LEDs returns the last LED bits set by the host.
func (it *Interpreter) LEDs() byte { return it.leds }

// Typematic returns the last typematic rate/delay byte set by the host.
func (it *Interpreter) Typematic() byte { return it.typematic }

// ScanCodeSet returns the scan code set the host last selected.
func (it *Interpreter) ScanCodeSet() byte { return it.scanSet }

// Scanning reports whether key reports are enabled.
func (it *Interpreter) Scanning() bool { return it.scanning }

// Stats returns the interpreter counters.
func (it *Interpreter) Stats() InterpreterStats { return it.stats }
