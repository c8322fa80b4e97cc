package core

// Tick rate defaults. The protocol engine runs TicksPerClock ticks for every
// PS/2 clock period, so 50 kHz gives a 12.5 kHz bus clock.
const (
	DefaultTickRate = 50000
	TicksPerClock   = 4
	MinTickRate     = 40000
	MaxTickRate     = 66800
)

// Clock is a wrapping millisecond counter advanced by the tick interrupt and
// read by the foreground loop.
type Clock struct {
	ms uint32
}

// Now returns the current time in milliseconds.
func (c *Clock) Now() uint32 {
	return c.load()
}

// Set forces the current time (for tests and simulation).
func (c *Clock) Set(ms uint32) {
	c.store(ms)
}

// Advance moves the clock forward. Only the tick context calls it.
func (c *Clock) Advance(ms uint32) {
	c.store(c.load() + ms)
}

// Deadline returns the time d milliseconds from now.
func (c *Clock) Deadline(d uint32) uint32 {
	return c.Now() + d
}

// Expired reports whether deadline has been reached. The comparison is
// wrap-safe for deadlines less than 2^31 ms away.
func (c *Clock) Expired(deadline uint32) bool {
	return !timeBefore(c.Now(), deadline)
}

// Since returns the milliseconds elapsed since then.
func (c *Clock) Since(then uint32) uint32 {
	return c.Now() - then
}

// timeBefore reports whether a is earlier than b on the wrapping clock.
func timeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// tickDivider turns tick interrupts into milliseconds without drift when the
// tick rate is not a multiple of 1000.
type tickDivider struct {
	rate uint32
	acc  uint32
}

// tick accounts for one interrupt and reports whether a millisecond passed.
func (d *tickDivider) tick() bool {
	d.acc += 1000
	if d.acc >= d.rate {
		d.acc -= d.rate
		return true
	}
	return false
}
