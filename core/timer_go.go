//go:build !tinygo

package core

// load returns the millisecond counter (regular Go implementation)
func (c *Clock) load() uint32 {
	return c.ms
}

// store sets the millisecond counter (regular Go implementation)
func (c *Clock) store(ms uint32) {
	c.ms = ms
}
