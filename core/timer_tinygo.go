//go:build tinygo

package core

import "sync/atomic"

// load returns the millisecond counter written by the tick interrupt
func (c *Clock) load() uint32 {
	return atomic.LoadUint32(&c.ms)
}

// store sets the millisecond counter
func (c *Clock) store(ms uint32) {
	atomic.StoreUint32(&c.ms, ms)
}
