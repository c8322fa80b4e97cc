package core

import "sync/atomic"

// Queue geometry. One slot always stays free so that a full ring can be told
// apart from an empty one.
const (
	QueueSlots    = 16
	QueueCapacity = QueueSlots - 1
)

// Queue is a fixed-size byte ring shared by exactly one producer and one
// consumer. The producer only moves the write cursor and the consumer only
// moves the read cursor, so neither side needs to mask interrupts.
//
// Clear touches both cursors and masks interrupts itself.
type Queue struct {
	buf   [QueueSlots]byte
	read  uint32
	write uint32

	// restorable is set by Dequeue and consumed by Unqueue.
	restorable uint32
}

func nextSlot(i uint32) uint32 {
	return (i + 1) % QueueSlots
}

func prevSlot(i uint32) uint32 {
	return (i + QueueSlots - 1) % QueueSlots
}

// Enqueue appends b. It returns false and leaves the queue untouched when
// the queue is full.
func (q *Queue) Enqueue(b byte) bool {
	w, ok := q.reserve()
	if !ok {
		return false
	}
	q.commit(w, b)
	return true
}

// reserve checks for room and returns the slot the next byte goes into.
func (q *Queue) reserve() (uint32, bool) {
	w := atomic.LoadUint32(&q.write)
	if nextSlot(w) == atomic.LoadUint32(&q.read) {
		return 0, false
	}
	return w, true
}

// commit stores b in slot w and publishes it to the consumer.
func (q *Queue) commit(w uint32, b byte) {
	q.buf[w] = b
	atomic.StoreUint32(&q.write, nextSlot(w))
}

// Dequeue removes and returns the front byte.
func (q *Queue) Dequeue() (byte, bool) {
	r := atomic.LoadUint32(&q.read)
	if r == atomic.LoadUint32(&q.write) {
		return 0, false
	}
	b := q.buf[r]
	atomic.StoreUint32(&q.read, nextSlot(r))
	atomic.StoreUint32(&q.restorable, 1)
	return b, true
}

// Peek returns the front byte without removing it.
func (q *Queue) Peek() (byte, bool) {
	r := atomic.LoadUint32(&q.read)
	if r == atomic.LoadUint32(&q.write) {
		return 0, false
	}
	return q.buf[r], true
}

// Unqueue steps the read cursor back one slot so the most recently dequeued
// byte becomes the front again. The producer never writes the slot just
// behind the read cursor, so its contents are still intact.
//
// The producer may have passed its full check against the current read
// cursor and not yet published its write, so the step back also needs the
// slot after the write cursor to stay free. Unqueue therefore refuses when
// fewer than two slots are free.
//
// It reports false and does nothing when no byte was dequeued since the last
// Clear or Unqueue, or when the queue is that close to full.
func (q *Queue) Unqueue() bool {
	if atomic.LoadUint32(&q.restorable) == 0 {
		return false
	}
	r := atomic.LoadUint32(&q.read)
	prev := prevSlot(r)
	w := atomic.LoadUint32(&q.write)
	if prev == w || prev == nextSlot(w) {
		return false
	}
	atomic.StoreUint32(&q.read, prev)
	atomic.StoreUint32(&q.restorable, 0)
	return true
}

// Clear drops every queued byte.
func (q *Queue) Clear() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	atomic.StoreUint32(&q.read, atomic.LoadUint32(&q.write))
	atomic.StoreUint32(&q.restorable, 0)
}

// IsEmpty reports whether no byte is queued.
func (q *Queue) IsEmpty() bool {
	return atomic.LoadUint32(&q.read) == atomic.LoadUint32(&q.write)
}

// IsFull reports whether Enqueue would fail.
func (q *Queue) IsFull() bool {
	return nextSlot(atomic.LoadUint32(&q.write)) == atomic.LoadUint32(&q.read)
}

// Len returns the number of queued bytes.
func (q *Queue) Len() int {
	r := atomic.LoadUint32(&q.read)
	w := atomic.LoadUint32(&q.write)
	return int((w + QueueSlots - r) % QueueSlots)
}

// Free returns how many bytes can still be enqueued.
func (q *Queue) Free() int {
	return QueueCapacity - q.Len()
}
