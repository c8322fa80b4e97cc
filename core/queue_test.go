package core

import "testing"

func TestQueueFIFO(t *testing.T) {
	var q Queue

	if !q.IsEmpty() {
		t.Error("New queue should be empty")
	}

	for i := 0; i < 5; i++ {
		if !q.Enqueue(byte(i + 1)) {
			t.Fatalf("Enqueue %d failed", i)
		}
	}

	if q.Len() != 5 {
		t.Errorf("Expected length 5, got %d", q.Len())
	}

	if b, ok := q.Peek(); !ok || b != 1 {
		t.Errorf("Expected front 1, got %d (ok=%v)", b, ok)
	}

	for i := 0; i < 5; i++ {
		b, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Dequeue %d failed", i)
		}
		if b != byte(i+1) {
			t.Errorf("Expected %d, got %d", i+1, b)
		}
	}

	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue on empty queue should fail")
	}
}

func TestQueueFull(t *testing.T) {
	var q Queue

	for i := 0; i < QueueCapacity; i++ {
		if !q.Enqueue(byte(i)) {
			t.Fatalf("Enqueue %d failed before capacity", i)
		}
	}

	if !q.IsFull() {
		t.Error("Queue should be full")
	}
	if q.Free() != 0 {
		t.Errorf("Expected 0 free, got %d", q.Free())
	}

	if q.Enqueue(0xAA) {
		t.Error("Enqueue on full queue should fail")
	}
	if q.Len() != QueueCapacity {
		t.Errorf("Failed enqueue changed length to %d", q.Len())
	}

	// Contents are untouched by the rejected enqueue
	for i := 0; i < QueueCapacity; i++ {
		b, _ := q.Dequeue()
		if b != byte(i) {
			t.Errorf("Expected %d, got %d", i, b)
		}
	}
}

func TestQueueWrap(t *testing.T) {
	var q Queue

	for round := 0; round < 3*QueueSlots; round++ {
		if !q.Enqueue(byte(round)) {
			t.Fatalf("Enqueue failed at round %d", round)
		}
		b, ok := q.Dequeue()
		if !ok || b != byte(round) {
			t.Fatalf("Round %d: expected %d, got %d", round, round, b)
		}
	}
}

func TestQueueUnqueue(t *testing.T) {
	var q Queue

	if q.Unqueue() {
		t.Error("Unqueue with nothing dequeued should do nothing")
	}

	q.Enqueue(0x29)
	q.Enqueue(0xF0)

	b, _ := q.Dequeue()
	if b != 0x29 {
		t.Fatalf("Expected 0x29, got 0x%02X", b)
	}

	if !q.Unqueue() {
		t.Fatal("Unqueue after dequeue should restore")
	}

	// The restored byte comes out again, followed by the rest
	want := []byte{0x29, 0xF0}
	for _, w := range want {
		got, ok := q.Dequeue()
		if !ok || got != w {
			t.Errorf("Expected 0x%02X, got 0x%02X", w, got)
		}
	}

	// Only one step back per dequeue
	q.Unqueue()
	if q.Unqueue() {
		t.Error("Second Unqueue without a dequeue should do nothing")
	}
}

func TestQueueUnqueueAcrossWrap(t *testing.T) {
	var q Queue

	// Move the cursors so the last dequeued byte sits in the final slot
	for i := 0; i < QueueSlots-1; i++ {
		q.Enqueue(0)
		q.Dequeue()
	}
	q.Enqueue(0x42)
	q.Enqueue(0x43)
	if b, _ := q.Dequeue(); b != 0x42 {
		t.Fatalf("Expected 0x42, got 0x%02X", b)
	}

	q.Unqueue()
	if b, _ := q.Peek(); b != 0x42 {
		t.Errorf("Expected restored 0x42 at front, got 0x%02X", b)
	}
}

func TestQueueUnqueueWhenFull(t *testing.T) {
	var q Queue

	q.Enqueue(1)
	q.Dequeue()
	for q.Enqueue(2) {
	}

	if q.Unqueue() {
		t.Error("Unqueue on a full queue should do nothing")
	}
	if q.Len() != QueueCapacity {
		t.Errorf("Expected length %d, got %d", QueueCapacity, q.Len())
	}
}

func TestQueueClear(t *testing.T) {
	var q Queue

	q.Enqueue(1)
	q.Enqueue(2)
	q.Dequeue()
	q.Clear()

	if !q.IsEmpty() {
		t.Error("Queue should be empty after Clear")
	}
	if q.Unqueue() {
		t.Error("Unqueue after Clear should do nothing")
	}

	q.Enqueue(9)
	if b, _ := q.Dequeue(); b != 9 {
		t.Errorf("Expected 9 after clear, got %d", b)
	}
}

func TestQueueUnqueueNeedsTwoFree(t *testing.T) {
	var q Queue

	q.Enqueue(1)
	q.Dequeue()
	for i := 0; i < QueueCapacity-1; i++ {
		q.Enqueue(2)
	}

	if q.Unqueue() {
		t.Error("Unqueue with one free slot should do nothing")
	}

	q.Dequeue()
	q.Dequeue()
	if !q.Unqueue() {
		t.Error("Unqueue with two free slots should restore")
	}
	if q.Len() != QueueCapacity-2 {
		t.Errorf("Expected length %d, got %d", QueueCapacity-2, q.Len())
	}
}

func TestQueueUnqueueDuringEnqueue(t *testing.T) {
	var q Queue

	// Fourteen queued, one restorable byte behind the read cursor
	q.Enqueue(0xFA)
	q.Dequeue()
	for i := 0; i < QueueCapacity-1; i++ {
		q.Enqueue(byte(i))
	}

	// The tick lands between the producer's full check and its write
	w, ok := q.reserve()
	if !ok {
		t.Fatal("Reserve failed with a free slot")
	}
	q.Unqueue()
	q.commit(w, 0xEE)

	if q.IsEmpty() {
		t.Fatal("Queue lost its contents")
	}
	if q.Len() != QueueCapacity {
		t.Fatalf("Expected length %d, got %d", QueueCapacity, q.Len())
	}
	for i := 0; i < QueueCapacity-1; i++ {
		if b, _ := q.Dequeue(); b != byte(i) {
			t.Errorf("Expected %d, got %d", i, b)
		}
	}
	if b, _ := q.Dequeue(); b != 0xEE {
		t.Errorf("Expected 0xEE last, got 0x%02X", b)
	}
}
