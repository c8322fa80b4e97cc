package core

import "testing"

func TestClockDeadline(t *testing.T) {
	var c Clock

	d := c.Deadline(10)
	if c.Expired(d) {
		t.Error("Deadline should not be expired immediately")
	}

	c.Advance(9)
	if c.Expired(d) {
		t.Error("Deadline should not be expired after 9ms")
	}

	c.Advance(1)
	if !c.Expired(d) {
		t.Error("Deadline should be expired after 10ms")
	}

	if c.Since(0) != 10 {
		t.Errorf("Expected 10ms since start, got %d", c.Since(0))
	}
}

func TestClockWrap(t *testing.T) {
	var c Clock
	c.Set(0xFFFFFFF0)

	d := c.Deadline(0x20)
	if c.Expired(d) {
		t.Error("Deadline across wrap should not be expired yet")
	}

	c.Advance(0x1F)
	if c.Expired(d) {
		t.Error("Deadline across wrap expired one ms early")
	}

	c.Advance(1)
	if !c.Expired(d) {
		t.Error("Deadline across wrap should be expired")
	}
}

func TestTickDivider(t *testing.T) {
	testCases := []struct {
		rate  uint32
		ticks int
		want  int
	}{
		{50000, 50000, 1000},
		{50000, 49, 0},
		{50000, 50, 1},
		{66667, 66667, 1000},
		{41000, 410, 10},
	}

	for _, tc := range testCases {
		d := tickDivider{rate: tc.rate}
		got := 0
		for i := 0; i < tc.ticks; i++ {
			if d.tick() {
				got++
			}
		}
		if got != tc.want {
			t.Errorf("rate %d, %d ticks: expected %d ms, got %d", tc.rate, tc.ticks, tc.want, got)
		}
	}
}
