package core

// Timer represents a scheduled foreground event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer

	queued bool
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler runs timers from the foreground loop once their wake time has
// passed on the shared millisecond clock. Handlers never run in the tick
// interrupt, so no masking is needed.
type Scheduler struct {
	clock *Clock
	list  *Timer
}

// NewScheduler creates a scheduler driven by clock
func NewScheduler(clock *Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Schedule adds a timer. A timer that is already queued is moved to its new
// wake time.
func (s *Scheduler) Schedule(t *Timer) {
	if t.queued {
		s.Cancel(t)
	}
	s.insertTimer(t)
}

// After schedules t to fire ms milliseconds from now.
func (s *Scheduler) After(t *Timer, ms uint32) {
	t.WakeTime = s.clock.Deadline(ms)
	s.Schedule(t)
}

// Cancel removes a queued timer and reports whether it was queued.
func (s *Scheduler) Cancel(t *Timer) bool {
	if !t.queued {
		return false
	}
	if s.list == t {
		s.list = t.Next
	} else {
		for cur := s.list; cur != nil; cur = cur.Next {
			if cur.Next == t {
				cur.Next = t.Next
				break
			}
		}
	}
	t.Next = nil
	t.queued = false
	return true
}

// Pending reports whether t is waiting to fire.
func (s *Scheduler) Pending(t *Timer) bool {
	return t.queued
}

// insertTimer inserts a timer in sorted order by WakeTime
func (s *Scheduler) insertTimer(t *Timer) {
	t.queued = true
	if s.list == nil || timeBefore(t.WakeTime, s.list.WakeTime) {
		t.Next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.Next != nil && !timeBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Dispatch runs every timer whose wake time has passed
func (s *Scheduler) Dispatch() {
	now := s.clock.Now()

	for s.list != nil && !timeBefore(now, s.list.WakeTime) {
		timer := s.list
		s.list = timer.Next
		timer.Next = nil
		timer.queued = false

		if timer.Handler(timer) == SF_RESCHEDULE {
			// A handler that does not move its wake time forward runs on the
			// next Dispatch instead of spinning here.
			if !timeBefore(now, timer.WakeTime) {
				timer.WakeTime = now + 1
			}
			s.insertTimer(timer)
		}
	}
}
