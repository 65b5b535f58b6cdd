package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

// Handler results
const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler keeps timers sorted by wake time and runs them when due.
// It is the periodic trigger that drives multiplexer ticks on the firmware.
type Scheduler struct {
	list *Timer
}

// DefaultScheduler is the scheduler the firmware main loop dispatches.
var DefaultScheduler = &Scheduler{}

// Schedule inserts t in wake-time order. A timer that is already queued is
// moved rather than linked twice.
func (s *Scheduler) Schedule(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.remove(t)
	s.insert(t)
}

// Cancel removes t if it is queued.
func (s *Scheduler) Cancel(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.remove(t)
}

// Pending returns the number of queued timers.
func (s *Scheduler) Pending() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	n := 0
	for cur := s.list; cur != nil; cur = cur.Next {
		n++
	}
	return n
}

// Dispatch runs every timer whose wake time is at or before now.
// Handlers returning SF_RESCHEDULE are re-queued at their updated WakeTime.
func (s *Scheduler) Dispatch(now uint32) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for s.list != nil && !timerIsBefore(now, s.list.WakeTime) {
		t := s.list
		s.list = t.Next
		t.Next = nil

		if t.Handler(t) == SF_RESCHEDULE {
			s.insert(t)
		}
	}
}

func (s *Scheduler) insert(t *Timer) {
	if s.list == nil || timerIsBefore(t.WakeTime, s.list.WakeTime) {
		t.Next = s.list
		s.list = t
		return
	}

	cur := s.list
	for cur.Next != nil && !timerIsBefore(t.WakeTime, cur.Next.WakeTime) {
		cur = cur.Next
	}
	t.Next = cur.Next
	cur.Next = t
}

func (s *Scheduler) remove(t *Timer) {
	if s.list == t {
		s.list = t.Next
		t.Next = nil
		return
	}
	for cur := s.list; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return
		}
	}
}
