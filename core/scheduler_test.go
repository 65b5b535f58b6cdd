package core

import "testing"

func TestSchedulerOrder(t *testing.T) {
	s := &Scheduler{}
	var order []uint32

	record := func(tm *Timer) uint8 {
		order = append(order, tm.WakeTime)
		return SF_DONE
	}

	timers := []*Timer{
		{WakeTime: 300, Handler: record},
		{WakeTime: 100, Handler: record},
		{WakeTime: 200, Handler: record},
	}
	for _, tm := range timers {
		s.Schedule(tm)
	}
	if s.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", s.Pending())
	}

	s.Dispatch(150)
	if len(order) != 1 || order[0] != 100 {
		t.Fatalf("after Dispatch(150): %v", order)
	}

	s.Dispatch(300)
	if len(order) != 3 || order[1] != 200 || order[2] != 300 {
		t.Errorf("after Dispatch(300): %v", order)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d after all fired", s.Pending())
	}
}

func TestSchedulerReschedule(t *testing.T) {
	s := &Scheduler{}
	fired := 0
	tm := &Timer{WakeTime: 10}
	tm.Handler = func(t *Timer) uint8 {
		fired++
		if fired == 3 {
			return SF_DONE
		}
		t.WakeTime += 10
		return SF_RESCHEDULE
	}
	s.Schedule(tm)

	for now := uint32(0); now <= 100; now += 5 {
		s.Dispatch(now)
	}
	if fired != 3 {
		t.Errorf("fired %d times, want 3", fired)
	}
}

func TestSchedulerScheduleTwice(t *testing.T) {
	s := &Scheduler{}
	tm := &Timer{WakeTime: 50, Handler: func(*Timer) uint8 { return SF_DONE }}

	s.Schedule(tm)
	tm.WakeTime = 20
	s.Schedule(tm)
	if s.Pending() != 1 {
		t.Fatalf("timer linked %d times", s.Pending())
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := &Scheduler{}
	fired := false
	a := &Timer{WakeTime: 10, Handler: func(*Timer) uint8 { fired = true; return SF_DONE }}
	b := &Timer{WakeTime: 20, Handler: func(*Timer) uint8 { return SF_DONE }}
	s.Schedule(a)
	s.Schedule(b)

	s.Cancel(a)
	s.Cancel(a)
	s.Dispatch(100)
	if fired {
		t.Error("cancelled timer fired")
	}
}

func TestSchedulerWraparound(t *testing.T) {
	s := &Scheduler{}
	var order []string
	late := &Timer{WakeTime: 5, Handler: func(*Timer) uint8 { order = append(order, "after-wrap"); return SF_DONE }}
	early := &Timer{WakeTime: 0xFFFFFFF0, Handler: func(*Timer) uint8 { order = append(order, "before-wrap"); return SF_DONE }}
	s.Schedule(late)
	s.Schedule(early)

	s.Dispatch(0xFFFFFFF8)
	if len(order) != 1 || order[0] != "before-wrap" {
		t.Fatalf("before wrap: %v", order)
	}
	s.Dispatch(10)
	if len(order) != 2 || order[1] != "after-wrap" {
		t.Errorf("after wrap: %v", order)
	}
}

func TestTimerConversions(t *testing.T) {
	if got := TimerFromUS(1500); got != 1500 {
		t.Errorf("TimerFromUS(1500) = %d", got)
	}
	if got := TimerToUS(TimerFromUS(4000000)); got != 4000000 {
		t.Errorf("round trip = %d", got)
	}
	if !timerIsBefore(0xFFFFFFFF, 1) {
		t.Error("timerIsBefore should tolerate wraparound")
	}
	if timerIsBefore(7, 7) {
		t.Error("timerIsBefore(7, 7) should be false")
	}
}
