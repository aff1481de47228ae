package session

import (
	"sync"
	"testing"
	"time"
)

// fakeClock drives timers with virtual time.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves virtual time forward and fires due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func TestSchedulerFiresAfterQuietPeriod(t *testing.T) {
	clock := newFakeClock()
	fired := 0
	sched := NewScheduler(clock, 275*time.Millisecond, func(*Session) { fired++ })
	sess := New("b", "a", nil)

	sched.Touch(sess)
	clock.Advance(200 * time.Millisecond)
	if fired != 0 {
		t.Fatal("fired before the quiet period elapsed")
	}
	clock.Advance(100 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("expected 1 fire, got %d", fired)
	}
}

func TestSchedulerCancelAndReplace(t *testing.T) {
	clock := newFakeClock()
	fired := 0
	sched := NewScheduler(clock, 275*time.Millisecond, func(*Session) { fired++ })
	sess := New("b", "a", nil)

	// Two rapid edits inside the debounce window: exactly one fire, at the
	// quiet period after the second edit.
	sched.Touch(sess)
	clock.Advance(100 * time.Millisecond)
	sched.Touch(sess)
	clock.Advance(200 * time.Millisecond)
	if fired != 0 {
		t.Fatal("first touch's timer should have been cancelled")
	}
	clock.Advance(100 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("expected exactly 1 fire, got %d", fired)
	}
}

func TestSchedulerPerSessionTimers(t *testing.T) {
	clock := newFakeClock()
	var fired []string
	sched := NewScheduler(clock, 100*time.Millisecond, func(s *Session) {
		fired = append(fired, s.BufferID)
	})
	a := New("buf-a", "x", nil)
	b := New("buf-b", "y", nil)

	sched.Touch(a)
	sched.Touch(b)
	clock.Advance(150 * time.Millisecond)

	if len(fired) != 2 {
		t.Fatalf("expected both sessions to fire, got %v", fired)
	}
}

func TestSchedulerCancel(t *testing.T) {
	clock := newFakeClock()
	fired := 0
	sched := NewScheduler(clock, 100*time.Millisecond, func(*Session) { fired++ })
	sess := New("b", "a", nil)

	sched.Touch(sess)
	if !sched.Pending(sess) {
		t.Fatal("expected a pending timer")
	}
	sched.Cancel(sess)
	if sched.Pending(sess) {
		t.Fatal("timer still pending after cancel")
	}
	clock.Advance(time.Second)
	if fired != 0 {
		t.Errorf("cancelled timer fired %d times", fired)
	}
}

func TestSchedulerStop(t *testing.T) {
	clock := newFakeClock()
	fired := 0
	sched := NewScheduler(clock, 100*time.Millisecond, func(*Session) { fired++ })
	sess := New("b", "a", nil)

	sched.Touch(sess)
	sched.Stop()
	clock.Advance(time.Second)
	if fired != 0 {
		t.Errorf("timer fired after stop: %d", fired)
	}

	sched.Touch(sess)
	if sched.Pending(sess) {
		t.Error("touch after stop must be ignored")
	}
}

func TestBusyCycleDropSemantics(t *testing.T) {
	clock := newFakeClock()
	drops := 0
	runs := 0
	var sess *Session
	sched := NewScheduler(clock, 100*time.Millisecond, func(s *Session) {
		if !s.TryAcquire() {
			drops++
			return
		}
		defer s.Release()
		runs++
	})
	sess = New("b", "a", nil)

	// A cycle fires while the session is busy with an in-flight apply:
	// the cycle is dropped, not queued.
	if !sess.TryAcquire() {
		t.Fatal("acquire failed")
	}
	sched.Touch(sess)
	clock.Advance(150 * time.Millisecond)
	if drops != 1 || runs != 0 {
		t.Fatalf("expected a dropped cycle, got drops=%d runs=%d", drops, runs)
	}

	sess.Release()
	sched.Touch(sess)
	clock.Advance(150 * time.Millisecond)
	if runs != 1 {
		t.Fatalf("expected the next cycle to run, got runs=%d", runs)
	}
}
