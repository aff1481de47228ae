package session

import (
	"sync"
	"time"
)

// Timer is an outstanding debounce timer.
type Timer interface {
	// Stop cancels the timer. It reports whether the timer was stopped
	// before firing.
	Stop() bool
}

// Clock abstracts timer creation so tests can drive virtual time.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (rt realTimer) Stop() bool { return rt.t.Stop() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

// RealClock returns a Clock backed by time.AfterFunc.
func RealClock() Clock {
	return realClock{}
}

// Scheduler owns the per-session debounce timers for live sync. Every
// change notification cancels and replaces the session's pending timer, so
// at most one timer is outstanding per session at any instant; after the
// quiet period the fire callback runs once with the buffer's latest text.
type Scheduler struct {
	mu       sync.Mutex
	clock    Clock
	debounce time.Duration
	fire     func(sess *Session)
	timers   map[string]Timer
	stopped  bool
}

// NewScheduler creates a scheduler. fire is invoked after the quiet period
// and is responsible for the busy-flag handshake.
func NewScheduler(clock Clock, debounce time.Duration, fire func(sess *Session)) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{
		clock:    clock,
		debounce: debounce,
		fire:     fire,
		timers:   make(map[string]Timer),
	}
}

// Touch registers an edit: any pending timer for the session is cancelled
// and a new one starts the full quiet period over.
func (s *Scheduler) Touch(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if timer, ok := s.timers[sess.ID]; ok {
		timer.Stop()
	}

	s.timers[sess.ID] = s.clock.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		delete(s.timers, sess.ID)
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			s.fire(sess)
		}
	})
}

// Cancel drops any pending timer for the session. An in-flight fire is not
// interrupted; cancellation only prevents future cycles.
func (s *Scheduler) Cancel(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[sess.ID]; ok {
		timer.Stop()
		delete(s.timers, sess.ID)
	}
}

// Pending reports whether the session has an outstanding timer.
func (s *Scheduler) Pending(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[sess.ID]
	return ok
}

// Stop cancels all timers and rejects further touches.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
