package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/keepsake/internal/loop"
)

// Epoch is the default start time of a ManualScheduler.
var Epoch = time.Date(2024, time.February, 14, 20, 0, 0, 0, time.UTC)

// ManualScheduler is a loop.Scheduler driven by a virtual clock.
//
// Time only moves when Advance is called. Due timers fire on the caller's
// goroutine in deadline order (ties broken by arming order), so a test
// observes exactly the same sequence of callbacks on every run.
//
// Thread-safety: methods are safe for concurrent use, but callbacks run
// synchronously inside Advance.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int64
	timers []*manualTimer
}

// NewManualScheduler creates a scheduler starting at Epoch.
func NewManualScheduler() *ManualScheduler {
	return NewManualSchedulerAt(Epoch)
}

// NewManualSchedulerAt creates a scheduler starting at start.
func NewManualSchedulerAt(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now returns the virtual time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// AfterFunc arms fn to fire once the virtual clock reaches now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) loop.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{
		owner:    s,
		deadline: s.now.Add(d),
		seq:      s.seq,
		fn:       fn,
	}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that becomes due,
// including timers armed by callbacks during the advance.
// Returns the number of callbacks fired.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	fired := 0
	for {
		t := s.popDue(target)
		if t == nil {
			break
		}
		t.fn()
		fired++
	}

	s.mu.Lock()
	if target.After(s.now) {
		s.now = target
	}
	s.mu.Unlock()
	return fired
}

// Pending returns the number of armed, unfired timers.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *ManualScheduler) popDue(target time.Time) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.timers) == 0 {
		return nil
	}
	sort.SliceStable(s.timers, func(i, j int) bool {
		a, b := s.timers[i], s.timers[j]
		if !a.deadline.Equal(b.deadline) {
			return a.deadline.Before(b.deadline)
		}
		return a.seq < b.seq
	})
	next := s.timers[0]
	if next.deadline.After(target) {
		return nil
	}
	s.timers = s.timers[1:]
	if next.deadline.After(s.now) {
		s.now = next.deadline
	}
	return next
}

func (s *ManualScheduler) remove(t *manualTimer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, candidate := range s.timers {
		if candidate == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	owner    *ManualScheduler
	deadline time.Time
	seq      int64
	fn       func()
}

// Stop removes the timer if it has not fired yet.
func (t *manualTimer) Stop() bool {
	return t.owner.remove(t)
}
