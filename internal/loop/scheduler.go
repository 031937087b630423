package loop

import "time"

// Timer is a pending callback armed through a Scheduler.
type Timer interface {
	// Stop prevents the callback from running. Returns false if the callback
	// already ran or the timer was already stopped.
	Stop() bool
}

// Scheduler provides time and delayed execution to components.
//
// Callbacks always run on the component's owning goroutine, never
// concurrently with other component code.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// StopAll stops every non-nil timer in ts.
func StopAll(ts ...Timer) {
	for _, t := range ts {
		if t != nil {
			t.Stop()
		}
	}
}
