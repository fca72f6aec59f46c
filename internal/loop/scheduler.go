// Package loop provides the single-threaded event loop every session component
// runs on.
//
// All callbacks handed to a Scheduler run one at a time on the loop, so the
// components built on top of it keep plain fields without locks. Host events
// that arrive on other goroutines (binding calls, command replies) enter the
// loop through Post.
package loop

import "time"

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the timer
	// already fired or was stopped.
	Stop() bool
}

// Scheduler runs callbacks on a single logical thread.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time
	// Post queues fn to run on the loop. It never blocks.
	Post(fn func())
	// After runs fn on the loop once d has elapsed.
	After(d time.Duration, fn func()) Timer
	// Every runs fn on the loop each time d elapses until stopped.
	Every(d time.Duration, fn func()) Timer
}

// StopTimer stops t if it is non-nil.
func StopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
