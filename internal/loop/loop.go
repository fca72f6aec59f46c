package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is the production Scheduler backed by a single goroutine.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed atomic.Bool
}

// Verify Loop implements Scheduler at compile time.
var _ Scheduler = (*Loop)(nil)

// New creates an idle loop. Call Run to start processing.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Now returns the wall clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post queues fn for execution. Posting after Run returned is a no-op.
func (l *Loop) Post(fn func()) {
	if fn == nil || l.closed.Load() {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run processes queued callbacks until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	defer l.closed.Store(true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			batch := l.queue
			l.queue = nil
			l.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				if ctx.Err() != nil {
					return
				}
				fn()
			}
		}
	}
}

// Call runs fn on the loop and waits for it to finish or for ctx to end.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type loopTimer struct {
	stopped atomic.Bool
	mu      sync.Mutex
	t       *time.Timer
}

func (t *loopTimer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		return t.t.Stop()
	}
	return true
}

// After runs fn on the loop once d has elapsed. A Stop that races with the
// expiry still prevents fn from running.
func (l *Loop) After(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.mu.Lock()
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	lt.mu.Unlock()
	return lt
}

// Every runs fn on the loop each time d elapses. The next tick is armed only
// after the current one ran, so slow callbacks never pile up.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	var arm func()
	arm = func() {
		lt.mu.Lock()
		defer lt.mu.Unlock()
		if lt.stopped.Load() {
			return
		}
		lt.t = time.AfterFunc(d, func() {
			l.Post(func() {
				if lt.stopped.Load() {
					return
				}
				fn()
				arm()
			})
		})
	}
	arm()
	return lt
}
