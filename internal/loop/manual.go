package loop

import (
	"sort"
	"time"
)

// Manual is a deterministic Scheduler for tests. Nothing runs until the test
// calls Flush or Advance, and time only moves through Advance.
type Manual struct {
	now    time.Time
	queue  []func()
	timers []*manualTimer
	seq    int
}

// Verify Manual implements Scheduler at compile time.
var _ Scheduler = (*Manual)(nil)

type manualTimer struct {
	due      time.Time
	every    time.Duration
	fn       func()
	seq      int
	stopped  bool
	finished bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.finished {
		return false
	}
	t.stopped = true
	return true
}

// NewManual creates a manual scheduler starting at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	return m.now
}

func (m *Manual) Post(fn func()) {
	if fn != nil {
		m.queue = append(m.queue, fn)
	}
}

func (m *Manual) After(d time.Duration, fn func()) Timer {
	return m.add(d, 0, fn)
}

func (m *Manual) Every(d time.Duration, fn func()) Timer {
	return m.add(d, d, fn)
}

func (m *Manual) add(d, every time.Duration, fn func()) *manualTimer {
	m.seq++
	t := &manualTimer{due: m.now.Add(d), every: every, fn: fn, seq: m.seq}
	m.timers = append(m.timers, t)
	return t
}

// Flush runs every queued callback, including ones queued while flushing.
func (m *Manual) Flush() {
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
	}
}

// Advance moves time forward by d, firing due timers in order and flushing
// posted callbacks between them.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	m.Flush()
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		if t.due.After(m.now) {
			m.now = t.due
		}
		if t.every > 0 {
			t.due = t.due.Add(t.every)
		} else {
			t.finished = true
		}
		t.fn()
		m.Flush()
	}
	m.now = target
	m.prune()
}

// Pending reports how many timers are still armed.
func (m *Manual) Pending() int {
	m.prune()
	return len(m.timers)
}

func (m *Manual) nextDue(limit time.Time) *manualTimer {
	m.prune()
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due.Equal(m.timers[j].due) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].due.Before(m.timers[j].due)
	})
	if len(m.timers) > 0 && !m.timers[0].due.After(limit) {
		return m.timers[0]
	}
	return nil
}

func (m *Manual) prune() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.finished {
			live = append(live, t)
		}
	}
	m.timers = live
}
