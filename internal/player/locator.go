package player

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/dom"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/loop"
	"github.com/llehouerou/adspeed/internal/signature"
)

// DefaultRetryInterval is how often the locator polls until the player appears.
const DefaultRetryInterval = 250 * time.Millisecond

// ErrNotReady is returned when the player has not been located yet.
var ErrNotReady = errors.New("player not located yet")

// Handle is the resolved pair of player container and media element.
type Handle struct {
	Container dom.Element
	Media     dom.Element
}

// Locator finds the player in the document and owns the current Handle.
//
// The handle only becomes valid once container and media element resolve
// together. Later refreshes replace it when the page swapped either element;
// a refresh that finds nothing keeps the previous, possibly stale, handle.
type Locator struct {
	doc   dom.Document
	sigs  *signature.Store
	sched loop.Scheduler
	log   zerolog.Logger
	retry time.Duration

	handle   Handle
	ready    bool
	waiters  []func(Handle)
	watchers map[int]func(Handle)
	nextID   int
	poll     loop.Timer
}

// NewLocator creates a locator. A zero retry uses DefaultRetryInterval.
func NewLocator(doc dom.Document, sigs *signature.Store, sched loop.Scheduler, retry time.Duration) *Locator {
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	return &Locator{
		doc:      doc,
		sigs:     sigs,
		sched:    sched,
		log:      log.WithComponent("locator"),
		retry:    retry,
		watchers: make(map[int]func(Handle)),
	}
}

// Start polls the document until the player is found.
func (l *Locator) Start() {
	if l.ready || l.poll != nil {
		return
	}
	if l.Locate() {
		return
	}
	l.poll = l.sched.Every(l.retry, func() {
		l.Locate()
	})
}

// Stop cancels polling.
func (l *Locator) Stop() {
	loop.StopTimer(l.poll)
	l.poll = nil
}

// Locate resolves the handle if it is not resolved yet. It is idempotent.
func (l *Locator) Locate() bool {
	if l.ready {
		return true
	}
	h, ok := l.query()
	if !ok {
		return false
	}
	l.install(h)
	return true
}

// Refresh re-queries the document and replaces the handle when the page
// swapped the player or its media element. It reports whether a handle is
// available afterwards.
func (l *Locator) Refresh() bool {
	h, ok := l.query()
	if !ok {
		return l.ready
	}
	if l.ready && h == l.handle {
		return true
	}
	if l.ready {
		l.log.Debug().
			Stringer("old_media", l.handle.Media).
			Stringer("new_media", h.Media).
			Msg("player handle replaced")
	}
	l.install(h)
	return true
}

// Ready reports whether the handle has been resolved.
func (l *Locator) Ready() bool {
	return l.ready
}

// Handle returns the current handle and whether it has been resolved.
func (l *Locator) Handle() (Handle, bool) {
	return l.handle, l.ready
}

// Media returns the current media element or ErrNotReady.
func (l *Locator) Media() (dom.Element, error) {
	if !l.ready {
		return dom.Element{}, ErrNotReady
	}
	return l.handle.Media, nil
}

// OnReady runs fn with the handle once it is resolved. If it already is, fn
// runs synchronously; otherwise it runs exactly once on the first successful
// locate.
func (l *Locator) OnReady(fn func(Handle)) {
	if l.ready {
		fn(l.handle)
		return
	}
	l.waiters = append(l.waiters, fn)
}

// Subscribe runs fn with every handle the locator installs, starting with the
// current one if resolved. The returned function unsubscribes.
func (l *Locator) Subscribe(fn func(Handle)) func() {
	l.nextID++
	id := l.nextID
	l.watchers[id] = fn
	if l.ready {
		fn(l.handle)
	}
	return func() { delete(l.watchers, id) }
}

func (l *Locator) install(h Handle) {
	first := !l.ready
	l.handle = h
	l.ready = true
	l.Stop()

	for _, fn := range l.sortedWatchers() {
		fn(h)
	}

	if !first {
		return
	}
	l.log.Info().
		Stringer("container", h.Container).
		Stringer("media", h.Media).
		Msg("player located")

	// Clear before invoking so a waiter registering another waiter runs it
	// synchronously instead of re-entering this flush.
	waiters := l.waiters
	l.waiters = nil
	for _, fn := range waiters {
		fn(h)
	}
}

func (l *Locator) sortedWatchers() []func(Handle) {
	out := make([]func(Handle), 0, len(l.watchers))
	for id := 1; id <= l.nextID; id++ {
		if fn, ok := l.watchers[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (l *Locator) query() (Handle, bool) {
	sigs := l.sigs.Current()

	container, err := l.doc.QueryFirst(sigs.Container)
	if err != nil {
		l.log.Error().Err(err).Str("selector", sigs.Container).Msg("player container lookup failed")
		return Handle{}, false
	}
	if !container.Valid() {
		return Handle{}, false
	}

	media, err := l.doc.QueryWithin(container, sigs.Media)
	if err != nil {
		l.log.Error().Err(err).Str("selector", sigs.Media).Msg("media element lookup failed")
		return Handle{}, false
	}
	if !media.Valid() {
		return Handle{}, false
	}

	return Handle{Container: container, Media: media}, true
}
