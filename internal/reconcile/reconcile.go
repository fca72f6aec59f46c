// Package reconcile re-checks the state machine against the document at
// moments where it may have drifted, and recovers stuck interruptions.
package reconcile

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/detect"
	"github.com/llehouerou/adspeed/internal/dom"
	"github.com/llehouerou/adspeed/internal/interruption"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/loop"
	"github.com/llehouerou/adspeed/internal/metrics"
	"github.com/llehouerou/adspeed/internal/player"
)

// Config tunes the reconciler.
type Config struct {
	// VisibilityDelay waits for the page to settle after becoming visible.
	VisibilityDelay time.Duration
	// Interval is the period of the stuck-state check.
	Interval time.Duration
	// MaxActive is how long an interruption may last before it is forced
	// to end.
	MaxActive time.Duration
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		VisibilityDelay: time.Second,
		Interval:        5 * time.Second,
		MaxActive:       3 * time.Minute,
	}
}

// Machine is the state machine as seen by the reconciler.
type Machine interface {
	detect.Transitioner
	State() interruption.State
	Terminated() bool
}

// Validator compares belief with a fresh detection.
type Validator interface {
	Validate(active bool) bool
	ForceSync(t detect.Transitioner)
}

// HandleSubscriber notifies every player handle installation.
type HandleSubscriber interface {
	Subscribe(fn func(player.Handle)) func()
}

// Reconciler owns the defensive checks of one session.
type Reconciler struct {
	cfg     Config
	doc     dom.Document
	sched   loop.Scheduler
	machine Machine
	valid   Validator
	handles HandleSubscriber
	log     zerolog.Logger

	visibility  dom.Subscription
	media       []dom.Subscription
	unsubscribe func()
	ticker      loop.Timer
	pending     loop.Timer
}

// New creates a reconciler. Zero config fields take their defaults.
func New(cfg Config, doc dom.Document, sched loop.Scheduler, machine Machine, valid Validator, handles HandleSubscriber) *Reconciler {
	d := DefaultConfig()
	if cfg.VisibilityDelay <= 0 {
		cfg.VisibilityDelay = d.VisibilityDelay
	}
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = d.MaxActive
	}
	return &Reconciler{
		cfg:     cfg,
		doc:     doc,
		sched:   sched,
		machine: machine,
		valid:   valid,
		handles: handles,
		log:     log.WithComponent("reconciler"),
	}
}

// Initialize installs the visibility listener, the media play/pause
// listeners and the periodic check.
func (r *Reconciler) Initialize() error {
	if r.ticker != nil {
		return nil
	}
	sub, err := r.doc.OnVisibilityChange(r.onVisibility)
	if err != nil {
		return err
	}
	r.visibility = sub
	r.unsubscribe = r.handles.Subscribe(r.attachMedia)
	r.ticker = r.sched.Every(r.cfg.Interval, r.tick)
	return nil
}

// Close removes every listener and timer.
func (r *Reconciler) Close() {
	if r.visibility != nil {
		r.visibility.Close()
		r.visibility = nil
	}
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.detachMedia()
	loop.StopTimer(r.ticker)
	loop.StopTimer(r.pending)
	r.ticker, r.pending = nil, nil
}

// Check validates the machine against the document and resyncs on mismatch.
func (r *Reconciler) Check() {
	if r.machine.Terminated() {
		return
	}
	if r.valid.Validate(r.machine.Active()) {
		return
	}
	metrics.IncResync()
	r.valid.ForceSync(r.machine)
}

func (r *Reconciler) onVisibility(hidden bool) {
	if hidden {
		return
	}
	loop.StopTimer(r.pending)
	r.pending = r.sched.After(r.cfg.VisibilityDelay, func() {
		r.pending = nil
		r.Check()
	})
}

func (r *Reconciler) attachMedia(h player.Handle) {
	r.detachMedia()
	for _, event := range []string{"play", "pause"} {
		sub, err := r.doc.Listen(h.Media, event, r.Check)
		if err != nil {
			r.log.Warn().Err(err).Str("event", event).Msg("attaching media listener failed")
			continue
		}
		r.media = append(r.media, sub)
	}
}

func (r *Reconciler) detachMedia() {
	for _, sub := range r.media {
		sub.Close()
	}
	r.media = nil
}

func (r *Reconciler) tick() {
	if !r.machine.Active() {
		return
	}
	st := r.machine.State()
	activeFor := r.sched.Now().Sub(st.StartedAt)
	if activeFor > r.cfg.MaxActive {
		r.log.Warn().Dur(log.FieldActiveFor, activeFor).Msg("interruption stuck, forcing end")
		metrics.RecordTransition("timeout")
		r.machine.ForceEnd()
		return
	}
	r.Check()
}
