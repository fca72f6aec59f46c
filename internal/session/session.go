// Package session wires the components that watch one loaded document.
//
// A Session lives exactly as long as the document it was built for. When the
// page navigates or reloads, the owner closes it and builds a new one.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/command"
	"github.com/llehouerou/adspeed/internal/detect"
	"github.com/llehouerou/adspeed/internal/dismiss"
	"github.com/llehouerou/adspeed/internal/dom"
	"github.com/llehouerou/adspeed/internal/interruption"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/loop"
	"github.com/llehouerou/adspeed/internal/metrics"
	"github.com/llehouerou/adspeed/internal/player"
	"github.com/llehouerou/adspeed/internal/reconcile"
	"github.com/llehouerou/adspeed/internal/signature"
	"github.com/llehouerou/adspeed/internal/trigger"
)

// DefaultPollInterval is the period of the low-frequency evaluation.
const DefaultPollInterval = time.Second

// Config tunes every component of a session.
type Config struct {
	Machine      interruption.Config
	Reconcile    reconcile.Config
	LocatorRetry time.Duration
	PollInterval time.Duration
	SettleDelays []time.Duration
	DismissDelay time.Duration
	ClickStagger time.Duration
	// TrustedClicks enables the privileged click path. The background
	// service still refuses it without consent.
	TrustedClicks bool
}

// Status is a point-in-time view of a session.
type Status struct {
	ID               string    `json:"id"`
	Phase            string    `json:"phase"`
	PlayerReady      bool      `json:"player_ready"`
	StartedAt        time.Time `json:"started_at,omitzero"`
	CalibratedRate   float64   `json:"calibrated_rate,omitempty"`
	SignatureVersion string    `json:"signature_version"`
}

// Session is the composition root for one document.
type Session struct {
	id    string
	doc   dom.Document
	sigs  *signature.Store
	sched loop.Scheduler
	cfg   Config
	log   zerolog.Logger

	locator    *player.Locator
	velocity   *player.Velocity
	detector   *detect.Detector
	machine    *interruption.Machine
	dismiss    *dismiss.Handler
	trigger    *trigger.Trigger
	reconciler *reconcile.Reconciler

	poll    loop.Timer
	rateSub dom.Subscription
	unwatch func()
	started bool
	closed  bool
}

// New builds every component for doc. Nothing runs until Start.
func New(cfg Config, doc dom.Document, sigs *signature.Store, sched loop.Scheduler, sender command.Sender) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	id := uuid.NewString()
	s := &Session{
		id:    id,
		doc:   doc,
		sigs:  sigs,
		sched: sched,
		cfg:   cfg,
		log: log.Derive(func(c *zerolog.Context) {
			*c = c.Str(log.FieldComponent, "session").Str(log.FieldSession, id)
		}),
	}

	s.locator = player.NewLocator(doc, sigs, sched, cfg.LocatorRetry)
	s.velocity = player.NewVelocity(doc, s.locator)
	s.detector = detect.New(doc, s.locator, sigs)

	opts := dismiss.Options{
		Synthetic:  dismiss.NewSyntheticClicker(doc, sched, cfg.ClickStagger),
		CheckDelay: cfg.DismissDelay,
	}
	if cfg.TrustedClicks {
		opts.Trusted = dismiss.NewTrustedClicker(sender, sched)
	}
	s.dismiss = dismiss.New(doc, sigs, sched, opts)

	s.machine = interruption.New(cfg.Machine, interruption.Deps{
		Rates:     s.velocity,
		Sender:    sender,
		Scheduler: sched,
		Detector:  s.detector,
		Dismiss:   s.dismiss,
		Reloader:  doc,
	})
	s.trigger = trigger.New(doc, sigs, sched, s.locator, s.machine, cfg.SettleDelays)
	s.reconciler = reconcile.New(cfg.Reconcile, doc, sched, s.machine, s.detector, s.locator)
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// Machine exposes the state machine.
func (s *Session) Machine() *interruption.Machine {
	return s.machine
}

// Start installs observers, listeners and timers. It must run on the loop.
func (s *Session) Start() error {
	if s.started || s.closed {
		return nil
	}
	s.started = true

	s.unwatch = s.locator.Subscribe(s.onHandle)
	if err := s.trigger.Start(); err != nil {
		return err
	}
	if err := s.reconciler.Initialize(); err != nil {
		return err
	}
	s.locator.Start()
	s.poll = s.sched.Every(s.cfg.PollInterval, s.machine.Evaluate)
	s.locator.OnReady(func(player.Handle) {
		s.machine.Evaluate()
	})

	metrics.SessionStarted()
	s.log.Info().Str(log.FieldSigVersion, s.sigs.Current().Version).Msg("session started")
	return nil
}

// Close detaches everything and unwinds an interruption still in progress,
// so the media is left at its own rate and unmuted. It must run on the loop
// and is safe to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if !s.started {
		return
	}
	s.machine.Close()
	s.dismiss.Close()
	loop.StopTimer(s.poll)
	s.trigger.Stop()
	s.reconciler.Close()
	s.locator.Stop()
	if s.unwatch != nil {
		s.unwatch()
	}
	if s.rateSub != nil {
		s.rateSub.Close()
	}
	metrics.SessionEnded()
	s.log.Info().Str("phase", s.machine.State().Phase.String()).Msg("session closed")
}

// Status reports the current state. It must run on the loop.
func (s *Session) Status() Status {
	st := s.machine.State()
	return Status{
		ID:               s.id,
		Phase:            st.Phase.String(),
		PlayerReady:      s.locator.Ready(),
		StartedAt:        st.StartedAt,
		CalibratedRate:   st.CalibratedRate,
		SignatureVersion: s.sigs.Current().Version,
	}
}

func (s *Session) onHandle(h player.Handle) {
	s.dismiss.OnHandle(h)

	if s.rateSub != nil {
		s.rateSub.Close()
		s.rateSub = nil
	}
	sub, err := s.doc.Listen(h.Media, "ratechange", func() {
		s.log.Debug().Float64(log.FieldRate, s.velocity.Get()).Msg("playback rate changed")
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("attaching ratechange listener failed")
		return
	}
	s.rateSub = sub
}
