// Package trigger turns document mutations into evaluations of the
// interruption state machine.
package trigger

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/dom"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/loop"
	"github.com/llehouerou/adspeed/internal/signature"
)

// DefaultSettleDelays are the follow-up evaluations after a relevant batch.
var DefaultSettleDelays = []time.Duration{50 * time.Millisecond, 250 * time.Millisecond}

// Evaluator is the state machine as seen by the trigger.
type Evaluator interface {
	Evaluate()
	ScheduleDismiss()
}

// Refresher re-resolves the player handle.
type Refresher interface {
	Refresh() bool
}

// Trigger observes the document and evaluates on relevant changes.
type Trigger struct {
	doc     dom.Document
	sigs    *signature.Store
	sched   loop.Scheduler
	handles Refresher
	eval    Evaluator
	delays  []time.Duration
	log     zerolog.Logger

	sub      dom.Subscription
	observed signature.Set
	settle   []loop.Timer
}

// New creates a trigger. Nil delays use DefaultSettleDelays.
func New(doc dom.Document, sigs *signature.Store, sched loop.Scheduler, handles Refresher, eval Evaluator, delays []time.Duration) *Trigger {
	if delays == nil {
		delays = DefaultSettleDelays
	}
	return &Trigger{
		doc:     doc,
		sigs:    sigs,
		sched:   sched,
		handles: handles,
		eval:    eval,
		delays:  delays,
		log:     log.WithComponent("trigger"),
	}
}

// Start begins observing. Calling it again while observing does nothing.
func (t *Trigger) Start() error {
	if t.sub != nil {
		return nil
	}
	return t.observe(t.sigs.Current())
}

// Stop ends observation and cancels pending settle evaluations.
func (t *Trigger) Stop() {
	if t.sub != nil {
		t.sub.Close()
		t.sub = nil
	}
	t.cancelSettle()
}

func (t *Trigger) observe(sigs signature.Set) error {
	sub, err := t.doc.Observe(dom.ObserveOptions{
		AttributeFilter: []string{"class"},
		Probes:          Probes(sigs),
	}, t.handle)
	if err != nil {
		return err
	}
	t.sub = sub
	t.observed = sigs
	t.log.Debug().Str(log.FieldSigVersion, sigs.Version).Msg("observing document")
	return nil
}

func (t *Trigger) handle(batch []dom.Mutation) {
	if t.sub == nil {
		return
	}
	r := Classify(batch, t.observed)
	t.resubscribeIfChanged()
	if !r.Any() {
		return
	}

	if r.Media {
		t.handles.Refresh()
	}
	if r.Interruption || r.Warning {
		t.eval.Evaluate()
		t.armSettle()
	}
	if r.Dismiss {
		t.eval.ScheduleDismiss()
	}
}

// resubscribeIfChanged re-observes with fresh probes after a signature
// reload, whether or not the reload bumped the version.
func (t *Trigger) resubscribeIfChanged() {
	current := t.sigs.Current()
	if current.Equal(t.observed) {
		return
	}
	old := t.sub
	if err := t.observe(current); err != nil {
		t.log.Error().Err(err).Msg("re-observing after signature reload failed")
		return
	}
	old.Close()
}

func (t *Trigger) armSettle() {
	t.cancelSettle()
	for _, d := range t.delays {
		t.settle = append(t.settle, t.sched.After(d, t.eval.Evaluate))
	}
}

func (t *Trigger) cancelSettle() {
	for _, tm := range t.settle {
		tm.Stop()
	}
	t.settle = t.settle[:0]
}
