package dismiss

import (
	"errors"
	"time"

	"github.com/llehouerou/adspeed/internal/command"
	"github.com/llehouerou/adspeed/internal/dom"
	"github.com/llehouerou/adspeed/internal/loop"
)

// DefaultStagger separates the events of a synthetic click.
const DefaultStagger = 50 * time.Millisecond

// ErrClickRefused is reported when the trusted channel answers without success.
var ErrClickRefused = errors.New("trusted click refused")

// Target is what a click aims at: the control and its centre in viewport
// coordinates.
type Target struct {
	Element dom.Element
	X, Y    float64
}

// Clicker performs a click. done runs on the session loop exactly once.
type Clicker interface {
	Click(t Target, done func(error))
}

// TrustedClicker routes the click through the privileged command channel.
// Replies arrive on the bus goroutine and are posted back onto the loop.
type TrustedClicker struct {
	sender command.Sender
	sched  loop.Scheduler
}

// NewTrustedClicker creates a trusted clicker.
func NewTrustedClicker(sender command.Sender, sched loop.Scheduler) *TrustedClicker {
	return &TrustedClicker{sender: sender, sched: sched}
}

func (c *TrustedClicker) Click(t Target, done func(error)) {
	err := c.sender.RequestClick(t.X, t.Y, func(resp command.Response) {
		c.sched.Post(func() {
			if resp.Success {
				done(nil)
				return
			}
			if resp.Error != "" {
				done(errors.Join(ErrClickRefused, errors.New(resp.Error)))
				return
			}
			done(ErrClickRefused)
		})
	})
	if err != nil {
		c.sched.Post(func() { done(err) })
	}
}

// SyntheticClicker dispatches mousedown, mouseup and click on the control,
// spaced by a short stagger.
type SyntheticClicker struct {
	doc     dom.Document
	sched   loop.Scheduler
	stagger time.Duration
}

// NewSyntheticClicker creates a synthetic clicker. A zero stagger uses
// DefaultStagger.
func NewSyntheticClicker(doc dom.Document, sched loop.Scheduler, stagger time.Duration) *SyntheticClicker {
	if stagger <= 0 {
		stagger = DefaultStagger
	}
	return &SyntheticClicker{doc: doc, sched: sched, stagger: stagger}
}

var syntheticSequence = []string{"mousedown", "mouseup", "click"}

func (c *SyntheticClicker) Click(t Target, done func(error)) {
	c.step(t.Element, 0, done)
}

func (c *SyntheticClicker) step(el dom.Element, i int, done func(error)) {
	if err := c.doc.DispatchMouse(el, syntheticSequence[i]); err != nil {
		done(err)
		return
	}
	if i == len(syntheticSequence)-1 {
		done(nil)
		return
	}
	c.sched.After(c.stagger, func() { c.step(el, i+1, done) })
}
