package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/llehouerou/adspeed/internal/dom"
)

// DefaultCallTimeout bounds every page evaluation.
const DefaultCallTimeout = 2 * time.Second

// ErrDocumentGone is returned by documents replaced by a navigation.
var ErrDocumentGone = errors.New("cdp: document replaced by navigation")

// evaluator runs an expression in the page and decodes its result into out.
type evaluator interface {
	evaluate(ctx context.Context, expr string, out any) error
}

// Document is a dom.Document backed by the runtime injected into a tab.
// Queries are synchronous page evaluations; events arrive through the page
// binding and are handed to post.
type Document struct {
	ctx     context.Context
	ev      evaluator
	routes  *router
	gen     uint64
	post    func(func())
	timeout time.Duration
	reload  func(ctx context.Context) error
}

// Verify Document implements dom.Document at compile time.
var _ dom.Document = (*Document)(nil)

func (d *Document) run(fn string, out any, args ...any) error {
	if !d.routes.current(d.gen) {
		return ErrDocumentGone
	}
	expr, err := call(fn, args...)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	if out == nil {
		var discard json.RawMessage
		out = &discard
	}
	if err := d.ev.evaluate(ctx, expr, out); err != nil {
		return fmt.Errorf("cdp: %s: %w", fn, err)
	}
	return nil
}

func (d *Document) QueryFirst(selector string) (dom.Element, error) {
	var r *wireRef
	if err := d.run("first", &r, selector); err != nil {
		return dom.Element{}, err
	}
	return r.element(), nil
}

func (d *Document) QueryWithin(scope dom.Element, selector string) (dom.Element, error) {
	var r *wireRef
	if err := d.run("within", &r, uint64(scope.ID), selector); err != nil {
		return dom.Element{}, err
	}
	return r.element(), nil
}

func (d *Document) QueryAll(selector string) ([]dom.Element, error) {
	var refs []*wireRef
	if err := d.run("all", &refs, selector); err != nil {
		return nil, err
	}
	out := make([]dom.Element, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.element())
	}
	return out, nil
}

func (d *Document) Exists(selector string) (bool, error) {
	var ok bool
	err := d.run("exists", &ok, selector)
	return ok, err
}

func (d *Document) Connected(el dom.Element) (bool, error) {
	if !el.Valid() {
		return false, nil
	}
	var ok bool
	err := d.run("connected", &ok, uint64(el.ID))
	return ok, err
}

func (d *Document) PlaybackRate(media dom.Element) (float64, error) {
	var rate float64
	err := d.run("rate", &rate, uint64(media.ID))
	return rate, err
}

func (d *Document) SetPlaybackRate(media dom.Element, rate float64) error {
	return d.run("setRate", nil, uint64(media.ID), rate)
}

func (d *Document) Style(el dom.Element) (dom.Style, error) {
	var st dom.Style
	err := d.run("style", &st, uint64(el.ID))
	return st, err
}

func (d *Document) Rect(el dom.Element) (dom.Rect, error) {
	var r dom.Rect
	err := d.run("rect", &r, uint64(el.ID))
	return r, err
}

func (d *Document) Viewport() (dom.Viewport, error) {
	var v dom.Viewport
	err := d.run("viewport", &v)
	return v, err
}

func (d *Document) DispatchMouse(el dom.Element, eventType string) error {
	return d.run("mouse", nil, uint64(el.ID), eventType)
}

func (d *Document) Hidden() (bool, error) {
	var hidden bool
	err := d.run("hidden", &hidden)
	return hidden, err
}

func (d *Document) Reload() error {
	if !d.routes.current(d.gen) {
		return ErrDocumentGone
	}
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	return d.reload(ctx)
}

func (d *Document) Observe(opts dom.ObserveOptions, fn func([]dom.Mutation)) (dom.Subscription, error) {
	attrs := opts.AttributeFilter
	if attrs == nil {
		attrs = []string{}
	}
	probes := opts.Probes
	if probes == nil {
		probes = []string{}
	}
	return d.subscribe(func(ev wireEvent) func() {
		if ev.Kind != "mutations" || len(ev.Records) == 0 {
			return nil
		}
		muts := mutations(ev.Records, probes)
		return func() { fn(muts) }
	}, "observe", attrs, probes)
}

func (d *Document) Listen(el dom.Element, event string, fn func()) (dom.Subscription, error) {
	return d.subscribe(func(ev wireEvent) func() {
		if ev.Kind != "event" {
			return nil
		}
		return fn
	}, "listen", uint64(el.ID), event)
}

func (d *Document) OnVisibilityChange(fn func(hidden bool)) (dom.Subscription, error) {
	return d.subscribe(func(ev wireEvent) func() {
		if ev.Kind != "visibility" {
			return nil
		}
		hidden := ev.Hidden
		return func() { fn(hidden) }
	}, "visibility")
}

// subscribe registers a runtime subscription. handle turns an event into
// the callback to post, or nil to ignore it. Callbacks posted before Close
// but run after it are dropped.
func (d *Document) subscribe(handle func(wireEvent) func(), fn string, args ...any) (dom.Subscription, error) {
	var sub int64
	if err := d.run(fn, &sub, args...); err != nil {
		return nil, err
	}
	closed := false
	d.routes.add(d.gen, sub, func(ev wireEvent) {
		cb := handle(ev)
		if cb == nil {
			return
		}
		d.post(func() {
			if !closed {
				cb()
			}
		})
	})
	return dom.SubscriptionFunc(func() {
		if closed {
			return
		}
		closed = true
		d.routes.remove(d.gen, sub)
		_ = d.run("unsubscribe", nil, sub)
	}), nil
}
