// Package cdp attaches to a Chromium tab over the DevTools protocol and
// exposes its page as a dom.Document.
//
// A small runtime is injected into every document of the tab. It keeps
// element identities, answers queries, and reports mutations and events
// through a page binding. Binding events arrive on chromedp's goroutine and
// are handed to the session loop with the post function given at attach.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/log"
)

// ErrNoTab is returned when no tab matches and no start URL is configured.
var ErrNoTab = errors.New("cdp: no matching tab")

// DefaultClickStagger separates the move, press and release of a trusted
// click.
const DefaultClickStagger = 50 * time.Millisecond

// Tab is an attached browser tab.
type Tab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	post    func(func())
	timeout time.Duration
	stagger time.Duration
	routes  *router
	log     zerolog.Logger

	mu         sync.Mutex
	onNavigate []func()
	closed     bool
}

func newTab(ctx context.Context, cancel context.CancelFunc, post func(func()), timeout, stagger time.Duration) *Tab {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if stagger <= 0 {
		stagger = DefaultClickStagger
	}
	return &Tab{
		ctx:     ctx,
		cancel:  cancel,
		post:    post,
		timeout: timeout,
		stagger: stagger,
		routes:  newRouter(),
		log:     log.WithComponent("cdp"),
	}
}

// install registers the binding and the runtime for this and every future
// document, then starts listening for target events.
func (t *Tab) install() error {
	chromedp.ListenTarget(t.ctx, t.handleEvent)
	err := chromedp.Run(t.ctx,
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(runtimeJS).Do(ctx)
			return err
		}),
		chromedp.Evaluate(runtimeJS, nil),
	)
	if err != nil {
		return fmt.Errorf("install page runtime: %w", err)
	}
	return nil
}

func (t *Tab) handleEvent(ev any) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		if e.Name != bindingName {
			return
		}
		we, err := decodeEvent(e.Payload)
		if err != nil {
			t.log.Debug().Err(err).Msg("ignoring binding call")
			return
		}
		t.routes.dispatch(we)
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		t.log.Info().Str(log.FieldURL, e.Frame.URL).Msg("main frame navigated")
		t.routes.next()
		t.mu.Lock()
		fns := append([]func(){}, t.onNavigate...)
		t.mu.Unlock()
		for _, fn := range fns {
			t.post(fn)
		}
	}
}

// Document returns the document currently loaded in the tab. It stays
// valid until the next main-frame navigation; afterwards its calls fail
// with ErrDocumentGone.
func (t *Tab) Document() *Document {
	return &Document{
		ctx:     t.ctx,
		ev:      t,
		routes:  t.routes,
		gen:     t.routes.next(),
		post:    t.post,
		timeout: t.timeout,
		reload: func(ctx context.Context) error {
			return chromedp.Run(ctx, page.Reload())
		},
	}
}

// OnNavigate registers fn to run on the loop after every main-frame
// navigation.
func (t *Tab) OnNavigate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNavigate = append(t.onNavigate, fn)
}

func (t *Tab) evaluate(ctx context.Context, expr string, out any) error {
	return chromedp.Run(ctx, chromedp.Evaluate(expr, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithSilent(true)
	}))
}

// SetMuted mutes or unmutes every media element of the page.
func (t *Tab) SetMuted(ctx context.Context, muted bool) error {
	expr, err := call("mute", muted)
	if err != nil {
		return err
	}
	ctx, cancel := t.bound(ctx)
	defer cancel()
	var ok bool
	return t.evaluate(ctx, expr, &ok)
}

// DispatchTrustedClick clicks at viewport coordinates (x, y) through the
// input domain, producing events the page sees as user generated. Move,
// press and release are spaced by the tab's click stagger.
func (t *Tab) DispatchTrustedClick(ctx context.Context, x, y float64) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return dispatchSequence(ctx, clickSequence(x, y), t.stagger, func(ctx context.Context, p *input.DispatchMouseEventParams) error {
			return p.Do(ctx)
		})
	}))
	if err != nil {
		return fmt.Errorf("dispatch trusted click: %w", err)
	}
	t.log.Debug().Float64("x", x).Float64("y", y).Msg("trusted click dispatched")
	return nil
}

// clickSequence is a left click at (x, y): move, press, release.
func clickSequence(x, y float64) []*input.DispatchMouseEventParams {
	return []*input.DispatchMouseEventParams{
		input.DispatchMouseEvent(input.MouseMoved, x, y),
		input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(input.Left).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(input.Left).WithClickCount(1),
	}
}

type mouseDispatcher func(ctx context.Context, p *input.DispatchMouseEventParams) error

// dispatchSequence sends each event with stagger between consecutive ones.
// It stops at the first failure or when ctx ends during a pause.
func dispatchSequence(ctx context.Context, events []*input.DispatchMouseEventParams, stagger time.Duration, do mouseDispatcher) error {
	for i, ev := range events {
		if i > 0 && stagger > 0 {
			if err := chromedp.Sleep(stagger).Do(ctx); err != nil {
				return err
			}
		}
		if err := do(ctx, ev); err != nil {
			return fmt.Errorf("%s: %w", ev.Type, err)
		}
	}
	return nil
}

// bound runs a request on the tab's target under the caller's deadline.
func (t *Tab) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	tabCtx, cancel := context.WithTimeout(t.ctx, t.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return tabCtx, func() {
		stop()
		cancel()
	}
}

// Close releases the tab and stops event delivery.
func (t *Tab) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.routes.next()
	t.cancel()
}
