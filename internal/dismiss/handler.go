// Package dismiss finds dismiss controls shown during an interruption and
// activates each of them once.
package dismiss

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/dom"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/loop"
	"github.com/llehouerou/adspeed/internal/metrics"
	"github.com/llehouerou/adspeed/internal/player"
	"github.com/llehouerou/adspeed/internal/signature"
)

// DefaultCheckDelay is how long a newly seen control is left alone before it
// is checked and clicked.
const DefaultCheckDelay = 500 * time.Millisecond

// Handler tracks processed controls for one document.
type Handler struct {
	doc       dom.Document
	sigs      *signature.Store
	sched     loop.Scheduler
	trusted   Clicker
	synthetic Clicker
	delay     time.Duration
	log       zerolog.Logger

	processed map[dom.NodeID]struct{}
	pending   map[dom.NodeID]loop.Timer
	container dom.Element
	closed    bool
}

// Options configures a Handler.
type Options struct {
	// Trusted is the privileged clicker. Nil disables the trusted path.
	Trusted Clicker
	// Synthetic is the fallback clicker.
	Synthetic Clicker
	// CheckDelay defaults to DefaultCheckDelay.
	CheckDelay time.Duration
}

// New creates a handler.
func New(doc dom.Document, sigs *signature.Store, sched loop.Scheduler, opts Options) *Handler {
	if opts.CheckDelay <= 0 {
		opts.CheckDelay = DefaultCheckDelay
	}
	return &Handler{
		doc:       doc,
		sigs:      sigs,
		sched:     sched,
		trusted:   opts.Trusted,
		synthetic: opts.Synthetic,
		delay:     opts.CheckDelay,
		log:       log.WithComponent("dismiss"),
		processed: make(map[dom.NodeID]struct{}),
		pending:   make(map[dom.NodeID]loop.Timer),
	}
}

// Scan looks for dismiss controls and schedules one delayed check per
// control not seen before. A control is marked processed before its check
// runs, so repeated scans never act on it twice.
func (h *Handler) Scan() {
	if h.closed {
		return
	}
	selector := h.sigs.Current().Dismiss
	controls, err := h.doc.QueryAll(selector)
	if err != nil {
		h.log.Debug().Err(err).Str("selector", selector).Msg("dismiss control lookup failed")
		return
	}
	for _, el := range controls {
		if _, seen := h.processed[el.ID]; seen {
			continue
		}
		h.processed[el.ID] = struct{}{}
		h.log.Debug().Stringer(log.FieldElement, el).Msg("dismiss control found")
		h.pending[el.ID] = h.sched.After(h.delay, func() {
			delete(h.pending, el.ID)
			h.check(el)
		})
	}
}

// Close stops every pending control check. Scans after Close do nothing.
func (h *Handler) Close() {
	if h.closed {
		return
	}
	h.closed = true
	for id, t := range h.pending {
		loop.StopTimer(t)
		delete(h.pending, id)
	}
}

// Processed reports whether el has already been acted upon.
func (h *Handler) Processed(el dom.Element) bool {
	_, ok := h.processed[el.ID]
	return ok
}

// OnHandle forgets processed controls when the player container is replaced.
func (h *Handler) OnHandle(handle player.Handle) {
	if h.container.Valid() && handle.Container != h.container {
		h.log.Debug().Int("forgotten", len(h.processed)).Msg("player replaced, clearing processed controls")
		clear(h.processed)
	}
	h.container = handle.Container
}

// IsInteractable reports whether el is attached, rendered, visible and enabled.
func (h *Handler) IsInteractable(el dom.Element) bool {
	connected, err := h.doc.Connected(el)
	if err != nil || !connected {
		return false
	}
	style, err := h.doc.Style(el)
	if err != nil {
		return false
	}
	return style.Visible() && !style.Disabled
}

// Dismiss clicks el once. The trusted path is used when available and the
// control's centre is inside the viewport; the synthetic path covers every
// other case and every trusted failure.
func (h *Handler) Dismiss(el dom.Element) {
	target, inView := h.target(el)
	if h.trusted == nil || !inView {
		h.clickSynthetic(target)
		return
	}
	h.trusted.Click(target, func(err error) {
		metrics.RecordDismiss("trusted", err == nil)
		if err == nil {
			h.log.Info().Str(log.FieldClickPath, "trusted").Stringer(log.FieldElement, el).Msg("dismiss clicked")
			return
		}
		h.log.Warn().Err(err).Msg("trusted click failed, falling back to synthetic")
		h.clickSynthetic(target)
	})
}

func (h *Handler) check(el dom.Element) {
	if h.closed {
		return
	}
	if !h.IsInteractable(el) {
		h.log.Debug().Stringer(log.FieldElement, el).Msg("dismiss control not interactable")
		return
	}
	h.Dismiss(el)
}

func (h *Handler) target(el dom.Element) (Target, bool) {
	t := Target{Element: el}
	rect, err := h.doc.Rect(el)
	if err != nil {
		return t, false
	}
	t.X, t.Y = rect.Center()
	vp, err := h.doc.Viewport()
	if err != nil {
		return t, false
	}
	return t, vp.Contains(t.X, t.Y)
}

func (h *Handler) clickSynthetic(t Target) {
	if h.synthetic == nil {
		return
	}
	h.synthetic.Click(t, func(err error) {
		metrics.RecordDismiss("synthetic", err == nil)
		if err != nil {
			h.log.Warn().Err(err).Stringer(log.FieldElement, t.Element).Msg("synthetic click failed")
			return
		}
		h.log.Info().
			Str(log.FieldClickPath, "synthetic").
			Stringer(log.FieldElement, t.Element).
			Msg("dismiss clicked")
	})
}
