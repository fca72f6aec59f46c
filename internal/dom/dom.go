// Package dom describes the document surface the session components work
// against.
//
// The document is owned by the host page and changes without notice. Elements
// are referenced by opaque identities; an identity names one element instance
// for as long as it lives, and operations against an element that left the
// document are silently ignored by the host, exactly like a stale reference in
// the page itself.
package dom

import "fmt"

// NodeID identifies one element instance within a document.
type NodeID uint64

// Element is a reference to an element instance. The zero value is "no element".
type Element struct {
	ID  NodeID
	Tag string
}

// Valid reports whether e refers to an element.
func (e Element) Valid() bool {
	return e.ID != 0
}

func (e Element) String() string {
	if !e.Valid() {
		return "<none>"
	}
	return fmt.Sprintf("<%s#%d>", e.Tag, e.ID)
}

// Rect is a bounding box in CSS pixels relative to the viewport.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the centre point of the rectangle.
func (r Rect) Center() (x, y float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Viewport is the visible area of the document in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point lies inside the viewport.
func (v Viewport) Contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x < v.Width && y < v.Height
}

// Style is the subset of computed style and state that decides whether a
// control can be interacted with.
type Style struct {
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    float64 `json:"opacity"`
	Disabled   bool    `json:"disabled"`
}

// Visible reports whether the element is rendered and not fully transparent.
func (s Style) Visible() bool {
	return s.Display != "none" && s.Visibility != "hidden" && s.Opacity > 0
}

// Document is the live document of one page load.
type Document interface {
	// QueryFirst returns the first element matching selector, or the zero
	// Element when nothing matches.
	QueryFirst(selector string) (Element, error)
	// QueryWithin is QueryFirst scoped to the descendants of scope.
	QueryWithin(scope Element, selector string) (Element, error)
	// QueryAll returns every element matching selector in document order.
	QueryAll(selector string) ([]Element, error)
	// Exists reports whether any element matches selector.
	Exists(selector string) (bool, error)
	// Connected reports whether el is still attached to the document.
	Connected(el Element) (bool, error)

	// PlaybackRate reads the playback rate of a media element.
	PlaybackRate(media Element) (float64, error)
	// SetPlaybackRate assigns the playback rate of a media element. Hosts
	// reject rates they do not support with an error.
	SetPlaybackRate(media Element, rate float64) error

	// Style returns the computed interactability state of el.
	Style(el Element) (Style, error)
	// Rect returns the bounding box of el.
	Rect(el Element) (Rect, error)
	// Viewport returns the current viewport size.
	Viewport() (Viewport, error)
	// DispatchMouse dispatches an untrusted mouse event of the given type
	// ("mousedown", "mouseup", "click") on el.
	DispatchMouse(el Element, eventType string) error

	// Hidden reports whether the document is currently hidden.
	Hidden() (bool, error)
	// Reload reloads the page, ending this document.
	Reload() error

	// Observe starts delivering mutation batches to fn. The returned
	// Subscription stops delivery.
	Observe(opts ObserveOptions, fn func([]Mutation)) (Subscription, error)
	// Listen delivers the named DOM event fired on el to fn.
	Listen(el Element, event string, fn func()) (Subscription, error)
	// OnVisibilityChange delivers document visibility changes to fn.
	OnVisibilityChange(fn func(hidden bool)) (Subscription, error)
}

// Subscription is an active observation or listener.
type Subscription interface {
	Close()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Close() {
	if f != nil {
		f()
	}
}
