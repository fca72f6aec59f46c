// Package htmldoc implements dom.Document over an in-memory HTML tree.
//
// It stands in for the browser in tests and in offline runs: the tree is
// parsed with goquery, media elements keep their playback state in memory, and
// every mutation made through the Document's mutators is reported to
// observers in batches, the way a MutationObserver would report it.
//
// A Document is not safe for concurrent use; drive it from the session loop.
package htmldoc

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/llehouerou/adspeed/internal/dom"
)

// ErrUnknownElement is returned for element references the document never issued.
var ErrUnknownElement = errors.New("htmldoc: unknown element")

// MouseEvent is a synthetic mouse event recorded by DispatchMouse.
type MouseEvent struct {
	Element dom.NodeID
	Type    string
}

type media struct {
	rate  float64
	muted bool
}

// Document is an in-memory dom.Document.
type Document struct {
	root  *goquery.Document
	post  func(func())
	ids   map[*html.Node]dom.NodeID
	nodes map[dom.NodeID]*html.Node
	next  dom.NodeID

	media     map[dom.NodeID]*media
	rects     map[dom.NodeID]dom.Rect
	viewport  dom.Viewport
	hidden    bool
	reloads   int
	mouse     []MouseEvent
	queryErr  error
	rejectSet func(rate float64) bool

	pending    []record
	scheduled  bool
	observers  []*observer
	listeners  []*listener
	visibility []*visibilityListener
}

// Verify Document implements dom.Document at compile time.
var _ dom.Document = (*Document)(nil)

// Option configures a Document.
type Option func(*Document)

// WithPost routes mutation and event delivery through post, typically a
// scheduler's Post. Without it delivery is synchronous.
func WithPost(post func(func())) Option {
	return func(d *Document) { d.post = post }
}

// WithViewport sets the initial viewport size.
func WithViewport(w, h float64) Option {
	return func(d *Document) { d.viewport = dom.Viewport{Width: w, Height: h} }
}

// WithRateLimit makes SetPlaybackRate reject rates above max, like browsers
// that cap the playback rate.
func WithRateLimit(maxRate float64) Option {
	return func(d *Document) {
		d.rejectSet = func(rate float64) bool { return rate > maxRate }
	}
}

// New parses markup into a document.
func New(markup string, opts ...Option) (*Document, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	d := &Document{
		root:     root,
		ids:      make(map[*html.Node]dom.NodeID),
		nodes:    make(map[dom.NodeID]*html.Node),
		media:    make(map[dom.NodeID]*media),
		rects:    make(map[dom.NodeID]dom.Rect),
		viewport: dom.Viewport{Width: 1280, Height: 720},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// MustNew is New for test fixtures.
func MustNew(markup string, opts ...Option) *Document {
	d, err := New(markup, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) element(n *html.Node) dom.Element {
	id, ok := d.ids[n]
	if !ok {
		d.next++
		id = d.next
		d.ids[n] = id
		d.nodes[id] = n
	}
	return dom.Element{ID: id, Tag: n.Data}
}

func (d *Document) node(el dom.Element) (*html.Node, error) {
	n, ok := d.nodes[el.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownElement, el)
	}
	return n, nil
}

func (d *Document) find(scope *goquery.Selection, selector string) (*goquery.Selection, error) {
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return scope.Find(selector), nil
}

func (d *Document) QueryFirst(selector string) (dom.Element, error) {
	sel, err := d.find(d.root.Selection, selector)
	if err != nil || sel.Length() == 0 {
		return dom.Element{}, err
	}
	return d.element(sel.Get(0)), nil
}

func (d *Document) QueryWithin(scope dom.Element, selector string) (dom.Element, error) {
	n, err := d.node(scope)
	if err != nil {
		return dom.Element{}, err
	}
	sel, err := d.find(goquery.NewDocumentFromNode(n).Selection, selector)
	if err != nil || sel.Length() == 0 {
		return dom.Element{}, err
	}
	return d.element(sel.Get(0)), nil
}

func (d *Document) QueryAll(selector string) ([]dom.Element, error) {
	sel, err := d.find(d.root.Selection, selector)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, d.element(n))
	}
	return out, nil
}

func (d *Document) Exists(selector string) (bool, error) {
	sel, err := d.find(d.root.Selection, selector)
	if err != nil {
		return false, err
	}
	return sel.Length() > 0, nil
}

func (d *Document) Connected(el dom.Element) (bool, error) {
	n, err := d.node(el)
	if err != nil {
		return false, nil //nolint:nilerr // unknown references are simply not connected
	}
	return d.attached(n), nil
}

func (d *Document) attached(n *html.Node) bool {
	top := d.root.Get(0)
	for p := n; p != nil; p = p.Parent {
		if p == top {
			return true
		}
	}
	return false
}

func (d *Document) mediaState(el dom.Element) (*media, error) {
	n, err := d.node(el)
	if err != nil {
		return nil, err
	}
	if n.Data != "video" && n.Data != "audio" {
		return nil, fmt.Errorf("htmldoc: %s is not a media element", el)
	}
	m, ok := d.media[el.ID]
	if !ok {
		m = &media{rate: 1}
		d.media[el.ID] = m
	}
	return m, nil
}

func (d *Document) PlaybackRate(el dom.Element) (float64, error) {
	m, err := d.mediaState(el)
	if err != nil {
		return 0, err
	}
	return m.rate, nil
}

func (d *Document) SetPlaybackRate(el dom.Element, rate float64) error {
	m, err := d.mediaState(el)
	if err != nil {
		return err
	}
	if math.IsNaN(rate) || rate <= 0 || (d.rejectSet != nil && d.rejectSet(rate)) {
		return fmt.Errorf("htmldoc: playback rate %v is not supported", rate)
	}
	if m.rate != rate {
		m.rate = rate
		d.fire(el.ID, "ratechange")
	}
	return nil
}

// SetMuted sets the muted flag of every media element in the document.
func (d *Document) SetMuted(muted bool) {
	for _, n := range d.root.Find("video, audio").Nodes {
		m, _ := d.mediaState(d.element(n))
		m.muted = muted
	}
}

// Muted reports the muted flag of a media element.
func (d *Document) Muted(el dom.Element) bool {
	m, err := d.mediaState(el)
	return err == nil && m.muted
}

func (d *Document) Style(el dom.Element) (dom.Style, error) {
	n, err := d.node(el)
	if err != nil {
		return dom.Style{}, err
	}
	st := dom.Style{Display: "block", Visibility: "visible", Opacity: 1}
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		own := inlineStyle(p)
		if own.display == "none" || hasAttr(p, "hidden") {
			st.Display = "none"
		}
		if own.visibility == "hidden" && p == n {
			st.Visibility = "hidden"
		}
		if own.opacity != nil {
			st.Opacity *= *own.opacity
		}
	}
	st.Disabled = hasAttr(n, "disabled") || attr(n, "aria-disabled") == "true"
	return st, nil
}

func (d *Document) Rect(el dom.Element) (dom.Rect, error) {
	if _, err := d.node(el); err != nil {
		return dom.Rect{}, err
	}
	return d.rects[el.ID], nil
}

// SetRect sets the bounding box reported for el.
func (d *Document) SetRect(el dom.Element, r dom.Rect) {
	d.rects[el.ID] = r
}

func (d *Document) Viewport() (dom.Viewport, error) {
	return d.viewport, nil
}

func (d *Document) DispatchMouse(el dom.Element, eventType string) error {
	if _, err := d.node(el); err != nil {
		return err
	}
	d.mouse = append(d.mouse, MouseEvent{Element: el.ID, Type: eventType})
	d.fire(el.ID, eventType)
	return nil
}

// MouseEvents returns the synthetic mouse events dispatched so far.
func (d *Document) MouseEvents() []MouseEvent {
	return slices.Clone(d.mouse)
}

func (d *Document) Hidden() (bool, error) {
	return d.hidden, nil
}

// SetHidden changes document visibility and notifies listeners.
func (d *Document) SetHidden(hidden bool) {
	if d.hidden == hidden {
		return
	}
	d.hidden = hidden
	for _, l := range slices.Clone(d.visibility) {
		if l.closed {
			continue
		}
		fn := l.fn
		d.deliver(func() { fn(hidden) })
	}
}

func (d *Document) Reload() error {
	d.reloads++
	return nil
}

// Reloads returns how many times Reload was called.
func (d *Document) Reloads() int {
	return d.reloads
}

// FailQueries makes every query return err until called with nil.
func (d *Document) FailQueries(err error) {
	d.queryErr = err
}

// HTML renders the current tree, for debugging failed tests.
func (d *Document) HTML() string {
	out, err := d.root.Html()
	if err != nil {
		return err.Error()
	}
	return out
}

func (d *Document) deliver(fn func()) {
	if d.post != nil {
		d.post(fn)
		return
	}
	fn()
}

type inline struct {
	display    string
	visibility string
	opacity    *float64
}

func inlineStyle(n *html.Node) inline {
	var s inline
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(strings.ToLower(name))
		value = strings.TrimSpace(strings.ToLower(value))
		switch name {
		case "display":
			s.display = value
		case "visibility":
			s.visibility = value
		case "opacity":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				s.opacity = &f
			}
		}
	}
	return s
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}
