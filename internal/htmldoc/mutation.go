package htmldoc

import (
	"fmt"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/llehouerou/adspeed/internal/dom"
)

type record struct {
	kind      dom.MutationKind
	attribute string
	oldValue  string
	target    *html.Node
	added     []*html.Node
	removed   []*html.Node
}

type observer struct {
	opts   dom.ObserveOptions
	fn     func([]dom.Mutation)
	closed bool
}

type listener struct {
	id     dom.NodeID
	event  string
	fn     func()
	closed bool
}

type visibilityListener struct {
	fn     func(hidden bool)
	closed bool
}

func (d *Document) Observe(opts dom.ObserveOptions, fn func([]dom.Mutation)) (dom.Subscription, error) {
	o := &observer{opts: opts, fn: fn}
	d.observers = append(d.observers, o)
	return dom.SubscriptionFunc(func() {
		o.closed = true
		d.observers = slices.DeleteFunc(d.observers, func(x *observer) bool { return x == o })
	}), nil
}

func (d *Document) Listen(el dom.Element, event string, fn func()) (dom.Subscription, error) {
	if _, err := d.node(el); err != nil {
		return nil, err
	}
	l := &listener{id: el.ID, event: event, fn: fn}
	d.listeners = append(d.listeners, l)
	return dom.SubscriptionFunc(func() {
		l.closed = true
		d.listeners = slices.DeleteFunc(d.listeners, func(x *listener) bool { return x == l })
	}), nil
}

func (d *Document) OnVisibilityChange(fn func(hidden bool)) (dom.Subscription, error) {
	l := &visibilityListener{fn: fn}
	d.visibility = append(d.visibility, l)
	return dom.SubscriptionFunc(func() {
		l.closed = true
		d.visibility = slices.DeleteFunc(d.visibility, func(x *visibilityListener) bool { return x == l })
	}), nil
}

// Listeners reports how many element event listeners are attached.
func (d *Document) Listeners() int {
	return len(d.listeners)
}

// Fire dispatches a DOM event on el to its listeners.
func (d *Document) Fire(el dom.Element, event string) {
	d.fire(el.ID, event)
}

func (d *Document) fire(id dom.NodeID, event string) {
	for _, l := range slices.Clone(d.listeners) {
		if l.id != id || l.event != event {
			continue
		}
		d.deliver(func() {
			if !l.closed {
				l.fn()
			}
		})
	}
}

func (d *Document) queue(r record) {
	d.pending = append(d.pending, r)
	if d.scheduled {
		return
	}
	d.scheduled = true
	d.deliver(d.flush)
}

func (d *Document) flush() {
	batch := d.pending
	d.pending = nil
	d.scheduled = false
	if len(batch) == 0 {
		return
	}
	for _, o := range slices.Clone(d.observers) {
		if o.closed {
			continue
		}
		muts := make([]dom.Mutation, 0, len(batch))
		for _, r := range batch {
			if r.kind == dom.Attributes && !slices.Contains(o.opts.AttributeFilter, r.attribute) {
				continue
			}
			muts = append(muts, d.snapshotRecord(r, o.opts.Probes))
		}
		if len(muts) > 0 {
			o.fn(muts)
		}
	}
}

func (d *Document) snapshotRecord(r record, probes []string) dom.Mutation {
	m := dom.Mutation{
		Kind:      r.kind,
		Attribute: r.attribute,
		OldValue:  r.oldValue,
		Target:    d.snapshot(r.target, probes),
	}
	for _, n := range r.added {
		m.Added = append(m.Added, d.snapshot(n, probes))
	}
	for _, n := range r.removed {
		m.Removed = append(m.Removed, d.snapshot(n, probes))
	}
	return m
}

func (d *Document) snapshot(n *html.Node, probes []string) dom.Node {
	if n == nil || n.Type != html.ElementNode {
		return dom.Node{}
	}
	el := d.element(n)
	snap := dom.Node{
		Element: true,
		ID:      el.ID,
		Tag:     n.Data,
		Classes: strings.Fields(attr(n, "class")),
	}
	sel := goquery.NewDocumentFromNode(n)
	for _, p := range probes {
		if sel.Is(p) {
			snap.Is = append(snap.Is, p)
		}
		if sel.Find(p).Length() > 0 {
			snap.Has = append(snap.Has, p)
		}
	}
	return snap
}

// Append parses markup and appends the resulting nodes to parent.
func (d *Document) Append(parent dom.Element, markup string) ([]dom.Element, error) {
	p, err := d.node(parent)
	if err != nil {
		return nil, err
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), p)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		p.AppendChild(n)
		if n.Type == html.ElementNode {
			out = append(out, d.element(n))
		}
	}
	d.queue(record{kind: dom.ChildList, target: p, added: nodes})
	return out, nil
}

// AppendTo is Append with the parent located by selector.
func (d *Document) AppendTo(selector, markup string) ([]dom.Element, error) {
	parent, err := d.QueryFirst(selector)
	if err != nil {
		return nil, err
	}
	if !parent.Valid() {
		return nil, fmt.Errorf("htmldoc: no element matches %q", selector)
	}
	return d.Append(parent, markup)
}

// Remove detaches el from its parent.
func (d *Document) Remove(el dom.Element) error {
	n, err := d.node(el)
	if err != nil {
		return err
	}
	p := n.Parent
	if p == nil {
		return nil
	}
	p.RemoveChild(n)
	d.queue(record{kind: dom.ChildList, target: p, removed: []*html.Node{n}})
	return nil
}

// RemoveAll detaches every element matching selector.
func (d *Document) RemoveAll(selector string) error {
	els, err := d.QueryAll(selector)
	if err != nil {
		return err
	}
	for _, el := range els {
		if err := d.Remove(el); err != nil {
			return err
		}
	}
	return nil
}

// AddClass adds class to el, reporting an attribute mutation.
func (d *Document) AddClass(el dom.Element, class string) error {
	return d.editClasses(el, func(classes []string) []string {
		if slices.Contains(classes, class) {
			return classes
		}
		return append(classes, class)
	})
}

// RemoveClass removes class from el, reporting an attribute mutation.
func (d *Document) RemoveClass(el dom.Element, class string) error {
	return d.editClasses(el, func(classes []string) []string {
		return slices.DeleteFunc(classes, func(c string) bool { return c == class })
	})
}

func (d *Document) editClasses(el dom.Element, edit func([]string) []string) error {
	n, err := d.node(el)
	if err != nil {
		return err
	}
	old := attr(n, "class")
	next := strings.Join(edit(strings.Fields(old)), " ")
	d.SetAttr(el, "class", next)
	return nil
}

// SetAttr sets an attribute on el, reporting an attribute mutation.
func (d *Document) SetAttr(el dom.Element, name, value string) {
	n, err := d.node(el)
	if err != nil {
		return
	}
	old, had := "", false
	for i, a := range n.Attr {
		if a.Key == name {
			old, had = a.Val, true
			n.Attr[i].Val = value
			break
		}
	}
	if !had {
		n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
	}
	d.queue(record{kind: dom.Attributes, attribute: name, oldValue: old, target: n})
}
