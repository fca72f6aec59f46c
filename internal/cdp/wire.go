package cdp

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/llehouerou/adspeed/internal/dom"
)

// bindingName is the page binding the runtime reports events through.
const bindingName = "__adspeedEmit"

//go:embed runtime.js
var runtimeJS string

type wireRef struct {
	ID  uint64 `json:"id"`
	Tag string `json:"tag"`
}

func (r *wireRef) element() dom.Element {
	if r == nil {
		return dom.Element{}
	}
	return dom.Element{ID: dom.NodeID(r.ID), Tag: r.Tag}
}

type wireNode struct {
	El      bool     `json:"el"`
	ID      uint64   `json:"id"`
	Tag     string   `json:"tag"`
	Classes []string `json:"classes"`
	Is      []int    `json:"is"`
	Has     []int    `json:"has"`
}

type wireRecord struct {
	Type    string     `json:"type"`
	Attr    string     `json:"attr"`
	Old     string     `json:"old"`
	Target  wireNode   `json:"target"`
	Added   []wireNode `json:"added"`
	Removed []wireNode `json:"removed"`
}

type wireEvent struct {
	Sub     int64        `json:"sub"`
	Kind    string       `json:"kind"`
	Records []wireRecord `json:"records,omitempty"`
	Hidden  bool         `json:"hidden,omitempty"`
}

func decodeEvent(payload string) (wireEvent, error) {
	var ev wireEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return wireEvent{}, fmt.Errorf("decode binding payload: %w", err)
	}
	if ev.Sub <= 0 {
		return wireEvent{}, fmt.Errorf("binding payload without subscription: %q", truncate(payload, 80))
	}
	return ev, nil
}

// mutations converts runtime records, whose probe matches are reported as
// indexes into probes.
func mutations(records []wireRecord, probes []string) []dom.Mutation {
	out := make([]dom.Mutation, 0, len(records))
	for _, r := range records {
		m := dom.Mutation{
			Kind:      dom.MutationKind(r.Type),
			Attribute: r.Attr,
			OldValue:  r.Old,
			Target:    r.Target.node(probes),
		}
		for _, n := range r.Added {
			m.Added = append(m.Added, n.node(probes))
		}
		for _, n := range r.Removed {
			m.Removed = append(m.Removed, n.node(probes))
		}
		out = append(out, m)
	}
	return out
}

func (n wireNode) node(probes []string) dom.Node {
	if !n.El {
		return dom.Node{}
	}
	return dom.Node{
		Element: true,
		ID:      dom.NodeID(n.ID),
		Tag:     n.Tag,
		Classes: n.Classes,
		Is:      pick(probes, n.Is),
		Has:     pick(probes, n.Has),
	}
}

func pick(probes []string, idx []int) []string {
	var out []string
	for _, i := range idx {
		if i >= 0 && i < len(probes) {
			out = append(out, probes[i])
		}
	}
	return out
}

// call builds an expression invoking a runtime function with JSON-encoded
// arguments. undefined results are mapped to null.
func call(fn string, args ...any) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encode argument %d of %s: %w", i, fn, err)
		}
		parts[i] = string(b)
	}
	return fmt.Sprintf(
		`(() => { const a = window.__adspeed; if (!a) throw new Error("adspeed runtime missing"); const r = a.%s(%s); return r === undefined ? null : r; })()`,
		fn, strings.Join(parts, ", "),
	), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// router hands binding events to the subscription that asked for them.
// Subscription ids restart with every document, so handlers are tagged with
// the generation of the document that registered them; a navigation bumps
// the generation and drops the old handlers.
type router struct {
	mu       sync.Mutex
	gen      uint64
	handlers map[int64]route
}

type route struct {
	gen uint64
	fn  func(wireEvent)
}

func newRouter() *router {
	return &router{handlers: make(map[int64]route)}
}

// next starts a new generation and returns it.
func (r *router) next() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	clear(r.handlers)
	return r.gen
}

func (r *router) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen == gen
}

func (r *router) add(gen uint64, sub int64, fn func(wireEvent)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return false
	}
	r.handlers[sub] = route{gen: gen, fn: fn}
	return true
}

func (r *router) remove(gen uint64, sub int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.handlers[sub]; ok && rt.gen == gen {
		delete(r.handlers, sub)
	}
}

func (r *router) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

func (r *router) dispatch(ev wireEvent) bool {
	r.mu.Lock()
	rt, ok := r.handlers[ev.Sub]
	r.mu.Unlock()
	if ok {
		rt.fn(ev)
	}
	return ok
}
