package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/adspeed/internal/dom"
)

// fakePage answers runtime calls by function name.
type fakePage struct {
	results map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakePage) evaluate(_ context.Context, expr string, out any) error {
	name := expr[strings.Index(expr, "a.")+2:]
	name = name[:strings.Index(name, "(")]
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return err
	}
	res, ok := f.results[name]
	if !ok {
		res = "null"
	}
	return json.Unmarshal([]byte(res), out)
}

func newTestDocument(page *fakePage) (*Document, *router, *[]func()) {
	var posted []func()
	routes := newRouter()
	d := &Document{
		ctx:     context.Background(),
		ev:      page,
		routes:  routes,
		gen:     routes.next(),
		post:    func(fn func()) { posted = append(posted, fn) },
		timeout: DefaultCallTimeout,
		reload:  func(context.Context) error { return nil },
	}
	return d, routes, &posted
}

func TestDocument_Queries(t *testing.T) {
	page := &fakePage{results: map[string]string{
		"first":     `{"id":4,"tag":"video"}`,
		"all":       `[{"id":4,"tag":"video"},{"id":5,"tag":"audio"}]`,
		"exists":    `true`,
		"connected": `true`,
		"rate":      `1.5`,
		"style":     `{"display":"block","visibility":"visible","opacity":0.5,"disabled":false}`,
		"rect":      `{"x":10,"y":20,"width":100,"height":40}`,
		"viewport":  `{"width":1920,"height":1080}`,
		"hidden":    `false`,
	}}
	d, _, _ := newTestDocument(page)

	el, err := d.QueryFirst("video")
	require.NoError(t, err)
	assert.Equal(t, dom.Element{ID: 4, Tag: "video"}, el)

	none, err := d.QueryWithin(el, ".missing")
	require.NoError(t, err)
	assert.False(t, none.Valid(), "null maps to the zero element")

	all, err := d.QueryAll("video, audio")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ok, err := d.Exists(".ad-showing")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Connected(el)
	require.NoError(t, err)
	assert.True(t, ok)

	rate, err := d.PlaybackRate(el)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, rate, 0.001)

	st, err := d.Style(el)
	require.NoError(t, err)
	assert.True(t, st.Visible())

	r, err := d.Rect(el)
	require.NoError(t, err)
	assert.Equal(t, dom.Rect{X: 10, Y: 20, Width: 100, Height: 40}, r)

	vp, err := d.Viewport()
	require.NoError(t, err)
	assert.Equal(t, dom.Viewport{Width: 1920, Height: 1080}, vp)

	hidden, err := d.Hidden()
	require.NoError(t, err)
	assert.False(t, hidden)

	require.NoError(t, d.SetPlaybackRate(el, 16))
	require.NoError(t, d.DispatchMouse(el, "click"))
}

func TestDocument_ConnectedZeroElement(t *testing.T) {
	page := &fakePage{}
	d, _, _ := newTestDocument(page)
	ok, err := d.Connected(dom.Element{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, page.calls, "no round trip for the zero element")
}

func TestDocument_PageErrors(t *testing.T) {
	page := &fakePage{errs: map[string]error{"setRate": errors.New("NotSupportedError")}}
	d, _, _ := newTestDocument(page)
	err := d.SetPlaybackRate(dom.Element{ID: 1, Tag: "video"}, 32)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setRate")
}

func TestDocument_GoneAfterNavigation(t *testing.T) {
	page := &fakePage{}
	d, routes, _ := newTestDocument(page)
	routes.next()

	_, err := d.QueryFirst("video")
	assert.ErrorIs(t, err, ErrDocumentGone)
	assert.ErrorIs(t, d.Reload(), ErrDocumentGone)
	assert.Empty(t, page.calls)
}

func TestDocument_Observe(t *testing.T) {
	page := &fakePage{results: map[string]string{"observe": `1`}}
	d, routes, posted := newTestDocument(page)

	var got [][]dom.Mutation
	sub, err := d.Observe(dom.ObserveOptions{
		AttributeFilter: []string{"class"},
		Probes:          []string{"video"},
	}, func(m []dom.Mutation) { got = append(got, m) })
	require.NoError(t, err)

	ev, err := decodeEvent(`{"sub":1,"kind":"mutations","records":[{"type":"childList","target":{"el":false},"added":[{"el":true,"id":2,"tag":"video","is":[0]}],"removed":[]}]}`)
	require.NoError(t, err)
	require.True(t, routes.dispatch(ev))
	require.Len(t, *posted, 1, "delivery goes through post")
	(*posted)[0]()
	require.Len(t, got, 1)
	assert.True(t, got[0][0].Added[0].Matches("video"))

	routes.dispatch(ev)
	sub.Close()
	(*posted)[1]()
	assert.Len(t, got, 1, "callbacks pending at Close are dropped")
	assert.Contains(t, page.calls, "unsubscribe")
	assert.Equal(t, 0, routes.len())
}

func TestDocument_ListenAndVisibility(t *testing.T) {
	page := &fakePage{results: map[string]string{"listen": `2`, "visibility": `3`}}
	d, routes, posted := newTestDocument(page)

	fired := 0
	_, err := d.Listen(dom.Element{ID: 4, Tag: "video"}, "pause", func() { fired++ })
	require.NoError(t, err)
	var hidden []bool
	_, err = d.OnVisibilityChange(func(h bool) { hidden = append(hidden, h) })
	require.NoError(t, err)

	routes.dispatch(wireEvent{Sub: 2, Kind: "event"})
	routes.dispatch(wireEvent{Sub: 3, Kind: "visibility", Hidden: true})
	routes.dispatch(wireEvent{Sub: 3, Kind: "event"})
	for _, fn := range *posted {
		fn()
	}
	assert.Equal(t, 1, fired)
	assert.Equal(t, []bool{true}, hidden)
}
