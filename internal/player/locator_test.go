package player

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/adspeed/internal/htmldoc"
	"github.com/llehouerou/adspeed/internal/loop"
	"github.com/llehouerou/adspeed/internal/signature"
)

const playerPage = `<div id="movie_player"><video class="html5-main-video"></video></div>`

func newLocator(t *testing.T, markup string) (*Locator, *htmldoc.Document, *loop.Manual) {
	t.Helper()
	sched := loop.NewManual(time.Unix(0, 0))
	doc := htmldoc.MustNew(markup, htmldoc.WithPost(sched.Post))
	return NewLocator(doc, signature.NewStore(signature.Default()), sched, 0), doc, sched
}

func TestLocator_LocateImmediately(t *testing.T) {
	l, _, sched := newLocator(t, playerPage)

	l.Start()
	assert.True(t, l.Ready())
	assert.Zero(t, sched.Pending(), "no polling once located")

	h, ok := l.Handle()
	require.True(t, ok)
	assert.Equal(t, "div", h.Container.Tag)
	assert.Equal(t, "video", h.Media.Tag)
}

func TestLocator_PollsUntilFound(t *testing.T) {
	l, doc, sched := newLocator(t, `<div id="movie_player"></div>`)

	var got []Handle
	l.OnReady(func(h Handle) { got = append(got, h) })
	l.Start()
	sched.Advance(time.Second)
	assert.False(t, l.Ready())
	assert.Empty(t, got)

	_, err := doc.AppendTo("#movie_player", `<video></video>`)
	require.NoError(t, err)
	sched.Advance(DefaultRetryInterval)

	require.True(t, l.Ready())
	require.Len(t, got, 1)
	assert.Zero(t, sched.Pending())

	sched.Advance(time.Second)
	assert.Len(t, got, 1, "waiters run exactly once")
}

func TestLocator_OnReadyAfterResolvedRunsSynchronously(t *testing.T) {
	l, _, _ := newLocator(t, playerPage)
	require.True(t, l.Locate())

	ran := false
	l.OnReady(func(Handle) { ran = true })
	assert.True(t, ran)
}

func TestLocator_WaiterRegisteringWaiter(t *testing.T) {
	l, _, _ := newLocator(t, playerPage)

	var order []string
	l.OnReady(func(Handle) {
		order = append(order, "outer")
		l.OnReady(func(Handle) { order = append(order, "inner") })
	})
	l.OnReady(func(Handle) { order = append(order, "second") })
	require.True(t, l.Locate())

	assert.Equal(t, []string{"outer", "inner", "second"}, order)
}

func TestLocator_QueryErrorIsNotFatal(t *testing.T) {
	l, doc, sched := newLocator(t, playerPage)
	doc.FailQueries(errors.New("document detached"))

	l.Start()
	sched.Advance(time.Second)
	assert.False(t, l.Ready())

	doc.FailQueries(nil)
	sched.Advance(DefaultRetryInterval)
	assert.True(t, l.Ready())
}

func TestLocator_RefreshReplacesHandle(t *testing.T) {
	l, doc, _ := newLocator(t, playerPage)
	require.True(t, l.Locate())
	first, _ := l.Handle()

	var installs []Handle
	unsubscribe := l.Subscribe(func(h Handle) { installs = append(installs, h) })
	require.Len(t, installs, 1, "subscribe replays the current handle")

	assert.True(t, l.Refresh())
	assert.Len(t, installs, 1, "unchanged document keeps the handle")

	require.NoError(t, doc.Remove(first.Media))
	assert.True(t, l.Refresh(), "stale handle is kept when nothing is found")
	h, _ := l.Handle()
	assert.Equal(t, first, h)

	_, err := doc.AppendTo("#movie_player", `<video></video>`)
	require.NoError(t, err)
	require.True(t, l.Refresh())
	second, _ := l.Handle()
	assert.NotEqual(t, first.Media, second.Media)
	assert.Equal(t, first.Container, second.Container)
	require.Len(t, installs, 2)

	unsubscribe()
	require.NoError(t, doc.Remove(second.Media))
	_, _ = doc.AppendTo("#movie_player", `<video></video>`)
	l.Refresh()
	assert.Len(t, installs, 2)
}

func TestVelocity(t *testing.T) {
	l, doc, _ := newLocator(t, playerPage)
	v := NewVelocity(doc, l)

	assert.False(t, v.Set(2), "unresolved handle")
	assert.InDelta(t, NeutralRate, v.Get(), 0.0001)

	require.True(t, l.Locate())
	assert.True(t, v.Set(2))
	assert.InDelta(t, 2.0, v.Get(), 0.0001)

	for _, bad := range []float64{0, 0.05, 100.5, math.NaN(), math.Inf(1)} {
		assert.False(t, v.Set(bad), "rate %v", bad)
	}
	assert.InDelta(t, 2.0, v.Get(), 0.0001)
}

func TestVelocity_HostRejection(t *testing.T) {
	sched := loop.NewManual(time.Unix(0, 0))
	doc := htmldoc.MustNew(playerPage, htmldoc.WithPost(sched.Post), htmldoc.WithRateLimit(16))
	l := NewLocator(doc, signature.NewStore(signature.Default()), sched, 0)
	require.True(t, l.Locate())
	v := NewVelocity(doc, l)

	assert.False(t, v.Set(32))
	assert.True(t, v.Set(16))
	assert.InDelta(t, 16.0, v.Get(), 0.0001)
}
