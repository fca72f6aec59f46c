package htmldoc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/adspeed/internal/dom"
)

const page = `<html><body>
<div id="movie_player" class="html5-video-player">
  <video class="html5-main-video"></video>
  <div class="overlay"><button class="skip" style="opacity: 0.5">Skip</button></div>
</div>
</body></html>`

func TestQueries(t *testing.T) {
	d := MustNew(page)

	player, err := d.QueryFirst("#movie_player")
	require.NoError(t, err)
	require.True(t, player.Valid())
	assert.Equal(t, "div", player.Tag)

	video, err := d.QueryWithin(player, "video")
	require.NoError(t, err)
	assert.Equal(t, "video", video.Tag)

	again, err := d.QueryFirst("video")
	require.NoError(t, err)
	assert.Equal(t, video.ID, again.ID, "identity is stable per element instance")

	missing, err := d.QueryFirst(".nothing")
	require.NoError(t, err)
	assert.False(t, missing.Valid())

	ok, err := d.Exists(".skip")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = d.QueryFirst("div[[")
	assert.Error(t, err)
}

func TestFailQueries(t *testing.T) {
	d := MustNew(page)
	boom := errors.New("boom")
	d.FailQueries(boom)

	_, err := d.Exists("video")
	assert.ErrorIs(t, err, boom)

	d.FailQueries(nil)
	ok, err := d.Exists("video")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPlaybackRate(t *testing.T) {
	d := MustNew(page, WithRateLimit(16))
	video, _ := d.QueryFirst("video")

	rate, err := d.PlaybackRate(video)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rate, 0.0001)

	require.NoError(t, d.SetPlaybackRate(video, 16))
	assert.Error(t, d.SetPlaybackRate(video, 32))

	rate, _ = d.PlaybackRate(video)
	assert.InDelta(t, 16.0, rate, 0.0001)

	button, _ := d.QueryFirst(".skip")
	assert.Error(t, d.SetPlaybackRate(button, 2))
}

func TestStyle(t *testing.T) {
	d := MustNew(`<div style="display:none"><button id="a">x</button></div>
<button id="b" disabled>y</button>
<div style="opacity: 0.5"><button id="c" style="opacity:0.5">z</button></div>
<button id="d" style="visibility: hidden">w</button>`)

	get := func(sel string) dom.Style {
		el, err := d.QueryFirst(sel)
		require.NoError(t, err)
		st, err := d.Style(el)
		require.NoError(t, err)
		return st
	}

	assert.False(t, get("#a").Visible())
	assert.True(t, get("#b").Disabled)
	assert.InDelta(t, 0.25, get("#c").Opacity, 0.0001)
	assert.False(t, get("#d").Visible())
}

func TestObserve_ChildListAndAttributes(t *testing.T) {
	var queued []func()
	d := MustNew(page, WithPost(func(fn func()) { queued = append(queued, fn) }))

	var batches [][]dom.Mutation
	sub, err := d.Observe(dom.ObserveOptions{
		AttributeFilter: []string{"class"},
		Probes:          []string{"video", ".ad-showing"},
	}, func(m []dom.Mutation) { batches = append(batches, m) })
	require.NoError(t, err)

	player, _ := d.QueryFirst("#movie_player")
	require.NoError(t, d.AddClass(player, "ad-showing"))
	_, err = d.Append(player, `<div class="wrapper"><video></video></div>`)
	require.NoError(t, err)
	d.SetAttr(player, "data-x", "1")

	require.Len(t, queued, 1, "mutations are delivered as one batch")
	queued[0]()
	require.Len(t, batches, 1)

	batch := batches[0]
	require.Len(t, batch, 2, "unfiltered attribute is dropped")
	assert.Equal(t, dom.Attributes, batch[0].Kind)
	assert.Equal(t, "html5-video-player", batch[0].OldValue)
	assert.True(t, batch[0].Target.HasClass("ad-showing"))
	assert.True(t, batch[0].Target.Matches(".ad-showing"))

	assert.Equal(t, dom.ChildList, batch[1].Kind)
	require.Len(t, batch[1].Added, 1)
	assert.True(t, batch[1].Added[0].Contains("video"))
	assert.False(t, batch[1].Added[0].Matches("video"))

	sub.Close()
	video, _ := d.QueryFirst("video")
	require.NoError(t, d.Remove(video))
	for _, fn := range queued[1:] {
		fn()
	}
	assert.Len(t, batches, 1)
}

func TestObserve_RemovedNodesKeepProbes(t *testing.T) {
	d := MustNew(page)

	var got []dom.Mutation
	_, err := d.Observe(dom.ObserveOptions{Probes: []string{"video"}}, func(m []dom.Mutation) { got = append(got, m...) })
	require.NoError(t, err)

	video, _ := d.QueryFirst("video")
	require.NoError(t, d.Remove(video))

	require.Len(t, got, 1)
	require.Len(t, got[0].Removed, 1)
	assert.True(t, got[0].Removed[0].Matches("video"))

	ok, err := d.Connected(video)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListenAndVisibility(t *testing.T) {
	d := MustNew(page)
	video, _ := d.QueryFirst("video")

	plays := 0
	sub, err := d.Listen(video, "play", func() { plays++ })
	require.NoError(t, err)
	d.Fire(video, "play")
	d.Fire(video, "pause")
	assert.Equal(t, 1, plays)
	assert.Equal(t, 1, d.Listeners())

	sub.Close()
	d.Fire(video, "play")
	assert.Equal(t, 1, plays)
	assert.Zero(t, d.Listeners())

	var seen []bool
	_, err = d.OnVisibilityChange(func(hidden bool) { seen = append(seen, hidden) })
	require.NoError(t, err)
	d.SetHidden(true)
	d.SetHidden(true)
	d.SetHidden(false)
	assert.Equal(t, []bool{true, false}, seen)
}

func TestDispatchMouseAndMute(t *testing.T) {
	d := MustNew(page)
	button, _ := d.QueryFirst(".skip")
	video, _ := d.QueryFirst("video")

	clicked := false
	_, _ = d.Listen(button, "click", func() { clicked = true })
	require.NoError(t, d.DispatchMouse(button, "mousedown"))
	require.NoError(t, d.DispatchMouse(button, "click"))

	assert.True(t, clicked)
	assert.Equal(t, []MouseEvent{{button.ID, "mousedown"}, {button.ID, "click"}}, d.MouseEvents())

	d.SetMuted(true)
	assert.True(t, d.Muted(video))
	d.SetMuted(false)
	assert.False(t, d.Muted(video))
}
