package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/adspeed/internal/htmldoc"
	"github.com/llehouerou/adspeed/internal/loop"
	"github.com/llehouerou/adspeed/internal/player"
	"github.com/llehouerou/adspeed/internal/signature"
)

type fakeTransitioner struct {
	active         bool
	starts, ending int
}

func (f *fakeTransitioner) Active() bool { return f.active }
func (f *fakeTransitioner) ForceStart()  { f.active = true; f.starts++ }
func (f *fakeTransitioner) ForceEnd()    { f.active = false; f.ending++ }

func setup(t *testing.T, markup string) (*Detector, *htmldoc.Document, *player.Locator) {
	t.Helper()
	sched := loop.NewManual(time.Unix(0, 0))
	doc := htmldoc.MustNew(markup)
	sigs := signature.NewStore(signature.Default())
	loc := player.NewLocator(doc, sigs, sched, 0)
	loc.Locate()
	return New(doc, loc, sigs), doc, loc
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   Result
	}{
		{
			name:   "no player",
			markup: `<div class="ad-showing"></div>`,
			want:   Result{},
		},
		{
			name:   "plain playback",
			markup: `<div id="movie_player"><video></video></div>`,
			want:   Result{MediaAvailable: true},
		},
		{
			name:   "marker class",
			markup: `<div id="movie_player" class="ad-showing"><video></video></div>`,
			want:   Result{InterruptionPresent: true, MediaAvailable: true},
		},
		{
			name:   "second marker class",
			markup: `<div id="movie_player" class="ad-interrupting"><video></video></div>`,
			want:   Result{InterruptionPresent: true, MediaAvailable: true},
		},
		{
			name:   "secondary indicator only",
			markup: `<div id="movie_player"><video></video><div class="ytp-ad-player-overlay"></div></div>`,
			want:   Result{InterruptionPresent: true, MediaAvailable: true},
		},
		{
			name:   "warning",
			markup: `<div id="movie_player"><video></video></div><ytd-enforcement-message-view-model><div id="container"></div></ytd-enforcement-message-view-model>`,
			want:   Result{MediaAvailable: true, WarningPresent: true},
		},
		{
			name:   "warning host without notice",
			markup: `<div id="movie_player"><video></video></div><ytd-enforcement-message-view-model></ytd-enforcement-message-view-model>`,
			want:   Result{MediaAvailable: true},
		},
		{
			name:   "interruption and warning",
			markup: `<div id="movie_player" class="ad-showing"><video></video></div><ytd-enforcement-message-view-model><div id="container"></div></ytd-enforcement-message-view-model>`,
			want:   Result{InterruptionPresent: true, MediaAvailable: true, WarningPresent: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := setup(t, tt.markup)
			assert.Equal(t, tt.want, d.Detect())
		})
	}
}

func TestDetect_StaleMediaIsUnavailable(t *testing.T) {
	d, doc, loc := setup(t, `<div id="movie_player" class="ad-showing"><video></video></div>`)
	h, ok := loc.Handle()
	require.True(t, ok)

	require.NoError(t, doc.Remove(h.Media))
	assert.Equal(t, Result{}, d.Detect())
}

func TestDetect_IsNeverCached(t *testing.T) {
	d, doc, loc := setup(t, `<div id="movie_player"><video></video></div>`)
	h, _ := loc.Handle()

	assert.False(t, d.Detect().InterruptionPresent)
	require.NoError(t, doc.AddClass(h.Container, "ad-showing"))
	assert.True(t, d.Detect().InterruptionPresent)
	require.NoError(t, doc.RemoveClass(h.Container, "ad-showing"))
	assert.False(t, d.Detect().InterruptionPresent)
}

func TestValidate(t *testing.T) {
	d, doc, loc := setup(t, `<div id="movie_player"><video></video></div>`)
	h, _ := loc.Handle()

	assert.True(t, d.Validate(false))
	assert.False(t, d.Validate(true), "active but nothing detected")

	require.NoError(t, doc.AddClass(h.Container, "ad-showing"))
	assert.True(t, d.Validate(true))
	assert.False(t, d.Validate(false), "detected but idle")
}

func TestForceSync(t *testing.T) {
	d, doc, loc := setup(t, `<div id="movie_player"><video></video></div>`)
	h, _ := loc.Handle()
	tr := &fakeTransitioner{}

	d.ForceSync(tr)
	assert.Zero(t, tr.starts+tr.ending, "already in sync")

	require.NoError(t, doc.AddClass(h.Container, "ad-showing"))
	d.ForceSync(tr)
	assert.True(t, tr.active)
	assert.Equal(t, 1, tr.starts)

	require.NoError(t, doc.RemoveClass(h.Container, "ad-showing"))
	d.ForceSync(tr)
	assert.False(t, tr.active)
	assert.Equal(t, 1, tr.ending)
}
