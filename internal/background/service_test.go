package background

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/adspeed/internal/command"
	"github.com/llehouerou/adspeed/internal/notify"
	"github.com/llehouerou/adspeed/internal/state"
)

type fakeTab struct {
	muted    []bool
	clicks   [][2]float64
	clickErr error
}

func (f *fakeTab) SetMuted(_ context.Context, muted bool) error {
	f.muted = append(f.muted, muted)
	return nil
}

func (f *fakeTab) DispatchTrustedClick(_ context.Context, x, y float64) error {
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicks = append(f.clicks, [2]float64{x, y})
	return nil
}

func setup() (*Service, *state.Mock, *fakeTab, *notify.Recorder) {
	store := state.NewMock()
	tab := &fakeTab{}
	rec := &notify.Recorder{}
	return New(store, tab, rec), store, tab, rec
}

func handle(s *Service, msg command.Message) command.Response {
	return s.HandleCommand(context.Background(), msg)
}

func TestCounters(t *testing.T) {
	s, store, _, rec := setup()

	assert.True(t, handle(s, command.Message{Action: command.AdCounter}).Success)
	assert.True(t, handle(s, command.Message{Action: command.AdCounter}).Success)
	assert.True(t, handle(s, command.Message{Action: command.WarningDetected}).Success)
	assert.True(t, handle(s, command.Message{Action: command.PageReload}).Success)

	got, err := store.Counters()
	require.NoError(t, err)
	assert.Equal(t, state.Counters{Ads: 2, Warnings: 1, Reloads: 1}, got)
	require.Len(t, rec.Sent, 1, "reload notifies")
	assert.Contains(t, rec.Sent[0].Body, "1 so far")
}

func TestMuteUnmute(t *testing.T) {
	s, _, tab, _ := setup()
	handle(s, command.Message{Action: command.Mute})
	handle(s, command.Message{Action: command.Unmute})
	assert.Equal(t, []bool{true, false}, tab.muted)
}

func TestTrustedClick_RequiresConsent(t *testing.T) {
	s, store, tab, _ := setup()

	resp := handle(s, command.Message{Action: command.TrustedSkipClick, X: 5, Y: 6})
	assert.False(t, resp.Success)
	assert.Equal(t, ErrConsentDenied.Error(), resp.Error)
	assert.Empty(t, tab.clicks)

	require.NoError(t, store.SetConsent(true))
	resp = handle(s, command.Message{Action: command.TrustedSkipClick, X: 5, Y: 6})
	assert.True(t, resp.Success)
	assert.Equal(t, [][2]float64{{5, 6}}, tab.clicks)
}

func TestTrustedClick_TabFailure(t *testing.T) {
	s, store, tab, _ := setup()
	require.NoError(t, store.SetConsent(true))
	tab.clickErr = errors.New("target detached")

	resp := handle(s, command.Message{Action: command.TrustedSkipClick, X: 1, Y: 1})
	assert.False(t, resp.Success)
	assert.Equal(t, "target detached", resp.Error)
}

func TestStoreFailureIsReported(t *testing.T) {
	s, store, _, rec := setup()
	store.SetError(errors.New("database is locked"))

	resp := handle(s, command.Message{Action: command.PageReload})
	assert.False(t, resp.Success)
	assert.Empty(t, rec.Sent)

	resp = handle(s, command.Message{Action: command.TrustedSkipClick, X: 1, Y: 1})
	assert.Contains(t, resp.Error, "reading consent")
}

func TestNoTab(t *testing.T) {
	store := state.NewMock()
	require.NoError(t, store.SetConsent(true))
	s := New(store, nil, nil)

	assert.Equal(t, ErrNoTab.Error(), handle(s, command.Message{Action: command.Mute}).Error)
	assert.Equal(t, ErrNoTab.Error(), handle(s, command.Message{Action: command.TrustedSkipClick}).Error)
	assert.True(t, handle(s, command.Message{Action: command.AdCounter}).Success)
}

func TestUnknownAction(t *testing.T) {
	s, _, _, _ := setup()
	resp := handle(s, command.Message{Action: "launchRocket"})
	assert.False(t, resp.Success)
}

func TestServedThroughBus(t *testing.T) {
	s, store, _, _ := setup()
	bus := command.NewBus(4)
	require.NoError(t, bus.Send(command.Message{Action: command.AdCounter}))
	require.NoError(t, bus.Send(command.Message{Action: command.Unmute}))
	bus.Close()

	require.NoError(t, bus.Serve(context.Background(), s))
	got, _ := store.Counters()
	assert.Equal(t, int64(1), got.Ads)
}
