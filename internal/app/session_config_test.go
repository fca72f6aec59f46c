package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/llehouerou/adspeed/internal/config"
)

func TestSessionConfig(t *testing.T) {
	off := false
	cfg := &config.Config{Session: config.SessionConfig{
		PollInterval:      250 * time.Millisecond,
		DismissDebounce:   300 * time.Millisecond,
		DismissDelay:      time.Second,
		ReloadDelay:       200 * time.Millisecond,
		VisibilityDelay:   2 * time.Second,
		ReconcileInterval: 10 * time.Second,
		MaxActive:         time.Minute,
		TargetRate:        16,
		FallbackRates:     []float64{8, 4},
		SafeRate:          1.5,
		TrustedClicks:     &off,
	}}

	got := SessionConfig(cfg)
	assert.Equal(t, 250*time.Millisecond, got.PollInterval)
	assert.Equal(t, 300*time.Millisecond, got.Machine.DismissDelay)
	assert.Equal(t, time.Second, got.DismissDelay)
	assert.Equal(t, 200*time.Millisecond, got.Machine.ReloadDelay)
	assert.Equal(t, 2*time.Second, got.Reconcile.VisibilityDelay)
	assert.Equal(t, 10*time.Second, got.Reconcile.Interval)
	assert.Equal(t, time.Minute, got.Reconcile.MaxActive)
	assert.InDelta(t, 16, got.Machine.TargetRate, 0)
	assert.Equal(t, []float64{8, 4}, got.Machine.Fallbacks)
	assert.False(t, got.TrustedClicks)

	assert.True(t, SessionConfig(&config.Config{}).TrustedClicks, "trusted clicks default on")
}

func TestBrowserOptions(t *testing.T) {
	cfg := &config.Config{
		Browser: config.BrowserConfig{
			RemoteURL: "ws://127.0.0.1:9222/devtools/browser/x",
			TabMatch:  "youtube.com",
			Headless:  true,
		},
		Session: config.SessionConfig{ClickStagger: 80 * time.Millisecond},
	}
	got := BrowserOptions(cfg)
	assert.Equal(t, 80*time.Millisecond, got.ClickStagger)
	assert.Equal(t, cfg.Browser.RemoteURL, got.RemoteURL)
	assert.Equal(t, "youtube.com", got.TabMatch)
	assert.True(t, got.Headless)
}
