package app

import (
	"github.com/llehouerou/adspeed/internal/cdp"
	"github.com/llehouerou/adspeed/internal/config"
	"github.com/llehouerou/adspeed/internal/interruption"
	"github.com/llehouerou/adspeed/internal/reconcile"
	"github.com/llehouerou/adspeed/internal/session"
)

// SessionConfig maps the file configuration onto session tuning. Zero
// values keep each component's default.
func SessionConfig(cfg *config.Config) session.Config {
	s := cfg.Session
	return session.Config{
		Machine: interruption.Config{
			TargetRate:   s.TargetRate,
			Fallbacks:    s.FallbackRates,
			SafeRate:     s.SafeRate,
			DismissDelay: s.DismissDebounce,
			ReloadDelay:  s.ReloadDelay,
		},
		Reconcile: reconcile.Config{
			VisibilityDelay: s.VisibilityDelay,
			Interval:        s.ReconcileInterval,
			MaxActive:       s.MaxActive,
		},
		LocatorRetry:  s.LocatorRetry,
		PollInterval:  s.PollInterval,
		SettleDelays:  s.SettleDelays,
		DismissDelay:  s.DismissDelay,
		ClickStagger:  s.ClickStagger,
		TrustedClicks: cfg.TrustedClicksEnabled(),
	}
}

// BrowserOptions maps the file configuration onto cdp options. The click
// stagger is shared by trusted and synthetic clicks.
func BrowserOptions(cfg *config.Config) cdp.Options {
	b := cfg.Browser
	return cdp.Options{
		RemoteURL:    b.RemoteURL,
		ExecPath:     b.ExecPath,
		Headless:     b.Headless,
		TabMatch:     b.TabMatch,
		StartURL:     b.StartURL,
		ClickStagger: cfg.Session.ClickStagger,
	}
}
