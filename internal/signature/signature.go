// Package signature holds the structural signatures used to recognise the
// player, interruptions, dismiss controls and the denial warning.
//
// Signatures are an external contract owned by the host page. They are loaded
// from configuration, carry a version string, and can be swapped at runtime.
package signature

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/andybalholm/cascadia"
)

// Set is one version of the signature contract.
type Set struct {
	Version       string   `koanf:"version"`
	Container     string   `koanf:"container"`      // player container
	Media         string   `koanf:"media"`          // media element inside the container
	MarkerClasses []string `koanf:"marker_classes"` // classes marking an active interruption
	Indicators    []string `koanf:"indicators"`     // secondary interruption indicators
	Dismiss       string   `koanf:"dismiss"`        // dismiss (skip) controls
	Warning       string   `koanf:"warning"`        // blocking denial notice
	WarningHost   string   `koanf:"warning_host"`   // element hosting the denial notice
}

// Default returns the built-in signature set.
func Default() Set {
	return Set{
		Version:       "2025.1",
		Container:     "#movie_player",
		Media:         "video, .video-stream, video.html5-main-video",
		MarkerClasses: []string{"ad-showing", "ad-interrupting"},
		Indicators: []string{
			".ytp-ad-player-overlay",
			".ytp-ad-player-overlay-layout",
			".ytp-ad-skip-button",
			".ytp-ad-skip-button-modern",
			".ytp-skip-ad-button",
		},
		Dismiss:     ".ytp-ad-skip-button, .ytp-ad-skip-button-modern, .ytp-skip-ad-button",
		Warning:     "ytd-enforcement-message-view-model #container",
		WarningHost: "ytd-enforcement-message-view-model",
	}
}

// MarkerSelector returns a selector matching any marker class.
func (s Set) MarkerSelector() string {
	parts := make([]string, 0, len(s.MarkerClasses))
	for _, c := range s.MarkerClasses {
		parts = append(parts, "."+c)
	}
	return strings.Join(parts, ", ")
}

// IndicatorSelector returns a selector matching any secondary indicator.
func (s Set) IndicatorSelector() string {
	return strings.Join(s.Indicators, ", ")
}

// WarningProbe returns a selector matching the denial notice or its host.
func (s Set) WarningProbe() string {
	if s.WarningHost == "" {
		return s.Warning
	}
	return s.WarningHost + ", " + s.Warning
}

// Equal reports whether s and o describe the same contract, version
// included.
func (s Set) Equal(o Set) bool {
	return s.Version == o.Version &&
		s.Container == o.Container &&
		s.Media == o.Media &&
		slices.Equal(s.MarkerClasses, o.MarkerClasses) &&
		slices.Equal(s.Indicators, o.Indicators) &&
		s.Dismiss == o.Dismiss &&
		s.Warning == o.Warning &&
		s.WarningHost == o.WarningHost
}

// Validate checks that every selector is present and parses.
func (s Set) Validate() error {
	var errs []error
	check := func(name, sel string) {
		if strings.TrimSpace(sel) == "" {
			errs = append(errs, fmt.Errorf("%s: empty selector", name))
			return
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	check("container", s.Container)
	check("media", s.Media)
	check("dismiss", s.Dismiss)
	check("warning", s.Warning)
	if s.WarningHost != "" {
		check("warning_host", s.WarningHost)
	}
	if len(s.MarkerClasses) == 0 {
		errs = append(errs, errors.New("marker_classes: at least one class required"))
	}
	for _, c := range s.MarkerClasses {
		if strings.ContainsAny(c, " .#,") || c == "" {
			errs = append(errs, fmt.Errorf("marker_classes: invalid class name %q", c))
		}
	}
	if len(s.MarkerClasses) > 0 {
		check("marker_classes", s.MarkerSelector())
	}
	for i, ind := range s.Indicators {
		check(fmt.Sprintf("indicators[%d]", i), ind)
	}

	return errors.Join(errs...)
}

// Store holds the active signature set. Readers always see a complete set.
type Store struct {
	current atomic.Pointer[Set]
}

// NewStore creates a store holding s.
func NewStore(s Set) *Store {
	st := &Store{}
	st.current.Store(&s)
	return st
}

// Current returns the active set.
func (st *Store) Current() Set {
	return *st.current.Load()
}

// Replace validates s and makes it the active set.
func (st *Store) Replace(s Set) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("signature %q: %w", s.Version, err)
	}
	st.current.Store(&s)
	return nil
}
