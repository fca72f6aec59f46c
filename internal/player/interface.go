// Package player locates the media player in the document and controls its
// playback rate.
package player

// Rates defines the playback-rate contract for dependency injection and testing.
type Rates interface {
	Set(rate float64) bool
	Get() float64
}

// Handles defines the handle-owner contract for dependency injection and testing.
type Handles interface {
	Handle() (Handle, bool)
	Refresh() bool
	Subscribe(fn func(Handle)) func()
}

// Verify Velocity and Locator implement their contracts at compile time.
var (
	_ Rates   = (*Velocity)(nil)
	_ Handles = (*Locator)(nil)
)
