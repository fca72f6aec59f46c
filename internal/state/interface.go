// internal/state/interface.go
package state

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	Increment(c Counter) (int64, error)
	Counters() (Counters, error)
	ResetCounters() error
	Consent() (bool, error)
	SetConsent(enabled bool) error
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
