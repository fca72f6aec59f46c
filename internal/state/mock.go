// internal/state/mock.go
package state

import (
	"fmt"
	"sync"
)

// Mock is a test double for Manager. It is safe for concurrent use.
type Mock struct {
	mu       sync.Mutex
	counters Counters
	consent  bool
	closed   bool
	err      error
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Increment(c Counter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	switch c {
	case AdCounter:
		m.counters.Ads++
	case WarningCounter:
		m.counters.Warnings++
	case ReloadCounter:
		m.counters.Reloads++
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCounter, c)
	}
	return m.counters.Get(c), nil
}

func (m *Mock) Counters() (Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters, m.err
}

func (m *Mock) ResetCounters() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.counters = Counters{}
	return nil
}

func (m *Mock) Consent() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consent, m.err
}

func (m *Mock) SetConsent(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.consent = enabled
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helpers

func (m *Mock) SetCounters(c Counters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = c
}

func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
