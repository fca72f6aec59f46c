package player

// MockRates is a test double for Velocity.
type MockRates struct {
	rate   float64
	accept func(rate float64) bool
	sets   []float64
}

// NewMockRates creates a mock starting at rate that accepts every valid rate.
func NewMockRates(rate float64) *MockRates {
	return &MockRates{rate: rate}
}

func (m *MockRates) Set(rate float64) bool {
	m.sets = append(m.sets, rate)
	if !ValidRate(rate) {
		return false
	}
	if m.accept != nil && !m.accept(rate) {
		return false
	}
	m.rate = rate
	return true
}

func (m *MockRates) Get() float64 {
	return m.rate
}

// Test helpers

// SetAccept restricts which rates Set accepts.
func (m *MockRates) SetAccept(accept func(rate float64) bool) { m.accept = accept }

// SetRate changes the live rate, as the host page would.
func (m *MockRates) SetRate(rate float64) { m.rate = rate }

// Attempts returns every rate passed to Set, accepted or not.
func (m *MockRates) Attempts() []float64 { return append([]float64(nil), m.sets...) }

// Verify MockRates implements Rates at compile time.
var _ Rates = (*MockRates)(nil)
