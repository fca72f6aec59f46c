// Package interruption owns the interruption state machine: whether an
// interruption is active, the rate to restore when it ends, and the side
// effects of each transition.
package interruption

import (
	"time"
)

// Phase is the machine's coarse state.
type Phase int

const (
	Idle Phase = iota
	Active
	// Reloading is terminal: a denial warning forced a page reload.
	Reloading
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Reloading:
		return "reloading"
	default:
		return "unknown"
	}
}

// State is a snapshot of the machine.
type State struct {
	Phase Phase
	// StartedAt is set only while Active.
	StartedAt time.Time
	// RestoreRate is the rate observed when the current or last interruption
	// began.
	RestoreRate float64
	// CalibratedRate is the accelerated rate, valid once Calibrated.
	CalibratedRate float64
	Calibrated     bool
}

// Config tunes the machine.
type Config struct {
	// TargetRate is tried first during calibration.
	TargetRate float64
	// Fallbacks are tried in order when TargetRate is refused.
	Fallbacks []float64
	// SafeRate is used when every candidate is refused.
	SafeRate float64
	// DismissDelay debounces the dismiss scan after an interruption starts.
	DismissDelay time.Duration
	// ReloadDelay separates the warning commands from the page reload.
	ReloadDelay time.Duration
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		TargetRate:   32,
		Fallbacks:    []float64{50, 32, 16, 8},
		SafeRate:     2,
		DismissDelay: 300 * time.Millisecond,
		ReloadDelay:  100 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetRate <= 0 {
		c.TargetRate = d.TargetRate
	}
	if len(c.Fallbacks) == 0 {
		c.Fallbacks = d.Fallbacks
	}
	if c.SafeRate <= 0 {
		c.SafeRate = d.SafeRate
	}
	if c.DismissDelay <= 0 {
		c.DismissDelay = d.DismissDelay
	}
	if c.ReloadDelay <= 0 {
		c.ReloadDelay = d.ReloadDelay
	}
	return c
}
