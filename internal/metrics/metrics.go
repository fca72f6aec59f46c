// Package metrics exposes Prometheus instruments for sessions and the
// background service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Interruption lifecycle
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adspeed_interruption_transitions_total",
		Help: "Interruption state transitions by kind",
	}, []string{"kind"}) // kind=start|end|force_start|force_end|timeout

	interruptionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "adspeed_interruption_duration_seconds",
		Help:    "Time spent in an active interruption",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 180, 300},
	})

	calibratedRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adspeed_calibrated_rate",
		Help: "Playback rate chosen by the last calibration",
	})

	warningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adspeed_warnings_total",
		Help: "Denial warnings that forced a reload",
	})

	// Dismiss
	dismissAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adspeed_dismiss_attempts_total",
		Help: "Dismiss attempts by path and outcome",
	}, []string{"path", "outcome"}) // path=trusted|synthetic outcome=success|failure

	// Reconciler
	resyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adspeed_forced_resyncs_total",
		Help: "Validations that disagreed with fresh detection",
	})

	// Commands
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adspeed_commands_total",
		Help: "Commands handled by the background service",
	}, []string{"action", "outcome"})

	commandDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adspeed_command_drops_total",
		Help: "Commands that could not be queued",
	}, []string{"action", "reason"})

	// Sessions
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adspeed_sessions_active",
		Help: "Document sessions currently attached",
	})

	signatureReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adspeed_signature_reloads_total",
		Help: "Signature hot reloads by outcome",
	}, []string{"outcome"})
)

// RecordTransition counts an interruption transition.
func RecordTransition(kind string) {
	transitionsTotal.WithLabelValues(kind).Inc()
}

// ObserveInterruption records how long an interruption lasted.
func ObserveInterruption(seconds float64) {
	interruptionDuration.Observe(seconds)
}

// SetCalibratedRate publishes the rate chosen by calibration.
func SetCalibratedRate(rate float64) {
	calibratedRate.Set(rate)
}

// IncWarning counts a forced reload after a denial warning.
func IncWarning() {
	warningsTotal.Inc()
}

// RecordDismiss counts a dismiss attempt.
func RecordDismiss(path string, ok bool) {
	dismissAttemptsTotal.WithLabelValues(path, outcome(ok)).Inc()
}

// IncResync counts a forced resync.
func IncResync() {
	resyncsTotal.Inc()
}

// RecordCommand counts a handled command.
func RecordCommand(action string, ok bool) {
	commandsTotal.WithLabelValues(action, outcome(ok)).Inc()
}

// IncCommandDrop counts a command that never reached the bus.
func IncCommandDrop(action, reason string) {
	if action == "" {
		action = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	commandDropsTotal.WithLabelValues(action, reason).Inc()
}

// SessionStarted marks a session as attached.
func SessionStarted() { sessionsActive.Inc() }

// SessionEnded marks a session as detached.
func SessionEnded() { sessionsActive.Dec() }

// RecordSignatureReload counts a signature reload attempt.
func RecordSignatureReload(ok bool) {
	signatureReloadsTotal.WithLabelValues(outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
