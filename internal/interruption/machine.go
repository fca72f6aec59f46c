package interruption

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/command"
	"github.com/llehouerou/adspeed/internal/detect"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/loop"
	"github.com/llehouerou/adspeed/internal/metrics"
	"github.com/llehouerou/adspeed/internal/player"
)

// Detector produces fresh detection results.
type Detector interface {
	Detect() detect.Result
}

// Scanner looks for dismiss controls.
type Scanner interface {
	Scan()
}

// Reloader reloads the page.
type Reloader interface {
	Reload() error
}

// Deps are the collaborators a Machine drives.
type Deps struct {
	Rates     player.Rates
	Sender    command.Sender
	Scheduler loop.Scheduler
	Detector  Detector
	Dismiss   Scanner
	Reloader  Reloader
}

// Machine is the interruption state machine. All methods must be called from
// the session loop.
type Machine struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	state        State
	dismissTimer loop.Timer
	reloadTimer  loop.Timer
	closed       bool
}

// New creates a machine in the Idle phase.
func New(cfg Config, deps Deps) *Machine {
	return &Machine{
		cfg:  cfg.withDefaults(),
		deps: deps,
		log:  log.WithComponent("machine"),
	}
}

// State returns a snapshot of the machine.
func (m *Machine) State() State {
	return m.state
}

// Active reports whether an interruption is in progress.
func (m *Machine) Active() bool {
	return m.state.Phase == Active
}

// Terminated reports whether a forced reload or Close ended this machine.
func (m *Machine) Terminated() bool {
	return m.closed || m.state.Phase == Reloading
}

// Evaluate detects now and applies the result. It is the single entry point
// used by every trigger source.
func (m *Machine) Evaluate() {
	if m.Terminated() {
		return
	}
	m.Apply(m.deps.Detector.Detect())
}

// Apply commits the transition r calls for. The warning check always runs
// first and wins over an interruption seen in the same result.
func (m *Machine) Apply(r detect.Result) {
	if m.Terminated() {
		return
	}
	if r.WarningPresent {
		m.warn()
		return
	}
	switch {
	case r.InterruptionPresent && m.state.Phase == Idle:
		m.start()
	case r.InterruptionPresent:
		m.accelerate()
	case m.state.Phase == Active:
		m.end()
	}
}

// ForceStart enters Active without consulting the detector. It is a no-op
// when already active or terminated.
func (m *Machine) ForceStart() {
	if m.closed || m.state.Phase != Idle {
		return
	}
	metrics.RecordTransition("force_start")
	m.start()
}

// ForceEnd leaves Active without consulting the detector.
func (m *Machine) ForceEnd() {
	if m.closed || m.state.Phase != Active {
		return
	}
	metrics.RecordTransition("force_end")
	m.end()
}

// ScheduleDismiss (re)arms the debounced dismiss scan. It does nothing unless
// an interruption is active, and the scan re-checks that when it fires.
func (m *Machine) ScheduleDismiss() {
	if m.closed || !m.Active() || m.deps.Dismiss == nil {
		return
	}
	loop.StopTimer(m.dismissTimer)
	m.dismissTimer = m.deps.Scheduler.After(m.cfg.DismissDelay, func() {
		m.dismissTimer = nil
		if m.Active() {
			m.deps.Dismiss.Scan()
		}
	})
}

// Close stops the machine's timers. An interruption still in progress is
// unwound: the restore rate is put back and the tab unmuted, without counting
// it. Later calls to Evaluate, Apply and the Force methods do nothing.
func (m *Machine) Close() {
	if m.closed {
		return
	}
	m.closed = true
	loop.StopTimer(m.dismissTimer)
	m.dismissTimer = nil
	loop.StopTimer(m.reloadTimer)
	m.reloadTimer = nil

	if m.state.Phase != Active {
		return
	}
	m.state.Phase = Idle
	m.state.StartedAt = time.Time{}
	if !m.deps.Rates.Set(m.state.RestoreRate) {
		m.log.Warn().Float64(log.FieldRestoreRate, m.state.RestoreRate).Msg("restoring playback rate on close failed")
	}
	m.emit(command.Unmute)
	m.log.Info().Float64(log.FieldRestoreRate, m.state.RestoreRate).Msg("interruption unwound on close")
}

func (m *Machine) start() {
	now := m.deps.Scheduler.Now()
	m.state.Phase = Active
	m.state.StartedAt = now
	m.state.RestoreRate = m.deps.Rates.Get()

	if !m.state.Calibrated {
		m.calibrate()
	}
	m.accelerate()
	m.emit(command.Mute)
	m.ScheduleDismiss()

	metrics.RecordTransition("start")
	m.log.Info().
		Float64(log.FieldRestoreRate, m.state.RestoreRate).
		Float64(log.FieldRate, m.state.CalibratedRate).
		Msg("interruption started")
}

func (m *Machine) end() {
	activeFor := m.deps.Scheduler.Now().Sub(m.state.StartedAt)
	m.state.Phase = Idle
	m.state.StartedAt = time.Time{}
	loop.StopTimer(m.dismissTimer)
	m.dismissTimer = nil

	if !m.deps.Rates.Set(m.state.RestoreRate) {
		m.log.Warn().Float64(log.FieldRestoreRate, m.state.RestoreRate).Msg("restoring playback rate failed")
	}
	m.emit(command.Unmute)
	m.emit(command.AdCounter)

	metrics.RecordTransition("end")
	metrics.ObserveInterruption(activeFor.Seconds())
	m.log.Info().
		Dur(log.FieldActiveFor, activeFor).
		Float64(log.FieldRestoreRate, m.state.RestoreRate).
		Msg("interruption ended")
}

func (m *Machine) accelerate() {
	if !m.deps.Rates.Set(m.state.CalibratedRate) {
		m.log.Debug().Float64(log.FieldRate, m.state.CalibratedRate).Msg("accelerated rate refused")
	}
}

// calibrate picks the first rate the player accepts: the target, then each
// fallback in order, then the safe rate. It runs once per machine.
func (m *Machine) calibrate() {
	m.state.Calibrated = true
	candidates := append([]float64{m.cfg.TargetRate}, m.cfg.Fallbacks...)
	for _, rate := range candidates {
		if m.deps.Rates.Set(rate) {
			m.state.CalibratedRate = rate
			m.log.Info().Float64(log.FieldRate, rate).Msg("playback rate calibrated")
			metrics.SetCalibratedRate(rate)
			return
		}
	}
	m.state.CalibratedRate = m.cfg.SafeRate
	m.log.Warn().Float64(log.FieldRate, m.cfg.SafeRate).Msg("all candidate rates refused, using safe rate")
	metrics.SetCalibratedRate(m.cfg.SafeRate)
}

func (m *Machine) warn() {
	m.log.Warn().Bool("was_active", m.Active()).Msg("denial warning detected, reloading page")
	m.state.Phase = Reloading
	m.state.StartedAt = time.Time{}
	loop.StopTimer(m.dismissTimer)
	m.dismissTimer = nil

	m.emit(command.Unmute)
	m.emit(command.WarningDetected)
	m.emit(command.PageReload)
	metrics.IncWarning()

	m.reloadTimer = m.deps.Scheduler.After(m.cfg.ReloadDelay, func() {
		m.reloadTimer = nil
		if err := m.deps.Reloader.Reload(); err != nil {
			m.log.Error().Err(err).Msg("page reload failed")
		}
	})
}

func (m *Machine) emit(action command.Action) {
	if err := m.deps.Sender.Send(command.Message{Action: action}); err != nil {
		m.log.Warn().Err(err).Str(log.FieldAction, string(action)).Msg("command not delivered")
		metrics.IncCommandDrop(string(action), command.Reason(err))
	}
}
