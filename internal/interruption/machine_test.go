package interruption

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/adspeed/internal/command"
	"github.com/llehouerou/adspeed/internal/detect"
	"github.com/llehouerou/adspeed/internal/loop"
	"github.com/llehouerou/adspeed/internal/player"
)

var (
	idle    = detect.Result{MediaAvailable: true}
	active  = detect.Result{MediaAvailable: true, InterruptionPresent: true}
	warning = detect.Result{MediaAvailable: true, WarningPresent: true}
)

type stubDetector struct{ next detect.Result }

func (s *stubDetector) Detect() detect.Result { return s.next }

type countingScanner struct{ scans int }

func (c *countingScanner) Scan() { c.scans++ }

type stubReloader struct {
	reloads int
	err     error
}

func (r *stubReloader) Reload() error {
	r.reloads++
	return r.err
}

type fixture struct {
	m        *Machine
	rates    *player.MockRates
	sender   *command.MockSender
	sched    *loop.Manual
	det      *stubDetector
	scanner  *countingScanner
	reloader *stubReloader
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		rates:    player.NewMockRates(1),
		sender:   &command.MockSender{},
		sched:    loop.NewManual(time.Unix(1000, 0)),
		det:      &stubDetector{},
		scanner:  &countingScanner{},
		reloader: &stubReloader{},
	}
	f.m = New(cfg, Deps{
		Rates:     f.rates,
		Sender:    f.sender,
		Scheduler: f.sched,
		Detector:  f.det,
		Dismiss:   f.scanner,
		Reloader:  f.reloader,
	})
	return f
}

func TestMachine_StartAndEnd(t *testing.T) {
	f := newFixture(t, Config{})
	f.rates.SetRate(1.5)

	f.m.Apply(active)
	st := f.m.State()
	assert.Equal(t, Active, st.Phase)
	assert.Equal(t, f.sched.Now(), st.StartedAt)
	assert.InDelta(t, 1.5, st.RestoreRate, 0)
	assert.True(t, st.Calibrated)
	assert.InDelta(t, 32.0, st.CalibratedRate, 0)
	assert.InDelta(t, 32.0, f.rates.Get(), 0)
	assert.Equal(t, []command.Action{command.Mute}, f.sender.Actions())

	f.sched.Advance(2 * time.Second)
	f.m.Apply(idle)
	st = f.m.State()
	assert.Equal(t, Idle, st.Phase)
	assert.True(t, st.StartedAt.IsZero())
	assert.InDelta(t, 1.5, f.rates.Get(), 0, "rate round-trips exactly")
	assert.Equal(t, []command.Action{command.Mute, command.Unmute, command.AdCounter}, f.sender.Actions())
}

func TestMachine_SequenceCountsOnce(t *testing.T) {
	f := newFixture(t, Config{})
	for _, r := range []detect.Result{idle, active, active, idle} {
		f.m.Apply(r)
	}
	assert.Equal(t, 1, f.sender.Count(command.Mute))
	assert.Equal(t, 1, f.sender.Count(command.Unmute))
	assert.Equal(t, 1, f.sender.Count(command.AdCounter))
}

func TestMachine_RepeatedActiveIsIdempotent(t *testing.T) {
	f := newFixture(t, Config{})
	f.m.Apply(active)
	first := f.m.State()

	f.rates.SetRate(4) // page changed the rate mid-interruption
	f.m.Apply(active)

	assert.Equal(t, first, f.m.State(), "no second capture or calibration")
	assert.InDelta(t, 32.0, f.rates.Get(), 0, "calibrated rate re-applied")
	assert.Equal(t, 1, f.sender.Count(command.Mute))
}

func TestMachine_IdleWhileIdleDoesNothing(t *testing.T) {
	f := newFixture(t, Config{})
	f.m.Apply(idle)
	f.m.Apply(detect.Result{})
	assert.Empty(t, f.sender.Sent)
	assert.Empty(t, f.rates.Attempts())
}

func TestMachine_EventualConsistency(t *testing.T) {
	seqs := [][]detect.Result{
		{active},
		{active, idle},
		{idle, active, idle, active},
		{active, active, active},
		{idle, idle, active, idle},
	}
	for _, seq := range seqs {
		f := newFixture(t, Config{})
		for _, r := range seq {
			f.m.Apply(r)
		}
		last := seq[len(seq)-1]
		assert.Equal(t, last.InterruptionPresent, f.m.Active())
	}
}

func TestMachine_CalibrationFallback(t *testing.T) {
	f := newFixture(t, Config{})
	f.rates.SetAccept(func(rate float64) bool { return rate <= 16 })

	f.m.Apply(active)
	assert.InDelta(t, 16.0, f.m.State().CalibratedRate, 0)
	assert.Equal(t, []float64{32, 50, 32, 16, 16}, f.rates.Attempts(), "target, fallbacks in order, then apply")
}

func TestMachine_CalibrationSafeRate(t *testing.T) {
	f := newFixture(t, Config{})
	f.rates.SetAccept(func(rate float64) bool { return rate <= 2 })

	f.m.Apply(active)
	assert.InDelta(t, 2.0, f.m.State().CalibratedRate, 0)
	assert.InDelta(t, 2.0, f.rates.Get(), 0)
}

func TestMachine_CalibratesOncePerLifetime(t *testing.T) {
	f := newFixture(t, Config{})
	f.rates.SetAccept(func(rate float64) bool { return rate <= 8 })
	f.m.Apply(active)
	f.m.Apply(idle)
	require.InDelta(t, 8.0, f.m.State().CalibratedRate, 0)

	// The player would now accept the target, but calibration is not re-run.
	f.rates.SetAccept(nil)
	before := len(f.rates.Attempts())
	f.m.Apply(active)
	attempts := f.rates.Attempts()[before:]
	assert.Equal(t, []float64{8}, attempts)
	assert.InDelta(t, 8.0, f.m.State().CalibratedRate, 0)
}

func TestMachine_WarningPrecedence(t *testing.T) {
	f := newFixture(t, Config{ReloadDelay: 100 * time.Millisecond})
	f.m.Apply(detect.Result{MediaAvailable: true, InterruptionPresent: true, WarningPresent: true})

	assert.Equal(t, []command.Action{command.Unmute, command.WarningDetected, command.PageReload}, f.sender.Actions())
	assert.Empty(t, f.rates.Attempts(), "no acceleration when a warning is present")
	assert.True(t, f.m.Terminated())
	assert.Zero(t, f.reloader.reloads)

	f.sched.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, f.reloader.reloads)
}

func TestMachine_WarningIsTerminal(t *testing.T) {
	f := newFixture(t, Config{})
	f.m.Apply(active)
	f.m.Apply(warning)
	sent := len(f.sender.Sent)

	f.m.Apply(warning)
	f.m.Apply(active)
	f.det.next = idle
	f.m.Evaluate()
	f.m.ForceStart()
	f.m.ForceEnd()

	assert.Len(t, f.sender.Sent, sent)
	f.sched.Advance(time.Second)
	assert.Equal(t, 1, f.reloader.reloads)
}

func TestMachine_ReloadErrorIsLogged(t *testing.T) {
	f := newFixture(t, Config{})
	f.reloader.err = errors.New("target closed")
	f.m.Apply(warning)
	f.sched.Advance(time.Second)
	assert.Equal(t, 1, f.reloader.reloads)
}

func TestMachine_SendFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t, Config{})
	f.sender.Err = command.ErrBusFull

	f.m.Apply(active)
	assert.True(t, f.m.Active())
	f.m.Apply(idle)
	assert.False(t, f.m.Active())
	assert.InDelta(t, 1.0, f.rates.Get(), 0)
}

func TestMachine_Evaluate(t *testing.T) {
	f := newFixture(t, Config{})
	f.det.next = active
	f.m.Evaluate()
	assert.True(t, f.m.Active())
	f.det.next = idle
	f.m.Evaluate()
	assert.False(t, f.m.Active())
}

func TestMachine_DismissScanIsDebounced(t *testing.T) {
	f := newFixture(t, Config{DismissDelay: 300 * time.Millisecond})
	f.m.Apply(active)
	assert.Zero(t, f.scanner.scans, "scan never runs synchronously")

	f.sched.Advance(200 * time.Millisecond)
	f.m.ScheduleDismiss()
	f.sched.Advance(200 * time.Millisecond)
	assert.Zero(t, f.scanner.scans, "re-arming pushes the scan back")

	f.sched.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, f.scanner.scans)
}

func TestMachine_DismissScanSkippedAfterEnd(t *testing.T) {
	f := newFixture(t, Config{DismissDelay: 300 * time.Millisecond})
	f.m.Apply(active)
	f.m.Apply(idle)
	f.sched.Advance(time.Second)
	assert.Zero(t, f.scanner.scans)

	f.m.ScheduleDismiss()
	assert.Zero(t, f.sched.Pending(), "idle machine schedules nothing")
}

func TestMachine_ForceTransitions(t *testing.T) {
	f := newFixture(t, Config{})
	f.m.ForceEnd()
	assert.Empty(t, f.sender.Sent, "force end while idle is a no-op")

	f.m.ForceStart()
	assert.True(t, f.m.Active())
	f.m.ForceStart()
	assert.Equal(t, 1, f.sender.Count(command.Mute))

	f.m.ForceEnd()
	assert.False(t, f.m.Active())
	assert.Equal(t, 1, f.sender.Count(command.AdCounter))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "reloading", Reloading.String())
	assert.Equal(t, "unknown", Phase(9).String())
}

func TestMachine_CloseUnwindsActive(t *testing.T) {
	f := newFixture(t, Config{})
	f.rates.SetRate(1.25)
	f.m.Apply(active)
	require.NotZero(t, f.sched.Pending(), "dismiss scan armed")

	f.m.Close()
	f.m.Close()
	assert.Equal(t, Idle, f.m.State().Phase)
	assert.InDelta(t, 1.25, f.rates.Get(), 0)
	assert.Equal(t, []command.Action{command.Mute, command.Unmute}, f.sender.Actions())
	assert.Zero(t, f.sched.Pending())
	assert.True(t, f.m.Terminated())

	f.det.next = active
	f.m.Evaluate()
	f.m.ForceStart()
	f.sched.Advance(time.Minute)
	assert.Zero(t, f.scanner.scans)
	assert.Len(t, f.sender.Sent, 2)
}

func TestMachine_CloseCancelsPendingReload(t *testing.T) {
	f := newFixture(t, Config{})
	f.m.Apply(warning)
	f.m.Close()
	f.sched.Advance(time.Second)
	assert.Zero(t, f.reloader.reloads)
}
