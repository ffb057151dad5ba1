package svc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBase is a nonzero "now" for every test registry: Unix epoch 0 is
// reserved by the fixed-point encoding to mean "undefined" (spec.md §3),
// so starting the fake clock there would make BiasNonzero kick in on
// every start_time computed as exactly "now", which a real wall clock
// never observes in practice.
const testBase = FixedTime(1) << 32

// Scenario 1 (spec.md §8 "Create and start").
func TestCreateAndStart(t *testing.T) {
	reg, clock, _, _, _ := newTestRegistry(0)

	rec, ok := reg.ByName("web", true)
	require.True(t, ok)
	require.True(t, reg.SetArgv(rec, "/bin/httpd"))

	when := FixedTime(1) << 32
	require.True(t, reg.HandleStart(rec, when))

	assert.Equal(t, Start, rec.State())
	assert.Equal(t, when, rec.StartTime())
	assert.True(t, reg.active.isMember(rec, activeAccessor))
	assert.Equal(t, clock.Now(), clock.Next())
}

func TestHandleStartRejectsWrongState(t *testing.T) {
	reg, _, _, _, launcher := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	reg.HandleStart(rec, 0)
	reg.Run(rec) // forks, moves to Up
	require.Equal(t, Up, rec.State())
	require.Equal(t, 1, launcher.calls)

	assert.False(t, reg.HandleStart(rec, 0))
	assert.Equal(t, Up, rec.State())
}

func TestCancelStartReturnsToDown(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	reg.HandleStart(rec, testBase+FixedTime(5)<<32)

	require.True(t, reg.CancelStart(rec))
	assert.Equal(t, Down, rec.State())
	assert.Equal(t, FixedTime(0), rec.StartTime())
	assert.False(t, reg.active.isMember(rec, activeAccessor))
}

func TestCancelStartRejectsWrongState(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	assert.False(t, reg.CancelStart(rec)) // still Down
}

// A tick before start_time must not fork, and must only lower Next.
func TestRunBeforeStartTimeDoesNotFork(t *testing.T) {
	reg, clock, _, _, launcher := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	reg.HandleStart(rec, testBase+FixedTime(10)<<32)
	clock.reset() // simulate the daemon loop's per-tick Next reset

	reg.Run(rec)

	assert.Equal(t, Start, rec.State())
	assert.Equal(t, 0, launcher.calls)
	assert.Equal(t, testBase+FixedTime(10)<<32, clock.Next())
}

func TestRunForksOnceStartTimeArrives(t *testing.T) {
	reg, clock, _, notifySink, launcher := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	reg.HandleStart(rec, testBase+FixedTime(10)<<32)
	clock.advance(FixedTime(10) << 32)

	reg.Run(rec)

	require.Equal(t, Up, rec.State())
	assert.Equal(t, 1, rec.Pid())
	assert.Equal(t, 1, launcher.calls)
	assert.False(t, reg.active.isMember(rec, activeAccessor))
	found, ok := reg.ByPid(1)
	assert.True(t, ok)
	assert.Same(t, rec, found)
	assert.NotEmpty(t, notifySink.events)
}

func TestRunRetriesOnForkFailure(t *testing.T) {
	reg, clock, _, _, launcher := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	reg.HandleStart(rec, clock.Now())
	launcher.failNext = true
	clock.reset()

	reg.Run(rec)

	assert.Equal(t, Start, rec.State())
	assert.Equal(t, 0, rec.Pid())
	assert.Equal(t, clock.Now()+ForkRetryDelay, rec.StartTime())
	assert.Equal(t, clock.Now(), clock.Next()) // HandleStart pulls Next to now
}

// Scenario 2 (spec.md §8 "Back-off").
func TestBackoffOnShortLivedService(t *testing.T) {
	reg, clock, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	require.True(t, rec.SetRestartInterval(FixedTime(10) << 32))
	require.True(t, reg.SetTriggers(rec, "always"))

	reg.HandleStart(rec, clock.Now())
	reg.Run(rec) // -> Up, pid assigned
	require.Equal(t, Up, rec.State())

	clock.advance(FixedTime(2) << 32) // t1 = t0 + 2s
	reg.HandleReaped(rec, 0)
	require.Equal(t, Reaped, rec.State())

	beforeReapTick := clock.Now()
	reg.Run(rec) // Reaped -> Start (back-off: ran 2s < 10s restart_interval)

	assert.Equal(t, Start, rec.State())
	assert.Equal(t, beforeReapTick+FixedTime(10)<<32, rec.StartTime())
}

func TestNoBackoffWhenRanLongEnough(t *testing.T) {
	reg, clock, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	require.True(t, rec.SetRestartInterval(FixedTime(1) << 32))
	require.True(t, reg.SetTriggers(rec, "always"))

	reg.HandleStart(rec, clock.Now())
	reg.Run(rec)
	require.Equal(t, Up, rec.State())

	clock.advance(FixedTime(5) << 32) // ran far longer than restart_interval
	reg.HandleReaped(rec, 0)

	now := clock.Now()
	reg.Run(rec) // Reaped -> Start at now -> forks again in the same call

	assert.Equal(t, Up, rec.State())
	assert.Equal(t, now, rec.StartTime())
}

func TestReapedWithoutTriggerGoesDown(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	reg.HandleStart(rec, 0)
	reg.Run(rec)
	require.Equal(t, Up, rec.State())

	reg.HandleReaped(rec, 0)
	reg.Run(rec)

	assert.Equal(t, Down, rec.State())
	assert.False(t, reg.active.isMember(rec, activeAccessor))
}

func TestHandleReapedIgnoredUnlessUp(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	reg.HandleReaped(rec, 0) // still Down
	assert.Equal(t, Down, rec.State())
}

// Scenario 3 (spec.md §8 "Signal trigger"), with the same-tick processing
// spec.md §5 requires: a record that becomes START because of a signal is
// run through the state machine in the same run_active call, so here (with
// a launcher that always succeeds) it forks all the way to UP.
func TestSignalTriggerStartsService(t *testing.T) {
	reg, clock, sigs, _, launcher := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	require.True(t, reg.SetTriggers(rec, "SIGHUP"))
	require.Equal(t, Down, rec.State()) // no pending signal yet, so no immediate start

	sigs.push(1 /* SIGHUP */, testBase+1, 1)
	reg.RunActive()

	assert.Equal(t, Up, rec.State())
	assert.Equal(t, clock.Now(), rec.StartTime())
	assert.Equal(t, 1, launcher.calls)
}

func TestSetTriggersStartsImmediatelyWhenSignalAlreadyPending(t *testing.T) {
	reg, _, sigs, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	sigs.push(1, testBase+1, 1)

	require.True(t, reg.SetTriggers(rec, "SIGHUP"))
	assert.Equal(t, Start, rec.State())
}

func TestSetTriggersAlwaysStartsImmediately(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	require.True(t, reg.SetTriggers(rec, "always"))
	assert.Equal(t, Start, rec.State())
	assert.True(t, rec.AutoRestart())
}

func TestSetTriggersRejectsBadTokenWithoutMutating(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	require.True(t, reg.SetTriggers(rec, "SIGHUP"))

	ok := reg.SetTriggers(rec, "SIGHUP\tnot-a-signal")
	assert.False(t, ok)
	assert.Equal(t, "SIGHUP", reg.GetTriggers(rec))
	assert.True(t, rec.Sigwake())
}

func TestSetTriggersEmptyClearsBoth(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	require.True(t, reg.SetTriggers(rec, "always\tSIGHUP"))
	require.True(t, reg.SetTriggers(rec, ""))
	assert.False(t, rec.AutoRestart())
	assert.False(t, rec.Sigwake())
}

// The active-list sweep must tolerate a record removing itself mid-walk.
func TestRunActiveToleratesSelfRemoval(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	a, _ := reg.ByName("a", true)
	b, _ := reg.ByName("b", true)
	reg.HandleStart(a, 0)
	reg.HandleStart(b, testBase+FixedTime(100)<<32) // stays Start, still pending

	reg.RunActive() // a forks to Up (deactivates itself); b stays pending

	assert.Equal(t, Up, a.State())
	assert.Equal(t, Start, b.State())
	assert.True(t, reg.active.isMember(b, activeAccessor))
	assert.False(t, reg.active.isMember(a, activeAccessor))
}

func TestSendSignal(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(testBase)
	rec, _ := reg.ByName("web", true)
	assert.False(t, reg.SendSignal(rec, 1, false)) // no pid yet
}
