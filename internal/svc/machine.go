package svc

import (
	"golang.org/x/sys/unix"

	"github.com/opsvisor/gosv/internal/log"
)

// ForkRetryDelay is how long the state machine waits before retrying a
// failed fork attempt (spec §4.1, §7). Five seconds, matching the
// original's FORK_RETRY_DELAY constant.
const ForkRetryDelay FixedTime = 5 * SecondsFixed

// HandleStart transitions rec to Start (spec §4.7, grounded on
// svc_handle_start). Precondition: state is Down or Start.
func (reg *Registry) HandleStart(rec *Record, when FixedTime) bool {
	if rec.state != Down && rec.state != Start {
		log.Debug().Str("service", rec.name).Str("state", rec.state.String()).
			Msg("can't start service: wrong state")
		return false
	}

	now := reg.clock.Now()
	if when-now <= 0 {
		when = now
	}
	rec.state = Start
	rec.startTime = BiasNonzero(when)
	reg.changePid(rec, 0)
	rec.reapTime = 0
	rec.waitStatus = -1
	reg.setActive(rec, true)
	reg.notifyState(rec)
	reg.clock.SetNext(now)
	return true
}

// CancelStart returns rec to Down before it has forked (spec §4.7,
// grounded on svc_cancel_start). Precondition: state is Start.
func (reg *Registry) CancelStart(rec *Record) bool {
	if rec.state != Start {
		log.Debug().Str("service", rec.name).Str("state", rec.state.String()).
			Msg("can't cancel start: wrong state")
		return false
	}
	rec.state = Down
	rec.startTime = 0
	reg.setActive(rec, false)
	reg.notifyState(rec)
	return true
}

// HandleReaped records a child's termination status and moves rec to
// Reaped (spec §4.7, grounded on svc_handle_reaped). Ignored unless rec is
// currently Up.
func (reg *Registry) HandleReaped(rec *Record, wstat int) {
	if rec.state != Up {
		log.Trace().Str("service", rec.name).Int("pid", rec.pid).
			Msg("pid reaped, but service is not up")
		return
	}
	log.Trace().Str("service", rec.name).Msg("service reaped")
	rec.waitStatus = wstat
	rec.state = Reaped
	rec.reapTime = reg.clock.Now()
	reg.setActive(rec, true)
	reg.clock.SetNext(reg.clock.Now())
}

// SendSignal sends signum to rec's pid, or its process group if group is
// true. Returns false if rec has no live pid or the kill(2) call fails.
// Grounded on svc_send_signal.
func (reg *Registry) SendSignal(rec *Record, signum int, group bool) bool {
	if rec.pid <= 0 {
		return false
	}
	log.Debug().Str("service", rec.name).Int("pid", rec.pid).Int("signal", signum).
		Msg("sending signal")
	target := rec.pid
	if group {
		target = -rec.pid
	}
	return unix.Kill(target, unix.Signal(signum)) == nil
}

// Run drives the state machine for a single record one step (spec §4.1,
// §9 "Tail-call in state machine"). The Reaped→(Down|Start) transition
// happens within this same call without returning to the caller, via the
// "goto reswitch" label below — the Go rendition of the C source's
// "goto re_switch_state" in svc_run (original_source/src/service.c:587-639).
func (reg *Registry) Run(rec *Record) {
reswitch:
	log.Trace().Str("service", rec.name).Str("state", rec.state.String()).Msg("service run")
	switch rec.state {
	case Start:
		now := reg.clock.Now()
		if rec.startTime-now > 0 {
			if rec.startTime-reg.clock.Next() < 0 {
				reg.clock.SetNext(rec.startTime)
			}
			reg.setActive(rec, true)
			break
		}

		pid, ok := reg.launcher.ForkChild(rec)
		if !ok {
			log.Info().Str("service", rec.name).Int64("retry_seconds", int64(ForkRetryDelay.Seconds())).
				Msg("fork failed, will retry")
			reg.HandleStart(rec, reg.clock.Now()+ForkRetryDelay)
			goto reswitch
		}
		reg.changePid(rec, pid)

		now = reg.clock.Now()
		rec.startTime = BiasNonzero(now)
		rec.state = Up
		reg.notifyState(rec)
		fallthrough
	case Up:
		reg.setActive(rec, false)
		// waitpid (delivered via HandleReaped from outside the core)
		// re-activates us and sets state to Reaped.
	case Reaped:
		reg.notifyState(rec)
		rec.state = Down
		if rec.autoRestart || reg.checkSigwake(rec) {
			now := reg.clock.Now()
			when := now
			if rec.reapTime-rec.startTime < rec.restartInterval {
				when = now + rec.restartInterval
			}
			reg.HandleStart(rec, when)
			reg.notifyState(rec)
		}
		goto reswitch
	case Down:
		reg.setActive(rec, false)
	case Undef:
		panic("svc: record reached Undef state")
	default:
		panic("svc: unknown state")
	}
}
