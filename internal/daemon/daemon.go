// Package daemon drives the main supervisor loop: it owns the OS-facing
// signal channel for control signals (as opposed to the service-trigger
// signals internal/sigqueue buffers for the core), reaps children, and
// calls into internal/svc on every wake.
//
// Adapted from kornnellio-gosv/supervisor.go's Supervisor.Run select
// loop, restructured around svc.Registry.RunActive instead of a
// restarts-channel/process-map, and generalized from a fixed signal
// switch to one driven by the wake clock's Next deadline.
package daemon

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsvisor/gosv/internal/cgroup"
	"github.com/opsvisor/gosv/internal/config"
	"github.com/opsvisor/gosv/internal/log"
	"github.com/opsvisor/gosv/internal/procinfo"
	"github.com/opsvisor/gosv/internal/svc"
	"github.com/opsvisor/gosv/internal/wake"
)

// Daemon ties a Registry to the OS: it reaps SIGCHLD, applies cgroup
// limits once a service's child has forked, and dumps procfs info on
// SIGUSR1.
type Daemon struct {
	reg    *svc.Registry
	clock  *wake.Clock
	cg     *cgroup.Manager
	limits map[string]config.Limits

	sigChan  chan os.Signal
	limited  map[int]bool // pids already handed to cgroup
}

// New builds a Daemon. limits may be nil if no manifest limits apply.
func New(reg *svc.Registry, clock *wake.Clock, cg *cgroup.Manager, limits map[string]config.Limits) *Daemon {
	return &Daemon{
		reg:     reg,
		clock:   clock,
		cg:      cg,
		limits:  limits,
		sigChan: make(chan os.Signal, 16),
		limited: make(map[int]bool),
	}
}

func (d *Daemon) setupSignals() {
	signal.Notify(d.sigChan,
		syscall.SIGCHLD,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGUSR1,
	)
}

// reapZombies drains every exited child with a non-blocking wait4 loop,
// since SIGCHLD coalesces when several children die close together.
func (d *Daemon) reapZombies() {
	for {
		var wstatus syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &wstatus, syscall.WNOHANG, nil)
		if pid <= 0 || err != nil {
			return
		}

		rec, ok := d.reg.ByPid(pid)
		if !ok {
			log.Debug().Int("pid", pid).Msg("reaped unknown pid")
			continue
		}
		d.reg.HandleReaped(rec, int(wstatus))
		delete(d.limited, pid)
	}
}

// applyPendingLimits hands every freshly-forked, not-yet-limited service
// to the cgroup manager. Best effort: failures are logged by the manager
// itself and never affect the service's state.
func (d *Daemon) applyPendingLimits() {
	if d.cg == nil || !d.cg.Available() || len(d.limits) == 0 {
		return
	}
	var rec *svc.Record
	for {
		next, ok := d.reg.IterNext(rec, "")
		if !ok {
			return
		}
		rec = next
		if rec.State() != svc.Up || rec.Pid() == 0 || d.limited[rec.Pid()] {
			continue
		}
		lim, ok := d.limits[rec.Name()]
		if !ok {
			continue
		}
		d.cg.ApplyLimits(rec.Name(), rec.Pid(), lim.MemoryLimitMB, lim.CPUQuotaPercent)
		d.limited[rec.Pid()] = true
	}
}

// gracefulShutdown signals every running service with SIGTERM, waits up
// to 10 seconds, then SIGKILLs stragglers.
func (d *Daemon) gracefulShutdown() {
	log.Info().Msg("shutting down: sending SIGTERM to running services")

	var rec *svc.Record
	var pids []int
	for {
		next, ok := d.reg.IterNext(rec, "")
		if !ok {
			break
		}
		rec = next
		if rec.Pid() != 0 {
			d.reg.SendSignal(rec, int(syscall.SIGTERM), false)
			pids = append(pids, rec.Pid())
		}
	}

	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			for _, pid := range pids {
				syscall.Kill(pid, syscall.SIGKILL)
			}
			d.reapZombies()
			return
		case <-ticker.C:
			d.reapZombies()
			allDead := true
			for _, pid := range pids {
				if syscall.Kill(pid, 0) == nil {
					allDead = false
				}
			}
			if allDead {
				log.Info().Msg("all services terminated")
				return
			}
		}
	}
}

// Run enters the main loop: it sleeps until the wake clock's next
// deadline or a control signal arrives, whichever comes first, then
// re-runs the scheduler.
func (d *Daemon) Run() {
	d.setupSignals()
	log.Info().Int("pid", os.Getpid()).Msg("gosv running")

	for {
		d.clock.Reset()
		d.reg.RunActive()
		d.applyPendingLimits()

		timer := time.NewTimer(d.clock.SleepDuration())
		select {
		case sig := <-d.sigChan:
			timer.Stop()
			switch sig {
			case syscall.SIGCHLD:
				d.reapZombies()
			case syscall.SIGTERM, syscall.SIGINT:
				d.gracefulShutdown()
				return
			case syscall.SIGHUP:
				log.Info().Msg("SIGHUP received (manifest reload not supported)")
			case syscall.SIGUSR1:
				procinfo.Dump(d.reg)
			}
		case <-timer.C:
		}
	}
}
