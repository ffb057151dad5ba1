package svc

import (
	"github.com/opsvisor/gosv/internal/log"
)

// Launcher forks and execs a service's child process (spec §4.3). It is
// satisfied by internal/launch.Launcher; kept as an interface here so the
// core never imports the launch package directly (matching the
// "consumed from external collaborators" shape of spec §6 for everything
// that touches the OS).
type Launcher interface {
	ForkChild(r *Record) (pid int, ok bool)
}

// Registry owns the name/pid indices, the active/sigwake lists, and the
// collaborators the state machine needs. It is the Go rendition of the
// package-level globals in original_source/src/service.c
// (svc_by_name_index, svc_by_pid_index, svc_active_list, svc_sigwake_list,
// svc_last_signal_ts) — bundled into one value instead of process-wide
// globals so multiple supervisors can coexist in tests.
type Registry struct {
	names recordAllocator
	byName *nameIndex
	byPid  *pidIndex
	active  listSet
	sigwake listSet

	lastSignalTs FixedTime

	clock     WakeClock
	sigSource SignalSource
	signums   SignalNumberer
	notify    NotifySink
	launcher  Launcher
}

// Options configures a Registry at construction time.
type Options struct {
	Clock     WakeClock
	SigSource SignalSource
	SigNums   SignalNumberer
	Notify    NotifySink
	Launcher  Launcher

	// PoolCapacity > 0 switches to pool mode: at most PoolCapacity
	// records, each with PoolVarsCapacity bytes of variable storage.
	PoolCapacity     int
	PoolVarsCapacity int
}

// NewRegistry constructs an empty Registry. Heap mode is used unless
// opts.PoolCapacity > 0.
func NewRegistry(opts Options) *Registry {
	var alloc recordAllocator = heapAllocator{}
	if opts.PoolCapacity > 0 {
		alloc = newPoolAllocator(opts.PoolCapacity, opts.PoolVarsCapacity)
	}
	return &Registry{
		names:     alloc,
		byName:    newNameIndex(),
		byPid:     newPidIndex(),
		clock:     opts.Clock,
		sigSource: opts.SigSource,
		signums:   opts.SigNums,
		notify:    opts.Notify,
		launcher:  opts.Launcher,
	}
}

// ByName looks up a service by name, optionally creating it (spec §4.7,
// grounded on svc_by_name). A new record starts in Down with pid=0, empty
// vars, not a member of either list.
func (reg *Registry) ByName(name string, create bool) (*Record, bool) {
	if r := reg.byName.lookup(name); r != nil {
		return r, true
	}
	if !create || !CheckName(name) {
		return nil, false
	}
	r := reg.names.alloc(name)
	if r == nil {
		return nil, false // pool exhausted
	}
	reg.byName.insert(r)
	return r, true
}

// CheckName reports whether name is syntactically valid.
func (reg *Registry) CheckName(name string) bool { return CheckName(name) }

// ByPid looks up the service currently running as pid, if any.
func (reg *Registry) ByPid(pid int) (*Record, bool) {
	r := reg.byPid.lookup(pid)
	return r, r != nil
}

// IterNext returns the next record in name order. If rec is non-nil, it
// returns rec's successor. Otherwise it looks up fromName: if present,
// returns its successor; if absent, returns the first record whose name
// sorts greater (lower bound). Grounded on svc_iter_next.
func (reg *Registry) IterNext(rec *Record, fromName string) (*Record, bool) {
	var next *Record
	if rec != nil {
		next = reg.byName.next(rec)
	} else {
		next = reg.byName.nextFrom(fromName)
	}
	return next, next != nil
}

// Delete removes rec from both indices and both lists, and releases its
// variable buffer (for non-pooled records). Grounded on svc_dtor/svc_delete.
func (reg *Registry) Delete(rec *Record) {
	reg.active.setMember(rec, false, activeAccessor)
	reg.sigwake.setMember(rec, false, sigwakeAccessor)
	if rec.pid != 0 {
		reg.byPid.remove(rec)
	}
	reg.byName.remove(rec)
	reg.names.release(rec)
}

// changePid updates rec's pid, keeping the pid index in sync atomically:
// the old entry (if any) is pruned before the new one (if any) is added.
// Grounded on svc_change_pid.
func (reg *Registry) changePid(rec *Record, pid int) {
	if rec.pid != 0 {
		reg.byPid.remove(rec)
	}
	rec.pid = pid
	if rec.pid != 0 {
		reg.byPid.insert(rec)
	}
}

func (reg *Registry) setActive(rec *Record, on bool) {
	reg.active.setMember(rec, on, activeAccessor)
}

func (reg *Registry) setSigwake(rec *Record, on bool) {
	reg.sigwake.setMember(rec, on, sigwakeAccessor)
}

// checkSigwake reports whether a signal matching one of rec's
// autostart_signals is anywhere in the signal source's history. Grounded on
// svc_check_sigwake: it polls the signal source from timestamp 0 each
// time, same as the C source, since this is only used for the "is there
// already a pending trigger" immediate-start check in SetTriggers/REAPED
// handling, not for dispatch (dispatch is RunActive's job).
func (reg *Registry) checkSigwake(rec *Record) bool {
	if !rec.sigwakeFlag {
		return false
	}
	ts := FixedTime(0)
	for {
		ev, ok := reg.sigSource.NextEvent(ts)
		if !ok {
			return false
		}
		if rec.autostartSigs[ev.Signum] {
			return true
		}
		ts = ev.Ts
	}
}

func (reg *Registry) notifyState(rec *Record) {
	log.Trace().Str("service", rec.name).Str("state", rec.state.String()).Msg("service state")
	if reg.notify != nil {
		reg.notify.NotifyState(rec.name, rec.startTime, rec.reapTime, rec.waitStatus, rec.pid)
	}
}
