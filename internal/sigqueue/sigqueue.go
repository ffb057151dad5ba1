// Package sigqueue buffers OS signals into the polling shape the service
// core expects (spec §6 "signal-event source"): next_event(after_ts) →
// (signum, ts, count) | end. It also resolves signal names to numbers for
// the "triggers" variable (spec §4.4).
//
// Grounded on kornnellio-gosv/supervisor.go's setupSignals/signal.Notify
// use, adapted from a direct os.Signal switch into the buffered,
// timestamp-polled shape the core needs.
package sigqueue

import (
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/opsvisor/gosv/internal/svc"
)

var byName = map[string]syscall.Signal{
	"SIGHUP":  syscall.SIGHUP,
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGILL":  syscall.SIGILL,
	"SIGTRAP": syscall.SIGTRAP,
	"SIGABRT": syscall.SIGABRT,
	"SIGBUS":  syscall.SIGBUS,
	"SIGFPE":  syscall.SIGFPE,
	"SIGKILL": syscall.SIGKILL,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGSEGV": syscall.SIGSEGV,
	"SIGUSR2": syscall.SIGUSR2,
	"SIGPIPE": syscall.SIGPIPE,
	"SIGALRM": syscall.SIGALRM,
	"SIGTERM": syscall.SIGTERM,
	"SIGCHLD": syscall.SIGCHLD,
	"SIGCONT": syscall.SIGCONT,
	"SIGSTOP": syscall.SIGSTOP,
	"SIGTSTP": syscall.SIGTSTP,
	"SIGTTIN": syscall.SIGTTIN,
	"SIGTTOU": syscall.SIGTTOU,
	"SIGUSR3": syscall.SIGUSR1, // alias kept for manifest compatibility
}

// Numberer resolves trigger signal names to numbers (svc.SignalNumberer).
type Numberer struct{}

// NumByName resolves name (with or without the "SIG" prefix,
// case-insensitive) to its platform signal number, or 0 if unrecognized.
func (Numberer) NumByName(name string) int {
	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, "SIG") {
		upper = "SIG" + upper
	}
	if s, ok := byName[upper]; ok {
		return int(s)
	}
	return 0
}

type record struct {
	signum int
	ts     svc.FixedTime
	count  int
}

// Source is the concrete svc.SignalSource: it accumulates coalesced
// per-signal event records in arrival order and lets the core poll them
// by "after timestamp", matching sig_get_new_events in
// original_source/src/service.c.
type Source struct {
	mu      sync.Mutex
	ch      chan os.Signal
	clock   interface{ Now() svc.FixedTime }
	history []record
}

// New starts watching the given signals and returns a Source. clock
// supplies timestamps for newly observed events.
func New(clock interface{ Now() svc.FixedTime }, sigs ...os.Signal) *Source {
	s := &Source{
		ch:    make(chan os.Signal, 64),
		clock: clock,
	}
	signal.Notify(s.ch, sigs...)
	go s.drain()
	return s
}

func (s *Source) drain() {
	for sig := range s.ch {
		num := int(sig.(syscall.Signal))
		ts := s.clock.Now()
		s.mu.Lock()
		if n := len(s.history); n > 0 && s.history[n-1].signum == num {
			s.history[n-1].count++
			s.history[n-1].ts = ts
		} else {
			s.history = append(s.history, record{signum: num, ts: ts, count: 1})
		}
		s.mu.Unlock()
	}
}

// NextEvent returns the first recorded event with ts strictly after
// `after`, or ok=false if there is none yet.
func (s *Source) NextEvent(after svc.FixedTime) (svc.SignalEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.history {
		if r.ts > after {
			return svc.SignalEvent{Signum: r.signum, Ts: r.ts, Count: r.count}, true
		}
	}
	return svc.SignalEvent{}, false
}
