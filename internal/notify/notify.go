// Package notify implements the notification sink the core publishes
// state-change events to (spec §6): one notify_svc_state call per
// transition, logged and also kept in a small ring buffer so it can be
// replayed over the control socket (the textual control-protocol itself
// is out of scope, spec §1).
package notify

import (
	"sync"

	"github.com/opsvisor/gosv/internal/log"
	"github.com/opsvisor/gosv/internal/svc"
)

// Event is one recorded state-change notification.
type Event struct {
	Name       string
	StartTime  svc.FixedTime
	ReapTime   svc.FixedTime
	WaitStatus int
	Pid        int
}

// Sink is the concrete svc.NotifySink: logs every transition and retains
// the most recent entries for introspection.
type Sink struct {
	mu      sync.Mutex
	ring    []Event
	ringCap int
}

// New returns a Sink retaining up to ringCap recent events.
func New(ringCap int) *Sink {
	if ringCap <= 0 {
		ringCap = 256
	}
	return &Sink{ringCap: ringCap}
}

// NotifyState implements svc.NotifySink.
func (s *Sink) NotifyState(name string, startTime, reapTime svc.FixedTime, waitStatus int, pid int) {
	log.Info().
		Str("service", name).
		Int64("start_time", int64(startTime)).
		Int64("reap_time", int64(reapTime)).
		Int("wait_status", waitStatus).
		Int("pid", pid).
		Msg("service state change")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring = append(s.ring, Event{name, startTime, reapTime, waitStatus, pid})
	if len(s.ring) > s.ringCap {
		s.ring = s.ring[len(s.ring)-s.ringCap:]
	}
}

// Recent returns a copy of the retained event history, oldest first.
func (s *Sink) Recent() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.ring))
	copy(out, s.ring)
	return out
}
