package svc

// WakeClock is the external wake-clock source (spec §6). The core reads
// Now and lowers Next; it never advances Next forward.
type WakeClock interface {
	Now() FixedTime
	Next() FixedTime
	SetNext(FixedTime)
}

// SignalEvent is one coalesced batch of a given signal number observed by
// the signal-event source between two polls.
type SignalEvent struct {
	Signum int
	Ts     FixedTime
	Count  int
}

// SignalSource is the external signal-event queue (spec §6). NextEvent
// returns the next event strictly after the given timestamp, or ok=false
// when there is nothing newer.
type SignalSource interface {
	NextEvent(after FixedTime) (ev SignalEvent, ok bool)
}

// Fd is an opaque handle into the external fd registry.
type Fd interface{}

// FdRegistry is the external fd registry (spec §6).
type FdRegistry interface {
	ByName(name string) (Fd, bool)
	FdNum(fd Fd) int
	SetFdNum(fd Fd, num int)
}

// Controller is an opaque handle owning one end of a control-socket pair.
type Controller interface{}

// ControllerPool is the fixed-capacity controller-object pool (spec §6).
type ControllerPool interface {
	Alloc() (Controller, bool)
	Init(c Controller, writeFd, readFd int) bool
	Dtor(c Controller)
	Free(c Controller)
}

// SignalNumberer resolves a signal name (e.g. "SIGHUP", case-insensitive,
// "SIG" prefix optional) to its platform number, or 0 if unrecognized.
type SignalNumberer interface {
	NumByName(name string) int
}

// NotifySink is the notification sink (spec §6): one state-change
// notification per svc_notify_state call.
type NotifySink interface {
	NotifyState(name string, startTime, reapTime FixedTime, waitStatus int, pid int)
}
