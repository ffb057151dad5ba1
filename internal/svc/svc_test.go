package svc

import "sync"

// fakeClock is a manually-advanced svc.WakeClock for deterministic tests:
// Now() never moves on its own, SetNext() only ever lowers Next(), matching
// the real internal/wake.Clock's contract without a wall-clock dependency.
type fakeClock struct {
	now  FixedTime
	next FixedTime
}

func newFakeClock(now FixedTime) *fakeClock {
	return &fakeClock{now: now, next: FixedTime(1<<62) - 1}
}

func (c *fakeClock) Now() FixedTime     { return c.now }
func (c *fakeClock) Next() FixedTime    { return c.next }
func (c *fakeClock) SetNext(t FixedTime) {
	if t < c.next {
		c.next = t
	}
}
func (c *fakeClock) advance(d FixedTime) { c.now += d }
func (c *fakeClock) reset()              { c.next = FixedTime(1<<62) - 1 }

// fakeSigSource is a manually-fed svc.SignalSource.
type fakeSigSource struct {
	mu     sync.Mutex
	events []SignalEvent
}

func (s *fakeSigSource) push(signum int, ts FixedTime, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, SignalEvent{Signum: signum, Ts: ts, Count: count})
}

func (s *fakeSigSource) NextEvent(after FixedTime) (SignalEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.Ts > after {
			return ev, true
		}
	}
	return SignalEvent{}, false
}

// fakeSignums resolves a small fixed table of signal names, mirroring
// internal/sigqueue.Numberer's contract without depending on the OS package.
type fakeSignums struct{}

var signalTable = map[string]int{
	"SIGHUP":  1,
	"SIGINT":  2,
	"SIGUSR1": 10,
	"SIGTERM": 15,
}

func (fakeSignums) NumByName(name string) int { return signalTable[name] }

// fakeNotify records every notification it receives, in order.
type fakeNotify struct {
	events []notifyCall
}

type notifyCall struct {
	name                string
	startTime, reapTime FixedTime
	waitStatus, pid     int
}

func (n *fakeNotify) NotifyState(name string, startTime, reapTime FixedTime, waitStatus int, pid int) {
	n.events = append(n.events, notifyCall{name, startTime, reapTime, waitStatus, pid})
}

// fakeLauncher hands out sequential pids, or fails when told to.
type fakeLauncher struct {
	nextPid  int
	failNext bool
	calls    int
}

func (l *fakeLauncher) ForkChild(rec *Record) (int, bool) {
	l.calls++
	if l.failNext {
		l.failNext = false
		return 0, false
	}
	l.nextPid++
	return l.nextPid, true
}

// newTestRegistry wires a Registry to fresh fakes and returns both the
// registry and the fakes, so tests can drive clock/signals/launcher
// directly.
func newTestRegistry(now FixedTime) (*Registry, *fakeClock, *fakeSigSource, *fakeNotify, *fakeLauncher) {
	clock := newFakeClock(now)
	sigs := &fakeSigSource{}
	notifySink := &fakeNotify{}
	launcher := &fakeLauncher{}
	reg := NewRegistry(Options{
		Clock:     clock,
		SigSource: sigs,
		SigNums:   fakeSignums{},
		Notify:    notifySink,
		Launcher:  launcher,
	})
	return reg, clock, sigs, notifySink, launcher
}
