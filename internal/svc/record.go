// Package svc implements the service supervision core: the service
// record and its indices, the active/sigwake scheduling lists, the
// packed variable store, and the DOWN→START→UP→REAPED state machine.
//
// Grounded on original_source/src/service.c (daemonproxy's service.c),
// restructured into idiomatic Go per the design notes in SPEC_FULL.md.
package svc

import "fmt"

// State is one of the four legal service states. The zero value, Undef,
// is never valid at runtime — reaching it is a programmer error (spec §4.1).
type State int

const (
	Undef State = iota
	Down
	Start
	Up
	Reaped
)

func (s State) String() string {
	switch s {
	case Down:
		return "down"
	case Start:
		return "start"
	case Up:
		return "up"
	case Reaped:
		return "reaped"
	default:
		return "undef"
	}
}

// NameMax is the maximum length, in bytes, of a service name.
const NameMax = 127

// link is one end of an intrusive doubly-linked list membership: prevPtr
// points at whatever slot holds the pointer to this record (the list head
// variable, or another record's "next" field). A nil prevPtr means "not a
// member". This is the Go rendition of the C source's
// **service_s active_prev_ptr idiom (spec §9).
type link struct {
	prevPtr **Record
	next    *Record
}

// Record is a single supervised service. Exported accessors are the only
// sanctioned way for callers outside this package to read or mutate it;
// fields are unexported to keep the invariants in spec §3 enforceable.
type Record struct {
	name string

	state      State
	pid        int
	startTime  FixedTime
	reapTime   FixedTime
	waitStatus int

	restartInterval FixedTime
	autoRestart     bool
	autostartSigs   map[int]bool
	sigwakeFlag     bool

	usesControlEvent  bool
	usesControlCmd    bool
	usesControlSocket bool

	vars VarStore

	activeLink  link
	sigwakeLink link

	// nameIdx/pidIdx are not maintained: the name/pid indices (index.go)
	// find this record's slot by binary search on its name or pid.
	nameIdx int
	pidIdx  int
}

// CheckName reports whether name is a legal service name: 1..NameMax bytes
// of [A-Za-z0-9._-]. Grounded on svc_check_name.
func CheckName(name string) bool {
	if len(name) == 0 || len(name) > NameMax {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

func newRecord(name string, capacity int) *Record {
	r := &Record{
		name:          name,
		state:         Down,
		waitStatus:    -1,
		autostartSigs: make(map[int]bool),
	}
	r.vars = VarStore{capacity: capacity}
	return r
}

func (r *Record) Name() string          { return r.name }
func (r *Record) State() State          { return r.state }
func (r *Record) Pid() int              { return r.pid }
func (r *Record) WaitStatus() int       { return r.waitStatus }
func (r *Record) StartTime() FixedTime  { return r.startTime }
func (r *Record) ReapTime() FixedTime   { return r.reapTime }
func (r *Record) AutoRestart() bool     { return r.autoRestart }
func (r *Record) Sigwake() bool         { return r.sigwakeFlag }
func (r *Record) UsesControlEvent() bool  { return r.usesControlEvent }
func (r *Record) UsesControlCmd() bool    { return r.usesControlCmd }
func (r *Record) UsesControlSocket() bool { return r.usesControlSocket }

func (r *Record) RestartInterval() FixedTime { return r.restartInterval }

// Fds returns the raw "fds" variable view used by the launcher, without
// requiring a Registry (fd resolution happens entirely inside
// internal/launch, which only needs the record, not the collaborators).
func (r *Record) Fds() string { return r.vars.GetOr("fds", defaultFds) }

// Argv returns the raw "args" variable view used by the launcher.
func (r *Record) Argv() string { return r.vars.GetOr("args", "") }

// SetRestartInterval validates and applies a new restart interval. The
// whole-seconds component must be >= 1 (spec §3, §6).
func (r *Record) SetRestartInterval(interval FixedTime) bool {
	if interval.Seconds() < 1 {
		return false
	}
	r.restartInterval = interval
	return true
}

func (r *Record) check() error {
	if len(r.name) == 0 || len(r.name) > NameMax {
		return fmt.Errorf("service %q: invalid name length", r.name)
	}
	if err := r.vars.Validate(); err != nil {
		return fmt.Errorf("service %q: %w", r.name, err)
	}
	return nil
}
