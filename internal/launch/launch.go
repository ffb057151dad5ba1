// Package launch implements the process launcher (spec §4.3): fork,
// optional control-socket pair creation, fd remapping in the child, exec.
//
// This is the one component that cannot be adapted from the teacher's
// os/exec-based Process.Start (kornnellio-gosv/process.go): the spec
// requires raw fork() followed by child-side dup2/close bookkeeping
// *before* exec, which os/exec does not expose (it always execs a fresh
// image; there is no hook to run code in the child between fork and
// exec). It is instead grounded directly on
// original_source/src/service.c's svc_do_fork/svc_do_exec
// (lines 641-814), expressed with golang.org/x/sys/unix the way
// IreliaTable-gvisor's pkg/sentry/platform/systrap/subprocess.go drives
// raw unix.* syscalls around process creation.
package launch

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/opsvisor/gosv/internal/fdreg"
	"github.com/opsvisor/gosv/internal/log"
	"github.com/opsvisor/gosv/internal/svc"
)

// ExitInvalidEnvironment is the distinct child-side abort status used
// when fd setup or exec itself fails (spec §4.3 step 6, §7
// "Child-side fatal"). The parent sees this as an ordinary reap and
// applies normal restart policy — child errors are never propagated
// out-of-band (spec §9).
const ExitInvalidEnvironment = 111

// Launcher implements svc.Launcher.
type Launcher struct {
	Fds  *fdreg.Registry
	Ctls svc.ControllerPool
}

// New returns a Launcher backed by the given fd registry and controller
// pool.
func New(fds *fdreg.Registry, ctls svc.ControllerPool) *Launcher {
	return &Launcher{Fds: fds, Ctls: ctls}
}

// ForkChild implements svc.Launcher (spec §4.3 step 1-3), grounded on
// svc_do_fork.
func (l *Launcher) ForkChild(rec *svc.Record) (int, bool) {
	wantCtlRead := rec.UsesControlSocket() || rec.UsesControlEvent()
	wantCtlWrite := rec.UsesControlSocket() || rec.UsesControlCmd()
	wantCtl := wantCtlRead || wantCtlWrite

	sockets := [2]int{-1, -1}
	var ctl svc.Controller
	var ctlAllocated bool

	cleanup := func() {
		if ctlAllocated {
			l.Ctls.Dtor(ctl)
			l.Ctls.Free(ctl)
		}
		if sockets[0] >= 0 {
			unix.Close(sockets[0])
		}
		if sockets[1] >= 0 {
			unix.Close(sockets[1])
		}
	}

	if wantCtl {
		var ok bool
		ctl, ok = l.Ctls.Alloc()
		if !ok {
			log.Error().Str("service", rec.Name()).Msg("can't allocate controller object")
			return 0, false
		}
		ctlAllocated = true

		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		if err != nil {
			log.Error().Err(err).Str("service", rec.Name()).Msg("can't create socketpair")
			cleanup()
			return 0, false
		}
		sockets[0], sockets[1] = fds[0], fds[1]

		writeFd, readFd := -1, -1
		if wantCtlWrite {
			writeFd = sockets[0]
		}
		if wantCtlRead {
			readFd = sockets[0]
		}
		if !l.Ctls.Init(ctl, writeFd, readFd) {
			log.Error().Str("service", rec.Name()).Msg("can't initialize controller")
			cleanup()
			return 0, false
		}

		// If only one of control.event/control.cmd is used (not
		// control.socket), half-shutdown the unused direction on both
		// ends so the simulated pipe can't buffer indefinitely
		// (spec §4.3 step 1, grounded on service.c:671-681).
		if !rec.UsesControlSocket() {
			if !wantCtlRead {
				unix.Shutdown(sockets[1], unix.SHUT_WR)
				unix.Shutdown(sockets[0], unix.SHUT_RD)
			}
			if !wantCtlWrite {
				unix.Shutdown(sockets[1], unix.SHUT_RD)
				unix.Shutdown(sockets[0], unix.SHUT_WR)
			}
		}
	}

	pid, _, errno := unix.RawSyscall(unix.SYS_FORK, 0, 0, 0)
	if errno != 0 {
		log.Error().Str("service", rec.Name()).Int("errno", int(errno)).Msg("fork failed")
		cleanup()
		return 0, false
	}

	if pid == 0 {
		// Child.
		if sockets[0] >= 0 {
			unix.Close(sockets[0])
		}
		if sockets[1] >= 0 {
			l.Fds.Register("control.socket", sockets[1])
			l.Fds.Register("control.cmd", sockets[1])
			l.Fds.Register("control.event", sockets[1])
		}
		execChild(l.Fds, rec)
		// execChild never returns.
		unix.Exit(ExitInvalidEnvironment)
	}

	// Parent.
	if sockets[1] >= 0 {
		unix.Close(sockets[1])
	}
	return int(pid), true
}

// execChild performs the remap-then-exec sequence of spec §4.3 steps
// 2-6, grounded on svc_do_exec (service.c:728-814). Never returns on
// success; exits with ExitInvalidEnvironment on any failure.
func execChild(fds *fdreg.Registry, rec *svc.Record) {
	// Step 1: reset signal mask and handlers to inherited defaults.
	resetSignalsForExec()

	// Step 2: parse the fds spec, resolving each name to a source fd.
	names := strings.Split(rec.Fds(), "\t")
	fdCount := len(names)
	fdList := make([]int, fdCount) // fdCount *slots*, not bytes — see
	// SPEC_FULL.md's resolution of the "alloca(fd_count)" Open Question.

	for i, name := range names {
		switch {
		case name == "":
			log.Warn().Msg("ignoring zero-length file descriptor name")
			fdList[i] = -1
		case name == "-":
			fdList[i] = -1
		default:
			h, ok := fds.ByName(name)
			if !ok {
				log.Error().Str("fd_name", name).Msg("file descriptor does not exist")
				unix.Exit(ExitInvalidEnvironment)
			}
			num := fds.FdNum(h)
			if fdreg.IsDevNull(h) {
				devnull, err := unix.Open("/dev/null", unix.O_RDWR, 0)
				if err != nil {
					log.Error().Err(err).Msg("can't open /dev/null")
					unix.Exit(ExitInvalidEnvironment)
				}
				num = devnull
			}
			fdList[i] = num
		}
	}

	// Steps 3-4: remap phase A (displacement) then phase B (placement),
	// spec §4.3, §9 Open Question (fdList holds fdCount *slots*, not bytes).
	if err := remapPhaseA(fdList, fdCount, unixFdOps); err != nil {
		log.Error().Err(err).Msg("failed to displace file descriptor")
		unix.Exit(ExitInvalidEnvironment)
	}
	if err := remapPhaseB(fdList, unixFdOps); err != nil {
		log.Error().Err(err).Msg("failed to place file descriptor")
		unix.Exit(ExitInvalidEnvironment)
	}

	// Step 5: close everything above fdCount up to the platform max.
	maxFd := 1024
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err == nil && rlim.Cur > 0 {
		maxFd = int(rlim.Cur)
	}
	for i := fdCount; i < maxFd; i++ {
		unix.Close(i)
	}

	// Step 6: parse argv, terminate tokens in place, exec.
	argSpec := rec.Argv()
	argv := strings.Split(argSpec, "\t")
	if len(argv) == 0 || argv[0] == "" {
		log.Error().Str("service", rec.Name()).Msg("empty argv")
		unix.Exit(ExitInvalidEnvironment)
	}

	argvBytes := make([]*byte, 0, len(argv)+1)
	for _, a := range argv {
		b, err := unix.BytePtrFromString(a)
		if err != nil {
			unix.Exit(ExitInvalidEnvironment)
		}
		argvBytes = append(argvBytes, b)
	}
	argvBytes = append(argvBytes, nil)

	path, err := unix.BytePtrFromString(argv[0])
	if err != nil {
		unix.Exit(ExitInvalidEnvironment)
	}

	envp := buildEnvp()
	_, _, errno := unix.RawSyscall(unix.SYS_EXECVE,
		uintptr(bytePtr(path)), uintptr(bytePtrPtr(&argvBytes[0])), uintptr(bytePtrPtr(&envp[0])))
	log.Error().Str("service", rec.Name()).Int("errno", int(errno)).
		Msg(fmt.Sprintf("exec(%s, ...) failed", argv[0]))
	unix.Exit(ExitInvalidEnvironment)
}

// fdOps is the set of fd-manipulation primitives remapPhaseA/B need.
// Indirected behind an interface (rather than calling unix.* directly) so
// the displacement algorithm itself — the subject of spec.md §8 scenario
// 4 — is unit-testable without ever touching a real file descriptor or
// exec'ing a child.
type fdOps struct {
	dup   func(oldfd int) (int, error)
	dup2  func(oldfd, newfd int) error
	close func(fd int) error
}

var unixFdOps = fdOps{
	dup:   unix.Dup,
	dup2:  unix.Dup2,
	close: unix.Close,
}

// remapPhaseA is spec §4.3 step 3: for every source fd that sits inside
// [0, fdCount), repeatedly dup it until it lands outside that range, so
// phase B can never clobber a source fd another slot still needs.
func remapPhaseA(fdList []int, fdCount int, ops fdOps) error {
	for i := range fdList {
		for fdList[i] >= 0 && fdList[i] < fdCount {
			newFd, err := ops.dup(fdList[i])
			if err != nil {
				return fmt.Errorf("dup %d: %w", fdList[i], err)
			}
			fdList[i] = newFd
		}
	}
	return nil
}

// remapPhaseB is spec §4.3 step 4: place each (possibly displaced) source
// fd at its destination slot via dup2, closing slots with no source.
func remapPhaseB(fdList []int, ops fdOps) error {
	for i, src := range fdList {
		if src >= 0 {
			if err := ops.dup2(src, i); err != nil {
				return fmt.Errorf("dup2 %d -> %d: %w", src, i, err)
			}
		} else {
			ops.close(i)
		}
	}
	return nil
}
