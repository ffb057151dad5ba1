package launch

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// resetSignalsForExec restores default disposition for every resettable
// signal and clears the process signal mask, so the exec'd service starts
// with a clean slate (spec §4.3 step 1, grounded on sig_reset_for_exec).
func resetSignalsForExec() {
	var empty unix.Sigset_t
	_ = unix.RtSigprocmask(unix.SIG_SETMASK, &empty, nil, unsafe.Sizeof(empty))

	dfl := &unix.Sigaction{Handler: uintptr(unix.SIG_DFL)}
	for sig := 1; sig < 32; sig++ {
		if sig == int(unix.SIGKILL) || sig == int(unix.SIGSTOP) {
			continue
		}
		_ = unix.Sigaction(sig, dfl, nil)
	}
}

// buildEnvp converts the current process environment into a
// nil-terminated array suitable for execve's envp argument.
func buildEnvp() []*byte {
	env := os.Environ()
	out := make([]*byte, 0, len(env)+1)
	for _, kv := range env {
		b, err := unix.BytePtrFromString(kv)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	out = append(out, nil)
	return out
}

func bytePtr(p *byte) unsafe.Pointer     { return unsafe.Pointer(p) }
func bytePtrPtr(p **byte) unsafe.Pointer { return unsafe.Pointer(p) }
