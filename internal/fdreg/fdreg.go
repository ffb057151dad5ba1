// Package fdreg implements the fd registry the launcher resolves "fds"
// variable names against (spec §6, §4.3): by_name/fdnum/set_fdnum.
package fdreg

import "github.com/opsvisor/gosv/internal/svc"

// handle is the concrete svc.Fd: a named slot holding a raw fd number.
type handle struct {
	name string
	fd   int
}

// Registry is the concrete svc.FdRegistry. "null" always resolves to a
// handle with fd -2 (devnull semantics handled by the launcher, which
// opens /dev/null lazily); other names are populated through Register,
// which the launcher calls for control.socket/control.cmd/control.event
// per service.
type Registry struct {
	byName map[string]*handle
}

// New returns a Registry pre-seeded with the "null" handle.
func New() *Registry {
	r := &Registry{byName: make(map[string]*handle)}
	r.byName["null"] = &handle{name: "null", fd: -2} // -2: "open /dev/null on demand"
	return r
}

// Register names fd under name, creating or replacing the entry. Used by
// the launcher (per-fork, per-service) for control.socket/control.cmd/
// control.event.
func (r *Registry) Register(name string, fd int) {
	r.byName[name] = &handle{name: name, fd: fd}
}

// ByName implements svc.FdRegistry.
func (r *Registry) ByName(name string) (svc.Fd, bool) {
	h, ok := r.byName[name]
	return h, ok
}

// FdNum implements svc.FdRegistry.
func (r *Registry) FdNum(fd svc.Fd) int {
	return fd.(*handle).fd
}

// SetFdNum implements svc.FdRegistry.
func (r *Registry) SetFdNum(fd svc.Fd, num int) {
	fd.(*handle).fd = num
}

// IsDevNull reports whether fd is the lazily-opened "null" placeholder.
func IsDevNull(fd svc.Fd) bool {
	h, ok := fd.(*handle)
	return ok && h.name == "null"
}
