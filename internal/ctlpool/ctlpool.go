// Package ctlpool implements the fixed-capacity controller-object pool
// (spec §6, §4.3): each controller owns one end of a control-socket pair
// connecting gosv to a running service that declared control.socket,
// control.cmd, or control.event in its "fds" variable.
package ctlpool

import (
	"sync"

	"github.com/opsvisor/gosv/internal/svc"
)

// Controller owns the supervisor-side fd of a control-socket pair.
type Controller struct {
	writeFd int
	readFd  int
	inUse   bool
}

// WriteFd is the fd gosv writes commands to ("control.cmd" direction).
func (c *Controller) WriteFd() int { return c.writeFd }

// ReadFd is the fd gosv reads events from ("control.event" direction).
func (c *Controller) ReadFd() int { return c.readFd }

// Pool is the concrete svc.ControllerPool: a fixed-size slab of
// Controllers, allocated by linear scan (pools here are small — tens, not
// thousands — so this trades a marginal constant for simplicity over a
// free-list).
type Pool struct {
	mu    sync.Mutex
	slots []Controller
}

// New returns a Pool with capacity controllers.
func New(capacity int) *Pool {
	return &Pool{slots: make([]Controller, capacity)}
}

// Alloc implements svc.ControllerPool: returns a free controller, or
// ok=false if the pool is exhausted (a non-fatal, expected condition —
// spec §4.3 step 1).
func (p *Pool) Alloc() (svc.Controller, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if !p.slots[i].inUse {
			p.slots[i].inUse = true
			return &p.slots[i], true
		}
	}
	return nil, false
}

// Init implements svc.ControllerPool: records which fds this controller
// owns. writeFd/readFd are -1 when that direction isn't used.
func (p *Pool) Init(c svc.Controller, writeFd, readFd int) bool {
	ctl := c.(*Controller)
	ctl.writeFd = writeFd
	ctl.readFd = readFd
	return true
}

// Dtor implements svc.ControllerPool: releases any resources the
// controller owns without returning it to the free pool (Free does that).
func (p *Pool) Dtor(c svc.Controller) {
	ctl := c.(*Controller)
	ctl.writeFd = -1
	ctl.readFd = -1
}

// Free implements svc.ControllerPool: returns the slot to the pool.
func (p *Pool) Free(c svc.Controller) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctl := c.(*Controller)
	ctl.inUse = false
}
