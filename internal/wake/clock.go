// Package wake implements the wake-clock source the service core reads
// from and lowers (spec §6): "now" tracks the real clock, "next" is the
// earliest deadline the main loop should sleep until.
package wake

import (
	"time"

	"github.com/opsvisor/gosv/internal/svc"
)

// Clock is the concrete svc.WakeClock implementation backing the daemon's
// main loop.
type Clock struct {
	next svc.FixedTime
}

// New returns a Clock with Next initialized far in the future, so an idle
// loop blocks rather than spinning.
func New() *Clock {
	return &Clock{next: svc.FixedTime(1<<62) - 1}
}

// Now returns the current wall-clock time in fixed-point form.
func (c *Clock) Now() svc.FixedTime {
	return svc.NewFixedTime(time.Now())
}

// Next returns the current wake deadline.
func (c *Clock) Next() svc.FixedTime {
	return c.next
}

// SetNext lowers the wake deadline to when, if when is earlier than the
// current deadline. The core only ever calls this to pull the deadline
// closer, never to push it out.
func (c *Clock) SetNext(when svc.FixedTime) {
	if when < c.next {
		c.next = when
	}
}

// Reset clears the deadline back to "far future", for use once the main
// loop has woken and is about to recompute it via RunActive.
func (c *Clock) Reset() {
	c.next = svc.FixedTime(1<<62) - 1
}

// SleepDuration returns how long the caller should block until Next,
// relative to the current time, floored at zero.
func (c *Clock) SleepDuration() time.Duration {
	now := c.Now()
	if c.next <= now {
		return 0
	}
	delta := c.next - now
	return time.Duration(delta.Seconds())*time.Second + time.Duration(int64(delta)&0xFFFFFFFF)*time.Second/(1<<32)
}
