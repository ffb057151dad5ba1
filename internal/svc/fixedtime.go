package svc

import "time"

// FixedTime is a 64-bit signed fixed-point timestamp: the upper 32 bits
// hold whole seconds, the lower 32 bits hold the fractional second. A
// value of 0 means "undefined" — see BiasNonzero.
type FixedTime int64

const fixedFracBits = 32

// SecondsFixed is the fixed-point representation of one whole second,
// the minimum legal value for a RestartInterval.
const SecondsFixed FixedTime = 1 << fixedFracBits

// NewFixedTime converts a wall-clock time.Time into fixed-point form.
func NewFixedTime(t time.Time) FixedTime {
	sec := t.Unix()
	nsec := t.Nanosecond()
	frac := (int64(nsec) << fixedFracBits) / int64(time.Second)
	return FixedTime(sec<<fixedFracBits | frac)
}

// Seconds returns the whole-seconds component.
func (f FixedTime) Seconds() int64 {
	return int64(f) >> fixedFracBits
}

// BiasNonzero returns f, except that a true-zero timestamp (which would be
// indistinguishable from "undefined") is nudged to 1. Any other value,
// including negative ones, passes through unchanged.
func BiasNonzero(f FixedTime) FixedTime {
	if f == 0 {
		return 1
	}
	return f
}

// FixedSeconds converts a duration expressed in fractional seconds into
// fixed-point form (used for e.g. restart_interval, which has no wall-clock
// epoch component).
func FixedSeconds(sec float64) FixedTime {
	return FixedTime(sec * float64(SecondsFixed))
}

// Undefined reports whether f is the reserved "no timestamp" sentinel.
func (f FixedTime) Undefined() bool {
	return f == 0
}
