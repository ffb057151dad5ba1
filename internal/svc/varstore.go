package svc

import (
	"bytes"
	"fmt"
)

// VarStore is the packed name=value\0 variable buffer described in spec
// §3/§4.4. It is never backed by a map: the compactness is load-bearing
// for pool-allocated records, whose buffer is a fixed-capacity suffix of
// the record's slot (see pool.go).
//
// Grounded on original_source/src/service.c svc_get_var/svc_set_var.
type VarStore struct {
	buf      []byte
	capacity int // 0 means unbounded (heap mode)
}

// entry describes one name=value\0 run within buf.
type entry struct {
	nameStart, nameEnd   int // [nameStart, nameEnd) excludes '='
	valueStart, valueEnd int // [valueStart, valueEnd) excludes '\0'
}

// find locates the entry for name, if present.
func (v *VarStore) find(name string) (entry, bool) {
	pos := 0
	for pos < len(v.buf) {
		end := bytes.IndexByte(v.buf[pos:], 0)
		if end < 0 {
			break // malformed tail; treat as absent
		}
		end += pos
		eq := bytes.IndexByte(v.buf[pos:end], '=')
		if eq >= 0 {
			eq += pos
			if string(v.buf[pos:eq]) == name {
				return entry{nameStart: pos, nameEnd: eq, valueStart: eq + 1, valueEnd: end}, true
			}
		}
		pos = end + 1
	}
	return entry{}, false
}

// Get returns the value for name and whether it was present.
func (v *VarStore) Get(name string) (string, bool) {
	e, ok := v.find(name)
	if !ok {
		return "", false
	}
	return string(v.buf[e.valueStart:e.valueEnd]), true
}

// GetOr returns the value for name, or def if absent.
func (v *VarStore) GetOr(name, def string) string {
	if val, ok := v.Get(name); ok {
		return val
	}
	return def
}

// Set installs value for name, inserting a new entry or overwriting the
// existing one's value region, shifting the tail of the buffer as needed.
// An empty value deletes the entry entirely. Set never partially mutates:
// on failure (pool capacity exceeded) the store is left unchanged.
func (v *VarStore) Set(name, value string) bool {
	e, found := v.find(name)

	if value == "" {
		if !found {
			return true // nothing to do
		}
		// Delete whole "name=value\0" run.
		start, end := e.nameStart, e.valueEnd+1
		v.buf = append(v.buf[:start], v.buf[end:]...)
		return true
	}

	var sizediff int
	if found {
		sizediff = len(value) - (e.valueEnd - e.valueStart)
	} else {
		sizediff = len(name) + 1 + len(value) + 1
	}

	if sizediff > 0 {
		if v.capacity > 0 && len(v.buf)+sizediff > v.capacity {
			return false
		}
	}

	if found {
		// Shift tail (bytes after the old value, starting at '\0') by sizediff,
		// then overwrite the value region.
		tailStart := e.valueEnd
		newTailStart := e.valueStart + len(value)
		v.shiftTail(tailStart, sizediff)
		copy(v.buf[e.valueStart:newTailStart], value)
		_ = newTailStart
		return true
	}

	// Insert a brand new "name=value\0" at the end of the buffer.
	insertAt := len(v.buf)
	v.buf = append(v.buf, make([]byte, sizediff)...)
	copy(v.buf[insertAt:], name)
	v.buf[insertAt+len(name)] = '='
	copy(v.buf[insertAt+len(name)+1:], value)
	v.buf[insertAt+len(name)+1+len(value)] = 0
	return true
}

// shiftTail grows or shrinks the buffer at tailStart by diff bytes,
// preserving everything at or after tailStart as a block move — the Go
// analogue of the C source's memmove over the vars buffer.
func (v *VarStore) shiftTail(tailStart, diff int) {
	if diff == 0 {
		return
	}
	if diff > 0 {
		v.buf = append(v.buf, make([]byte, diff)...)
		copy(v.buf[tailStart+diff:], v.buf[tailStart:len(v.buf)-diff])
	} else {
		copy(v.buf[tailStart+diff:], v.buf[tailStart:])
		v.buf = v.buf[:len(v.buf)+diff]
	}
}

// Len returns the number of bytes currently used by the packed buffer.
func (v *VarStore) Len() int { return len(v.buf) }

// Raw exposes the packed buffer for invariant checks and pool-slot math;
// callers must not retain or mutate the returned slice.
func (v *VarStore) Raw() []byte { return v.buf }

// Validate checks the well-formedness invariant from spec §3: every entry
// ends in \0, keys appear at most once.
func (v *VarStore) Validate() error {
	seen := make(map[string]bool)
	pos := 0
	for pos < len(v.buf) {
		end := bytes.IndexByte(v.buf[pos:], 0)
		if end < 0 {
			return fmt.Errorf("vars: unterminated entry at offset %d", pos)
		}
		end += pos
		eq := bytes.IndexByte(v.buf[pos:end], '=')
		if eq < 0 {
			return fmt.Errorf("vars: entry at offset %d missing '='", pos)
		}
		eq += pos
		key := string(v.buf[pos:eq])
		if seen[key] {
			return fmt.Errorf("vars: duplicate key %q", key)
		}
		seen[key] = true
		pos = end + 1
	}
	return nil
}
