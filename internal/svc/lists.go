package svc

// listSet holds the head pointer for one intrusive doubly-linked list of
// records (either the active list or the sigwake list, spec §2/§4.6).
type listSet struct {
	head *Record
}

// linkAccessor bundles the per-record link struct used for one list and
// the record's "membership flag" setter, so insert/remove can be written once
// and reused for both the active list and the sigwake list — mirroring
// svc_set_active/svc_set_sigwake in original_source/src/service.c, which
// are identical in shape but operate on different fields.
type linkAccessor struct {
	get func(*Record) *link
	set func(*Record, bool) // updates the record's own membership flag
}

var activeAccessor = linkAccessor{
	get: func(r *Record) *link { return &r.activeLink },
	set: func(*Record, bool) {}, // active has no separate bool flag; membership == link != nil
}

var sigwakeAccessor = linkAccessor{
	get: func(r *Record) *link { return &r.sigwakeLink },
	set: func(r *Record, on bool) { r.sigwakeFlag = on },
}

// setMember toggles rec's membership in the list rooted at ls. Idempotent:
// setting true on a member, or false on a non-member, is a no-op (spec §4.6).
func (ls *listSet) setMember(rec *Record, want bool, acc linkAccessor) {
	l := acc.get(rec)
	if want && l.prevPtr == nil {
		l.next = ls.head
		if ls.head != nil {
			acc.get(ls.head).prevPtr = &l.next
		}
		ls.head = rec
		l.prevPtr = &ls.head
		acc.set(rec, true)
	} else if !want && l.prevPtr != nil {
		if l.next != nil {
			acc.get(l.next).prevPtr = l.prevPtr
		}
		*l.prevPtr = l.next
		l.prevPtr = nil
		l.next = nil
		acc.set(rec, false)
	}
}

// isMember reports current membership via the back-pointer, independent of
// any separate bool flag.
func (ls *listSet) isMember(rec *Record, acc linkAccessor) bool {
	return acc.get(rec).prevPtr != nil
}

// forEachSafe walks the list head-to-tail, capturing each node's "next"
// before invoking fn, so fn may freely add/remove list members (including
// rec itself) during the walk without corrupting the traversal — the
// "capture-before-mutate" discipline required by spec §4.2/§4.6, grounded
// on svc_run_active's while-loop in original_source/src/service.c:558-583.
func (ls *listSet) forEachSafe(acc linkAccessor, fn func(*Record)) {
	rec := ls.head
	for rec != nil {
		next := acc.get(rec).next
		fn(rec)
		rec = next
	}
}
