package svc

import "sort"

// nameIndex is the name→Record index from spec §4.5: ordered
// lexicographically on name, O(log n) insert/prune/lookup via binary
// search over a sorted slice, O(1) exact hit via the side map.
//
// The C source (original_source/src/service.c) embeds a red-black tree
// node in each record; Go has no safe embedded-node equivalent without
// unsafe.Pointer, so per spec §9 ("use external ordered maps") this uses
// a sorted slice plus a map instead of reimplementing a red-black tree.
type nameIndex struct {
	byName map[string]*Record
	sorted []*Record // kept sorted by Name()
}

func newNameIndex() *nameIndex {
	return &nameIndex{byName: make(map[string]*Record)}
}

func (idx *nameIndex) lookup(name string) *Record {
	return idx.byName[name]
}

func (idx *nameIndex) insert(r *Record) {
	idx.byName[r.name] = r
	i := sort.Search(len(idx.sorted), func(i int) bool { return idx.sorted[i].name >= r.name })
	idx.sorted = append(idx.sorted, nil)
	copy(idx.sorted[i+1:], idx.sorted[i:])
	idx.sorted[i] = r
}

func (idx *nameIndex) remove(r *Record) {
	delete(idx.byName, r.name)
	i := sort.Search(len(idx.sorted), func(i int) bool { return idx.sorted[i].name >= r.name })
	if i < len(idx.sorted) && idx.sorted[i] == r {
		idx.sorted = append(idx.sorted[:i], idx.sorted[i+1:]...)
	}
}

// next returns the record lexicographically after r.
func (idx *nameIndex) next(r *Record) *Record {
	i := sort.Search(len(idx.sorted), func(i int) bool { return idx.sorted[i].name >= r.name })
	if i < len(idx.sorted) && idx.sorted[i] == r && i+1 < len(idx.sorted) {
		return idx.sorted[i+1]
	}
	return nil
}

// nextFrom returns the successor of fromName: the exact match's successor
// if fromName is present, else the first record whose name is greater
// (lower bound), matching svc_iter_next's RBTree_Find semantics.
func (idx *nameIndex) nextFrom(fromName string) *Record {
	if exact, ok := idx.byName[fromName]; ok {
		return idx.next(exact)
	}
	i := sort.Search(len(idx.sorted), func(i int) bool { return idx.sorted[i].name > fromName })
	if i < len(idx.sorted) {
		return idx.sorted[i]
	}
	return nil
}

// pidIndex is the pid→Record index from spec §4.5: numeric ordering,
// populated only while pid != 0. Same sorted-slice-plus-map shape as
// nameIndex; duplicated rather than made generic because the ordering key
// and type differ (int vs string) and the set is small per process.
type pidIndex struct {
	byPid  map[int]*Record
	sorted []*Record // kept sorted by Pid()
}

func newPidIndex() *pidIndex {
	return &pidIndex{byPid: make(map[int]*Record)}
}

func (idx *pidIndex) lookup(pid int) *Record {
	return idx.byPid[pid]
}

func (idx *pidIndex) insert(r *Record) {
	idx.byPid[r.pid] = r
	i := sort.Search(len(idx.sorted), func(i int) bool { return idx.sorted[i].pid >= r.pid })
	idx.sorted = append(idx.sorted, nil)
	copy(idx.sorted[i+1:], idx.sorted[i:])
	idx.sorted[i] = r
}

func (idx *pidIndex) remove(r *Record) {
	delete(idx.byPid, r.pid)
	i := sort.Search(len(idx.sorted), func(i int) bool { return idx.sorted[i].pid >= r.pid })
	if i < len(idx.sorted) && idx.sorted[i] == r {
		idx.sorted = append(idx.sorted[:i], idx.sorted[i+1:]...)
	}
}
