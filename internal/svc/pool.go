package svc

// recordAllocator constructs and releases Records, and determines the
// variable-buffer capacity mode (spec §3 "pool-allocated records", §9
// "Pool mode"). Heap mode gives a growable buffer; pool mode gives one
// bounded to the remaining space in a fixed slot.
type recordAllocator interface {
	alloc(name string) *Record
	release(r *Record)
}

// heapAllocator backs ordinary, unbounded-vars records: each Record and
// its VarStore are independently heap-allocated and reallocated as
// needed. This is the default and matches svc_new's non-pool branch in
// original_source/src/service.c.
type heapAllocator struct{}

func (heapAllocator) alloc(name string) *Record { return newRecord(name, 0) }
func (heapAllocator) release(*Record)           {}

// poolAllocator backs records carved out of a fixed-size slab, one fixed
// stride per record (spec §9 "Pool mode"). Allocation is by index;
// deletion returns the slot to the free list. The vars buffer for a
// pool-backed record is capped to slotVarsCapacity bytes and can never be
// reallocated past it — set_var must fail cleanly instead.
//
// Grounded on svc_preallocate/svc_new/svc_delete
// (original_source/src/service.c:93-165): that implementation embeds the
// Record struct and its vars buffer in one malloc'd slab at a fixed
// stride; Go's GC makes manual slab placement unnecessary, so this
// preserves only the externally-observable contract (fixed count, fixed
// per-record vars capacity, O(1) slot reuse) rather than the raw byte
// layout.
type poolAllocator struct {
	slotVarsCapacity int
	limit            int
	count            int
	freed            []*Record
}

// newPoolAllocator creates an allocator for up to limit records, each with
// varsCapacity bytes available to its VarStore.
func newPoolAllocator(limit, varsCapacity int) *poolAllocator {
	return &poolAllocator{slotVarsCapacity: varsCapacity, limit: limit}
}

func (p *poolAllocator) alloc(name string) *Record {
	if n := len(p.freed); n > 0 {
		r := p.freed[n-1]
		p.freed = p.freed[:n-1]
		*r = *newRecord(name, p.slotVarsCapacity)
		return r
	}
	if p.count >= p.limit {
		return nil
	}
	p.count++
	return newRecord(name, p.slotVarsCapacity)
}

func (p *poolAllocator) release(r *Record) {
	p.freed = append(p.freed, r)
}
