package isa

// Handle is a generation-checked reference into a Pool: Pool.Get resolves
// it only while its slot has not been freed. The pipeline containers in
// this module (the ROB, the LSQ, the dependency matrix, reservation-station
// ready queues, execution pipeline lanes) hold raw *Uop pointers, not
// Handles, the way sarchlab-akita/pipelining.Pipeline keeps its
// PipelineItem directly.
type Handle struct {
	Index      int
	Generation uint64
}

// Pool is an indexed slab of uops. Freeing a slot bumps its generation,
// so any stale Handle still referencing it resolves to nil instead of a
// reused uop. A flush does not free slots: flushed uops are marked
// Flushed and each container scans itself to drop them.
type Pool struct {
	slots      []*Uop
	generation []uint64
	free       []int
}

// NewPool creates an empty uop pool.
func NewPool() *Pool {
	return &Pool{}
}

// Alloc returns a fresh uop in a free slot; the Handle that refers to it
// is available through Uop.Handle.
func (p *Pool) Alloc() *Uop {
	var idx int
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		idx = len(p.slots)
		p.slots = append(p.slots, nil)
		p.generation = append(p.generation, 0)
	}

	u := &Uop{handle: Handle{Index: idx, Generation: p.generation[idx]}}
	p.slots[idx] = u

	return u
}

// Free releases a uop's slot back to the pool, invalidating every
// outstanding Handle that referred to it.
func (p *Pool) Free(h Handle) {
	if h.Index < 0 || h.Index >= len(p.slots) {
		return
	}

	if p.generation[h.Index] != h.Generation {
		return // already freed and possibly reused
	}

	p.slots[h.Index] = nil
	p.generation[h.Index]++
	p.free = append(p.free, h.Index)
}

// Get resolves a Handle to its Uop, or nil if the slot has since been
// freed (and possibly reallocated to something else).
func (p *Pool) Get(h Handle) *Uop {
	if h.Index < 0 || h.Index >= len(p.slots) {
		return nil
	}

	if p.generation[h.Index] != h.Generation {
		return nil
	}

	return p.slots[h.Index]
}
