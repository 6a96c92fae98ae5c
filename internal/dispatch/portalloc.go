package dispatch

// PortAllocator load-balances uops across the issue ports that support
// them. It tracks, per port, how many uops have been allocated to it but
// not yet issued, and always hands out the least-loaded candidate port —
// grounded on the allocate/deallocate/issued calling convention in
// original_source's DispatchIssueUnit.cc (the port allocator's own
// translation unit was not retrieved, so only that contract is ported,
// not an implementation).
type PortAllocator struct {
	pending []int
}

// NewPortAllocator creates an allocator for numPorts issue ports.
func NewPortAllocator(numPorts int) *PortAllocator {
	return &PortAllocator{pending: make([]int, numPorts)}
}

// Allocate picks the least-loaded port among candidates and marks it as
// having one more pending (allocated, not yet issued) uop.
func (a *PortAllocator) Allocate(candidates []int) int {
	best := candidates[0]
	for _, p := range candidates[1:] {
		if a.pending[p] < a.pending[best] {
			best = p
		}
	}
	a.pending[best]++
	return best
}

// Deallocate reverses a speculative Allocate that did not result in a
// dispatched uop (RS was full, or the uop was flushed before issuing).
func (a *PortAllocator) Deallocate(port int) {
	if a.pending[port] > 0 {
		a.pending[port]--
	}
}

// Issued reports that a uop previously allocated to port has now issued
// into its execution pipeline.
func (a *PortAllocator) Issued(port int) {
	if a.pending[port] > 0 {
		a.pending[port]--
	}
}
