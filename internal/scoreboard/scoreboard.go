// Package scoreboard tracks, for every physical register, whether its
// value is currently available (the "ready" bitmap), and the set of
// dispatched uops still waiting on each not-yet-ready register (the
// dependency matrix).
//
// Grounded on spec §3/§4.2's scoreboard and dependency-matrix data
// model, generalized the way SimEng's dispatch code does: one flat
// bitmap per register type rather than a single global array, since
// physical tags are only unique within their own type's file.
package scoreboard

import "github.com/jamestiotio/SimEng/internal/isa"

// Waiter is one entry in a dependency-matrix bucket: a uop blocked on a
// specific operand, plus the issue port it will dispatch to once
// supplied.
type Waiter struct {
	Uop         *isa.Uop
	OperandIdx  int
	Port        int
}

// Board is the scoreboard and dependency matrix for one core.
type Board struct {
	ready  [isa.NumRegTypes][]bool
	matrix [isa.NumRegTypes][][]Waiter
}

// NewBoard allocates a Board sized to hold counts[t] physical registers
// of type t, all initially ready (an unwritten register has no producer
// in flight).
func NewBoard(counts [isa.NumRegTypes]int) *Board {
	b := &Board{}
	for t, n := range counts {
		if n <= 0 {
			continue
		}
		ready := make([]bool, n)
		for i := range ready {
			ready[i] = true
		}
		b.ready[t] = ready
		b.matrix[t] = make([][]Waiter, n)
	}
	return b
}

// Ready reports whether r currently holds an available value.
func (b *Board) Ready(r isa.Register) bool {
	return b.ready[r.Type][r.Tag]
}

// ClaimDestination marks r not-ready: a dispatched uop now owns it and
// its value has not yet been forwarded.
func (b *Board) ClaimDestination(r isa.Register) {
	b.ready[r.Type][r.Tag] = false
}

// AddWaiter appends an entry to r's dependency-matrix bucket. Called at
// dispatch when a source operand is not yet ready.
func (b *Board) AddWaiter(r isa.Register, w Waiter) {
	b.matrix[r.Type][r.Tag] = append(b.matrix[r.Type][r.Tag], w)
}

// Forward marks r ready and returns (then clears) every uop waiting on
// it, for the dispatch engine to re-check and potentially issue.
func (b *Board) Forward(r isa.Register) []Waiter {
	b.ready[r.Type][r.Tag] = true

	waiters := b.matrix[r.Type][r.Tag]
	b.matrix[r.Type][r.Tag] = nil

	return waiters
}

// PurgeFlushed removes every dependency-matrix entry whose waiter has
// been marked Flushed, in one pass over the matrix. Called once per
// flush (core.flushIfNeeded/handleException, via dispatch.Unit's own
// PurgeFlushed) so a flush that discards many in-flight uops still
// costs one matrix scan rather than one per uop.
func (b *Board) PurgeFlushed() {
	for t := range b.matrix {
		for tag, bucket := range b.matrix[t] {
			if len(bucket) == 0 {
				continue
			}
			kept := bucket[:0]
			for _, w := range bucket {
				if !w.Uop.Flushed {
					kept = append(kept, w)
				}
			}
			b.matrix[t][tag] = kept
		}
	}
}
