// Package rat implements the register alias table: the rename stage's
// per-type free-list, current-mapping vector, and rollback history.
//
// Grounded on SimEng's RenameUnit.hh (per-register-type free counts and
// stall counters feeding allocation/ROB/queue stalls) and on spec §4.1's
// rename/commit/rewind contract, since the original RegisterAliasTable
// translation unit was not present in the retrieved source tree.
package rat

import "github.com/jamestiotio/SimEng/internal/isa"

// StallReason names why rename could not complete a slot this cycle.
type StallReason int

// Recognized stall reasons.
const (
	StallNone StallReason = iota
	StallFreeRegsEmpty
)

// historyEntry records what a physical tag used to be mapped to, so a
// flush can restore it.
type historyEntry struct {
	seqID   uint64
	archTag int
	oldPhys int
}

// file is the per-register-type rename state.
type file struct {
	free    []int // free physical tags, LIFO
	mapping []int // archTag -> current physical tag
	history []historyEntry
	pending []int // pending-commit count per physical tag
}

func newFile(archCount, physCount int) *file {
	f := &file{
		mapping: make([]int, archCount),
		pending: make([]int, physCount),
	}
	// Tags [0, archCount) start pre-mapped identity-style (architectural
	// registers always have a live physical backing); the remainder seed
	// the free-list.
	for i := 0; i < archCount; i++ {
		f.mapping[i] = i
	}
	for i := physCount - 1; i >= archCount; i-- {
		f.free = append(f.free, i)
	}
	return f
}

// Table is the register alias table, one file per isa.RegType.
type Table struct {
	files [isa.NumRegTypes]*file

	allocationStalls [isa.NumRegTypes]uint64
}

// Config describes the architectural and physical register counts for
// each register type the Table should track.
type Config struct {
	ArchCounts [isa.NumRegTypes]int
	PhysCounts [isa.NumRegTypes]int
}

// NewTable builds a Table from per-type architectural/physical counts.
func NewTable(cfg Config) *Table {
	t := &Table{}
	for rt := 0; rt < isa.NumRegTypes; rt++ {
		if cfg.PhysCounts[rt] <= 0 {
			continue
		}
		t.files[rt] = newFile(cfg.ArchCounts[rt], cfg.PhysCounts[rt])
	}
	return t
}

// Rewrite returns the current physical register mapped to an
// architectural source operand, leaving the table unchanged.
func (t *Table) Rewrite(arch isa.Register) isa.Register {
	f := t.files[arch.Type]
	return isa.Register{Type: arch.Type, Tag: f.mapping[arch.Tag]}
}

// Allocate assigns a fresh physical tag to an architectural destination
// register, recording the previous mapping under seqID for rollback.
// Returns ok=false (and increments the per-type allocation stall
// counter) if the type's free-list is exhausted.
func (t *Table) Allocate(dest isa.Register, seqID uint64) (isa.Register, bool) {
	f := t.files[dest.Type]
	if len(f.free) == 0 {
		t.allocationStalls[dest.Type]++
		return isa.Register{}, false
	}

	n := len(f.free)
	newTag := f.free[n-1]
	f.free = f.free[:n-1]

	f.history = append(f.history, historyEntry{
		seqID:   seqID,
		archTag: dest.Tag,
		oldPhys: f.mapping[dest.Tag],
	})
	f.mapping[dest.Tag] = newTag

	return isa.Register{Type: dest.Type, Tag: newTag}, true
}

// Commit retires the rename history entry for dest's architectural tag
// belonging to seqID, returning the superseded physical tag to the
// free-list. Safe to call only once per allocation, at ROB commit.
func (t *Table) Commit(dest isa.Register, seqID uint64) {
	f := t.files[dest.Type]
	for i, h := range f.history {
		if h.seqID == seqID && h.archTag == dest.Tag {
			f.free = append(f.free, h.oldPhys)
			f.history = append(f.history[:i], f.history[i+1:]...)
			return
		}
	}
}

// Rewind undoes a not-yet-committed allocation for dest at seqID,
// restoring the prior mapping and freeing the tag that had been
// allocated. Called on flush, from youngest to oldest.
func (t *Table) Rewind(dest isa.Register, seqID uint64) {
	f := t.files[dest.Type]
	for i, h := range f.history {
		if h.seqID == seqID && h.archTag == dest.Tag {
			freedTag := f.mapping[dest.Tag]
			f.mapping[dest.Tag] = h.oldPhys
			f.free = append(f.free, freedTag)
			f.history = append(f.history[:i], f.history[i+1:]...)
			return
		}
	}
}

// FreeCount returns the number of unallocated physical tags remaining
// for the given register type.
func (t *Table) FreeCount(rt isa.RegType) int {
	f := t.files[rt]
	if f == nil {
		return 0
	}
	return len(f.free)
}

// AllocationStalls returns the number of cycles rename stalled due to an
// exhausted free-list for the given register type.
func (t *Table) AllocationStalls(rt isa.RegType) uint64 {
	return t.allocationStalls[rt]
}
