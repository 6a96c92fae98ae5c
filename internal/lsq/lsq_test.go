package lsq_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/SimEng/internal/isa"
	"github.com/jamestiotio/SimEng/internal/lsq"
)

type fakeMMU struct {
	reads, writes []*isa.Uop
	rejectReads   int
}

func (m *fakeMMU) RequestRead(u *isa.Uop) bool {
	if m.rejectReads > 0 {
		m.rejectReads--
		return false
	}
	m.reads = append(m.reads, u)
	u.PendingResult = true
	return true
}

func (m *fakeMMU) RequestWrite(u *isa.Uop) bool {
	m.writes = append(m.writes, u)
	return true
}

type fakeSlot struct {
	stalled   bool
	delivered []*isa.Uop
}

func (s *fakeSlot) Stalled() bool           { return s.stalled }
func (s *fakeSlot) Deliver(u *isa.Uop)      { s.delivered = append(s.delivered, u) }

type fakeForwarder struct {
	forwarded []*isa.Uop
}

func (f *fakeForwarder) Forward(u *isa.Uop) { f.forwarded = append(f.forwarded, u) }

func newQueue() *lsq.Queue {
	return lsq.NewQueue(lsq.Config{Combined: true, Capacity: 16, LoadLatency: 1})
}

func TestStartLoadWithNoConflictSchedulesRequest(t *testing.T) {
	q := newQueue()
	load := &isa.Uop{SeqID: 10, IsLoad: true, MemTargets: []isa.MemTarget{{Addr: 0x100, Size: 8}}}
	q.AddLoad(load)

	q.StartLoad(load)

	mmu := &fakeMMU{}
	slots := []lsq.CompletionSlot{&fakeSlot{}}
	fwd := &fakeForwarder{}

	q.Tick(mmu, slots, fwd) // tick 1: schedule at tick 1
	require.Len(t, mmu.reads, 1)
}

func TestStoreLoadConflictDefersLoad(t *testing.T) {
	q := newQueue()

	store := &isa.Uop{SeqID: 5, IsStore: true, MemTargets: []isa.MemTarget{{Addr: 0x100, Size: 8}}}
	q.AddStore(store)

	load := &isa.Uop{SeqID: 6, IsLoad: true, MemTargets: []isa.MemTarget{{Addr: 0x104, Size: 4}}}
	q.AddLoad(load)

	q.StartLoad(load)

	mmu := &fakeMMU{}
	slots := []lsq.CompletionSlot{&fakeSlot{}}
	fwd := &fakeForwarder{}
	q.Tick(mmu, slots, fwd)

	assert.Empty(t, mmu.reads, "conflicting load must not be requested yet")
}

func TestCommitStoreDetectsViolation(t *testing.T) {
	q := newQueue()

	// Store's address is not yet known when the load speculatively
	// starts, so StartLoad sees no conflict and the load issues early.
	store := &isa.Uop{SeqID: 1, IsStore: true}
	q.AddStore(store)

	load := &isa.Uop{SeqID: 2, IsLoad: true, MemTargets: []isa.MemTarget{{Addr: 0x200, Size: 8}}}
	q.AddLoad(load)
	q.StartLoad(load)

	// The store's address resolves afterward and overlaps the load that
	// already issued — a genuine memory-order violation.
	store.MemTargets = []isa.MemTarget{{Addr: 0x200, Size: 8}}

	violated := q.CommitStore(store)
	assert.True(t, violated)
	assert.Same(t, load, q.ViolatingLoad())
	assert.Equal(t, uint64(1), q.LoadViolations())
}

func TestPurgeFlushedRemovesFlushedEntries(t *testing.T) {
	q := newQueue()

	kept := &isa.Uop{SeqID: 1, IsLoad: true}
	gone := &isa.Uop{SeqID: 2, IsLoad: true, Flushed: true}
	q.AddLoad(kept)
	q.AddLoad(gone)

	q.PurgeFlushed()

	q.CommitLoad(kept) // must not panic: gone has already been removed
}

func TestPurgeFlushedDropsPendingStoreRequestsToo(t *testing.T) {
	q := newQueue()

	kept := &isa.Uop{SeqID: 1, IsStore: true, MemTargets: []isa.MemTarget{{Addr: 0x100, Size: 8}}}
	gone := &isa.Uop{SeqID: 2, IsStore: true, MemTargets: []isa.MemTarget{{Addr: 0x200, Size: 8}}, Flushed: true}
	q.AddStore(kept)
	q.AddStore(gone)
	q.StartStore(kept)
	q.StartStore(gone)

	q.PurgeFlushed()

	mmu := &fakeMMU{}
	slots := []lsq.CompletionSlot{&fakeSlot{}}
	fwd := &fakeForwarder{}
	q.Tick(mmu, slots, fwd)

	require.Len(t, mmu.writes, 1, "flushed store must not reach the MMU")
	assert.Same(t, kept, mmu.writes[0])
}
