package scoreboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamestiotio/SimEng/internal/isa"
	"github.com/jamestiotio/SimEng/internal/scoreboard"
)

func counts(n int) [isa.NumRegTypes]int {
	var c [isa.NumRegTypes]int
	c[isa.RegGeneral] = n
	return c
}

func TestFreshRegistersAreReady(t *testing.T) {
	b := scoreboard.NewBoard(counts(4))
	r := isa.Register{Type: isa.RegGeneral, Tag: 2}
	assert.True(t, b.Ready(r))
}

func TestClaimDestinationMakesNotReady(t *testing.T) {
	b := scoreboard.NewBoard(counts(4))
	r := isa.Register{Type: isa.RegGeneral, Tag: 1}

	b.ClaimDestination(r)
	assert.False(t, b.Ready(r))
}

func TestForwardDrainsWaiters(t *testing.T) {
	b := scoreboard.NewBoard(counts(4))
	r := isa.Register{Type: isa.RegGeneral, Tag: 0}
	b.ClaimDestination(r)

	u1 := &isa.Uop{SeqID: 1}
	u2 := &isa.Uop{SeqID: 2}
	b.AddWaiter(r, scoreboard.Waiter{Uop: u1, OperandIdx: 0, Port: 2})
	b.AddWaiter(r, scoreboard.Waiter{Uop: u2, OperandIdx: 1, Port: 3})

	waiters := b.Forward(r)
	assert.True(t, b.Ready(r))
	assert.Len(t, waiters, 2)
	assert.Empty(t, b.Forward(r))
}

func TestPurgeFlushedRemovesOnlyFlushedWaiters(t *testing.T) {
	b := scoreboard.NewBoard(counts(4))
	r := isa.Register{Type: isa.RegGeneral, Tag: 0}
	b.ClaimDestination(r)

	stale := &isa.Uop{SeqID: 1, Flushed: true}
	keep := &isa.Uop{SeqID: 2}
	b.AddWaiter(r, scoreboard.Waiter{Uop: stale})
	b.AddWaiter(r, scoreboard.Waiter{Uop: keep})

	b.PurgeFlushed()

	waiters := b.Forward(r)
	assert.Len(t, waiters, 1)
	assert.Same(t, keep, waiters[0].Uop)
}

func TestPurgeFlushedAcrossMultipleBucketsAndRegTypes(t *testing.T) {
	b := scoreboard.NewBoard(counts(4))
	r0 := isa.Register{Type: isa.RegGeneral, Tag: 0}
	r1 := isa.Register{Type: isa.RegGeneral, Tag: 1}
	b.ClaimDestination(r0)
	b.ClaimDestination(r1)

	flushedA := &isa.Uop{SeqID: 1, Flushed: true}
	flushedB := &isa.Uop{SeqID: 2, Flushed: true}
	keep := &isa.Uop{SeqID: 3}
	b.AddWaiter(r0, scoreboard.Waiter{Uop: flushedA})
	b.AddWaiter(r1, scoreboard.Waiter{Uop: flushedB})
	b.AddWaiter(r1, scoreboard.Waiter{Uop: keep})

	b.PurgeFlushed()

	assert.Empty(t, b.Forward(r0))
	waiters := b.Forward(r1)
	assert.Len(t, waiters, 1)
	assert.Same(t, keep, waiters[0].Uop)
}
