package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/SimEng/internal/dispatch"
	"github.com/jamestiotio/SimEng/internal/isa"
	"github.com/jamestiotio/SimEng/internal/regfile"
	"github.com/jamestiotio/SimEng/internal/scoreboard"
)

func regCounts(n int) [isa.NumRegTypes]int {
	var c [isa.NumRegTypes]int
	c[isa.RegGeneral] = n
	return c
}

type zeroBypass struct{}

func (zeroBypass) Bypass(producer, consumer isa.Group) int { return 0 }

func newFixture(t *testing.T) (*dispatch.Unit, *regfile.Set, *scoreboard.Board) {
	t.Helper()
	regs := regfile.NewSet(regCounts(8), 8)
	sb := scoreboard.NewBoard(regCounts(8))
	stations := []dispatch.StationSpec{{Capacity: 4, Ports: []int{0, 1}}}
	u := dispatch.NewUnit(2, stations, regs, sb, zeroBypass{}, 2)
	return u, regs, sb
}

func reg(tag int) isa.Register { return isa.Register{Type: isa.RegGeneral, Tag: tag} }

func TestDispatchSuppliesReadyOperandsImmediately(t *testing.T) {
	u, regs, _ := newFixture(t)
	regs.Set(reg(1), isa.RegisterValue{Bytes: []byte{1}, Valid: true})

	uop := &isa.Uop{
		SupportedPorts: []int{0, 1},
		PhysSrcs:       []isa.OperandSlot{{Reg: reg(1)}},
		PhysDests:      []isa.Register{reg(2)},
	}

	ok := u.Dispatch(uop)
	require.True(t, ok)
	assert.True(t, uop.PhysSrcs[0].Ready)
	assert.True(t, uop.Dispatched)
}

func TestDispatchDefersOnUnreadySource(t *testing.T) {
	u, _, sb := newFixture(t)
	sb.ClaimDestination(reg(3)) // some in-flight producer owns it

	uop := &isa.Uop{
		SupportedPorts: []int{0, 1},
		PhysSrcs:       []isa.OperandSlot{{Reg: reg(3)}},
		PhysDests:      []isa.Register{reg(4)},
	}

	ok := u.Dispatch(uop)
	require.True(t, ok)
	assert.False(t, uop.PhysSrcs[0].Ready)

	issuedPorts := []int{}
	u.Issue(func(int, *isa.Uop) bool { return true }, func(port int, got *isa.Uop) {
		issuedPorts = append(issuedPorts, port)
	})
	assert.Empty(t, issuedPorts, "uop with an unready source must not issue")
}

func TestForwardSuppliesWaitersAndReady(t *testing.T) {
	u, regs, sb := newFixture(t)
	sb.ClaimDestination(reg(5))

	consumer := &isa.Uop{
		SupportedPorts: []int{0, 1},
		PhysSrcs:       []isa.OperandSlot{{Reg: reg(5)}},
	}
	require.True(t, u.Dispatch(consumer))
	assert.False(t, consumer.PhysSrcs[0].Ready)

	regs.Set(reg(5), isa.RegisterValue{Bytes: []byte{9}, Valid: true})
	producer := &isa.Uop{PhysDests: []isa.Register{reg(5)}}
	u.Forward(producer)

	assert.True(t, consumer.PhysSrcs[0].Ready)
	assert.Equal(t, byte(9), consumer.PhysSrcs[0].Value.Bytes[0])

	var issued *isa.Uop
	u.Issue(func(int, *isa.Uop) bool { return true }, func(_ int, got *isa.Uop) { issued = got })
	assert.Same(t, consumer, issued)
}

func TestDispatchStallsWhenStationFull(t *testing.T) {
	u, _, _ := newFixture(t)

	// One dispatch per cycle keeps the per-station dispatch budget from
	// being the limit, so the stall below comes from the full station.
	for i := 0; i < 4; i++ {
		u.BeginCycle(uint64(i))
		uop := &isa.Uop{SupportedPorts: []int{0, 1}}
		require.True(t, u.Dispatch(uop))
	}

	u.BeginCycle(4)
	overflow := &isa.Uop{SupportedPorts: []int{0, 1}}
	ok := u.Dispatch(overflow)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), u.RSStalls())
}

func TestDispatchRaisesNoAvailablePortExceptionOnEmptySupportedPorts(t *testing.T) {
	u, _, _ := newFixture(t)

	uop := &isa.Uop{SupportedPorts: nil}
	ok := u.Dispatch(uop)

	require.True(t, ok, "an unsupported uop must bypass dispatch, not stall it")
	assert.True(t, uop.ExceptionRaised)
	assert.Equal(t, isa.ExceptionNoAvailablePort, uop.Exception.Kind)
	assert.True(t, uop.CommitReady)
	assert.False(t, uop.Dispatched)
}

func TestIssueDropsAFlushedReadyQueueHeadWithoutIssuing(t *testing.T) {
	u, _, _ := newFixture(t)

	gone := &isa.Uop{SupportedPorts: []int{0, 1}}
	keep := &isa.Uop{SupportedPorts: []int{0, 1}}
	require.True(t, u.Dispatch(gone))
	require.True(t, u.Dispatch(keep))
	gone.Flushed = true

	var issued []*isa.Uop
	u.Issue(func(int, *isa.Uop) bool { return true }, func(_ int, got *isa.Uop) {
		issued = append(issued, got)
	})

	require.Len(t, issued, 1)
	assert.Same(t, keep, issued[0])
}

func TestForwardDoesNotRequeueAFlushedConsumer(t *testing.T) {
	u, regs, sb := newFixture(t)
	sb.ClaimDestination(reg(6))

	consumer := &isa.Uop{
		SupportedPorts: []int{0, 1},
		PhysSrcs:       []isa.OperandSlot{{Reg: reg(6)}},
	}
	require.True(t, u.Dispatch(consumer))
	consumer.Flushed = true

	regs.Set(reg(6), isa.RegisterValue{Bytes: []byte{9}, Valid: true})
	producer := &isa.Uop{PhysDests: []isa.Register{reg(6)}}
	u.Forward(producer)

	var issued []*isa.Uop
	u.Issue(func(int, *isa.Uop) bool { return true }, func(_ int, got *isa.Uop) {
		issued = append(issued, got)
	})
	assert.Empty(t, issued, "a flushed consumer must never be issued after forwarding")
}

func TestPurgeFlushedClearsTheScoreboardMatrix(t *testing.T) {
	u, _, sb := newFixture(t)
	sb.ClaimDestination(reg(7))

	consumer := &isa.Uop{
		SupportedPorts: []int{0, 1},
		PhysSrcs:       []isa.OperandSlot{{Reg: reg(7)}},
		Flushed:        true,
	}
	require.True(t, u.Dispatch(consumer))

	u.PurgeFlushed()

	waiters := sb.Forward(reg(7))
	assert.Empty(t, waiters, "a flushed uop's waiter entry must not survive PurgeFlushed")
}

func TestPurgeFlushedRemovesOnlyFlushedEntries(t *testing.T) {
	u, _, _ := newFixture(t)

	keep := &isa.Uop{SupportedPorts: []int{0, 1}}
	gone := &isa.Uop{SupportedPorts: []int{0, 1}, Flushed: true}
	require.True(t, u.Dispatch(keep))
	require.True(t, u.Dispatch(gone))

	u.PurgeFlushed()

	seen := []*isa.Uop{}
	u.Issue(func(int, *isa.Uop) bool { return true }, func(_ int, got *isa.Uop) { seen = append(seen, got) })
	require.Len(t, seen, 1)
	assert.Same(t, keep, seen[0])
}
