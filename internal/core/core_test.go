package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/SimEng/internal/config"
	"github.com/jamestiotio/SimEng/internal/core"
	"github.com/jamestiotio/SimEng/internal/decode"
	"github.com/jamestiotio/SimEng/internal/fetch"
	"github.com/jamestiotio/SimEng/internal/isa"
)

// minimalDoc builds the smallest config.Document that can drive a core:
// one port, one reservation station, a one-cycle latency for every
// group, and a static (always-not-taken) predictor.
func minimalDoc() *config.Document {
	return &config.Document{
		Core:           config.Core{ISA: config.ISAAArch64, SimulationMode: config.ModeOutOfOrder},
		Fetch:          config.Fetch{FetchBlockSize: 4},
		PipelineWidths: config.PipelineWidths{Commit: 4, DispatchRate: 4, FrontEnd: 4, LSQCompletion: 4},
		QueueSizes:     config.QueueSizes{ROB: 16, Load: 4, Store: 4},
		RegisterSet:    config.RegisterSet{GeneralPurposeCount: 48, FloatingPointCount: 32, VectorCount: 32, PredicateCount: 16, ConditionalCount: 1},
		ReservationStations: []config.ReservationStation{
			{Size: 8, Ports: []int{0}},
		},
		Ports: []config.Port{
			{PortName: "p0", InstructionGroupSupp: []isa.Group{isa.GroupAll}},
		},
		ExecutionUnits: []config.ExecutionUnit{{Pipelined: true}},
		Latencies: []config.LatencyEntry{
			{InstructionGroup: []isa.Group{isa.GroupAll}, ExecutionLatency: 1, ExecutionThroughput: 1},
		},
		LSQMemoryInterface: config.LSQMemoryInterface{
			LoadBandwidth: 4, StoreBandwidth: 4, PermittedRequestsPerCycle: 4,
		},
		MemoryHierarchy: config.MemoryHierarchy{CacheLineWidth: 64, AccessLatency: 1},
		BranchPredictor: config.BranchPredictor{FallbackStaticPredictor: true},
	}
}

// mapDecoder resolves each fetched address by table lookup, falling back
// to a no-operand integer nop for any address it wasn't told about —
// enough to script a short deterministic program without a real ISA.
type mapDecoder struct {
	insns map[uint64]decode.Insn
}

func (d mapDecoder) Decode(op fetch.MacroOp) decode.Insn {
	if insn, ok := d.insns[op.Addr]; ok {
		return insn
	}
	return decode.Insn{Group: isa.GroupInt, Op: "nop"}
}

type haltingExceptionHandler struct{}

func (haltingExceptionHandler) Begin(uop *isa.Uop) {}
func (haltingExceptionHandler) Step() (core.ExceptionOutcome, bool) {
	return core.ExceptionOutcome{Fatal: true}, true
}

func runCycles(c *core.Core, n int) {
	for i := 0; i < n; i++ {
		c.Tick()
	}
}

func TestCommitsIndependentUopsInProgramOrder(t *testing.T) {
	var order []uint64

	record := func(addr uint64) func(u *isa.Uop) {
		return func(u *isa.Uop) { order = append(order, addr) }
	}

	doc := minimalDoc()
	decoder := mapDecoder{insns: map[uint64]decode.Insn{
		0: {Group: isa.GroupInt, ArchDests: []isa.Register{{Type: isa.RegGeneral, Tag: 1}}, Execute: record(0)},
		4: {Group: isa.GroupInt, ArchDests: []isa.Register{{Type: isa.RegGeneral, Tag: 2}}, Execute: record(4)},
		8: {Group: isa.GroupInt, ArchDests: []isa.Register{{Type: isa.RegGeneral, Tag: 3}}, Execute: record(8)},
	}}

	c := core.New(doc, decoder, haltingExceptionHandler{}, 0)
	runCycles(c, 30)

	stats := c.Stats()
	require.GreaterOrEqual(t, stats.Retired, uint64(3))
	assert.Equal(t, []uint64{0, 4, 8}, order[:3])
	assert.Equal(t, uint64(0), stats.Flushes)
}

func TestBranchMispredictFlushesAndRedirectsFetch(t *testing.T) {
	const target = 0x100
	reachedTarget := false

	doc := minimalDoc()
	decoder := mapDecoder{insns: map[uint64]decode.Insn{
		0: {
			IsBranch: true,
			Group:    isa.GroupBranch,
			Execute: func(u *isa.Uop) {
				u.BranchTaken = true
				u.BranchTarget = target
			},
		},
		target: {
			Group: isa.GroupInt,
			Execute: func(u *isa.Uop) {
				reachedTarget = true
			},
		},
	}}

	c := core.New(doc, decoder, haltingExceptionHandler{}, 0)
	runCycles(c, 40)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.BranchExecuted)
	assert.Equal(t, uint64(1), stats.BranchMispredict)
	assert.GreaterOrEqual(t, stats.Flushes, uint64(1))
	assert.True(t, reachedTarget, "fetch should have been redirected to the branch target after the flush")
}

func TestRequestSwitchDrainsThenGoesIdle(t *testing.T) {
	doc := minimalDoc()
	decoder := mapDecoder{insns: map[uint64]decode.Insn{}}

	c := core.New(doc, decoder, haltingExceptionHandler{}, 0)
	runCycles(c, 5)

	c.RequestSwitch()
	runCycles(c, 50)

	assert.Equal(t, core.StatusIdle, c.Status())
}
