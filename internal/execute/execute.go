// Package execute implements the per-port execution pipelines: latency
// tracking, pipelined vs. blocking-group occupancy, load address-compute
// handoff to the LSQ, store-data handoff, and branch evaluation against
// the attached predictor with flush-request on misprediction.
//
// Grounded on spec §4.3 directly (no OoO-specific C++ execute unit was
// retrieved — only the in-order original_source/src/ExecuteUnit.cc,
// whose load/store/branch dispatch-by-uop-kind shape this package
// reuses) for the per-uop semantics, and on
// sarchlab-akita/pipelining/pipeline.go's per-cycle stage-advance model
// for the pipeline occupancy bookkeeping — folded in directly rather
// than kept as a standalone dependency, since every item here already
// carries its own latency rather than sharing one fixed per-stage depth,
// which the teacher's uniform stage-array shape does not fit.
package execute

import "github.com/jamestiotio/SimEng/internal/isa"

// LatencyTable answers a uop group's execution latency and issue
// throughput (cycles between successive same-group issues on a
// pipelined port), per spec §6's Latencies config with group
// inheritance (LOAD_INT ⊂ LOAD ⊂ ALL).
type LatencyTable interface {
	Latency(g isa.Group) (exec int, throughput int)
}

// LSQ is the narrow surface execute needs from the load/store queue.
type LSQ interface {
	StartLoad(uop *isa.Uop)
	SupplyStoreData(uop *isa.Uop)
}

// Forwarder publishes a completed uop's results, satisfied by
// *dispatch.Unit.
type Forwarder interface {
	Forward(uop *isa.Uop)
}

// Predictor is updated with a branch's real outcome once evaluated,
// satisfied by fetch.Predictor.
type Predictor interface {
	Update(addr uint64, taken bool, target uint64)
}

// FlushRequest is raised when a branch's real outcome disagrees with its
// attached prediction.
type FlushRequest struct {
	InsnID  uint64
	Address uint64
}

type inflightItem struct {
	uop        *isa.Uop
	cyclesLeft int
}

// Port is one execution port's pipeline.
type Port struct {
	index      int
	pipelined  bool
	blocking   map[isa.Group]bool
	table      LatencyTable
	lsq        LSQ
	forwarder  Forwarder
	predictor  Predictor

	items        []inflightItem
	lastIssueAt  map[isa.Group]uint64
	busy         bool // true while a non-pipelined or blocking-group uop occupies the port

	pendingFlush *FlushRequest

	branchesExecuted uint64
	mispredicts      uint64
}

// Config describes one port's execution unit: whether it is pipelined,
// and which groups block the whole port even on an otherwise pipelined
// unit (spec §6's Execution-Units[*].Blocking-Group-Nums).
type Config struct {
	Pipelined      bool
	BlockingGroups []isa.Group
}

// NewPort builds an execution port.
func NewPort(index int, cfg Config, table LatencyTable, lsq LSQ, fwd Forwarder, pred Predictor) *Port {
	p := &Port{
		index:       index,
		pipelined:   cfg.Pipelined,
		blocking:    make(map[isa.Group]bool, len(cfg.BlockingGroups)),
		table:       table,
		lsq:         lsq,
		forwarder:   fwd,
		predictor:   pred,
		lastIssueAt: make(map[isa.Group]uint64),
	}
	for _, g := range cfg.BlockingGroups {
		p.blocking[g] = true
	}
	return p
}

// Index returns this port's issue-port index. The core's flush
// tie-break (lowest port index wins) comes from the order it scans its
// ports, not from this method.
func (p *Port) Index() int { return p.index }

// CanAccept reports whether a uop of the given group may enter this
// cycle.
func (p *Port) CanAccept(group isa.Group, tick uint64) bool {
	if p.busy {
		return false
	}
	if !p.pipelined || p.blocking[group] {
		return len(p.items) == 0
	}

	_, throughput := p.table.Latency(group)
	if throughput <= 0 {
		throughput = 1
	}
	last, ok := p.lastIssueAt[group]
	if !ok {
		return true
	}
	return tick-last >= uint64(throughput)
}

// Accept admits a uop into the port's pipeline.
func (p *Port) Accept(uop *isa.Uop, tick uint64) {
	exec, _ := p.table.Latency(uop.Group)
	if exec <= 0 {
		exec = 1
	}

	p.items = append(p.items, inflightItem{uop: uop, cyclesLeft: exec})
	p.lastIssueAt[uop.Group] = tick

	if !p.pipelined || p.blocking[uop.Group] {
		p.busy = true
	}
}

// Tick advances every in-flight item by one cycle and completes any
// that finish, returning whether any progress was made.
func (p *Port) Tick() bool {
	p.pendingFlush = nil

	if len(p.items) == 0 {
		return false
	}

	progressed := false
	kept := p.items[:0]
	for _, it := range p.items {
		if it.uop.Flushed {
			if !p.pipelined || p.blocking[it.uop.Group] {
				p.busy = false
			}
			progressed = true
			continue
		}

		it.cyclesLeft--
		progressed = true

		if it.cyclesLeft > 0 {
			kept = append(kept, it)
			continue
		}

		p.complete(it.uop)
		if !p.pipelined || p.blocking[it.uop.Group] {
			p.busy = false
		}
	}
	p.items = kept

	return progressed
}

func (p *Port) complete(uop *isa.Uop) {
	switch {
	case uop.IsLoad:
		if uop.Execute != nil {
			uop.Execute(uop)
		}
		if len(uop.MemTargets) == 0 {
			uop.Executed = true
			uop.CommitReady = true
			p.forwarder.Forward(uop)
			return
		}
		p.lsq.StartLoad(uop)
	case uop.IsStoreData:
		if uop.Execute != nil {
			uop.Execute(uop)
		}
		p.lsq.SupplyStoreData(uop)
		uop.Executed = true
	case uop.IsStore:
		if uop.Execute != nil {
			uop.Execute(uop)
		}
		uop.Executed = true
		uop.CommitReady = true
	case uop.IsBranch:
		if uop.Execute != nil {
			uop.Execute(uop)
		}
		uop.Executed = true
		uop.CommitReady = true
		p.branchesExecuted++
		if p.predictor != nil {
			p.predictor.Update(uop.Addr, uop.BranchTaken, uop.BranchTarget)
		}
		if uop.BranchTaken != uop.Prediction.Taken || uop.BranchTarget != uop.Prediction.Target {
			p.mispredicts++
			p.pendingFlush = &FlushRequest{InsnID: uop.InsnID, Address: uop.BranchTarget}
		}
		p.forwarder.Forward(uop)
	default:
		if uop.Execute != nil {
			uop.Execute(uop)
		}
		uop.Executed = true
		uop.CommitReady = true
		p.forwarder.Forward(uop)
	}
}

// BranchesExecuted returns the number of branch uops this port has
// completed (spec §6's branch.executed stat).
func (p *Port) BranchesExecuted() uint64 { return p.branchesExecuted }

// Mispredicts returns the number of branch uops this port has completed
// whose real outcome disagreed with their fetch-time prediction (spec
// §6's branch.mispredict stat).
func (p *Port) Mispredicts() uint64 { return p.mispredicts }

// PendingFlush returns the flush request raised by this port's Tick, if
// any, and clears it.
func (p *Port) PendingFlush() *FlushRequest {
	f := p.pendingFlush
	p.pendingFlush = nil
	return f
}

// PurgeFlushed drops any in-flight item belonging to a flushed uop,
// releasing busy-occupancy it was holding.
func (p *Port) PurgeFlushed() {
	kept := p.items[:0]
	for _, it := range p.items {
		if it.uop.Flushed {
			if !p.pipelined || p.blocking[it.uop.Group] {
				p.busy = false
			}
			continue
		}
		kept = append(kept, it)
	}
	p.items = kept
}
