package core

import (
	"github.com/jamestiotio/SimEng/internal/config"
	"github.com/jamestiotio/SimEng/internal/dispatch"
	"github.com/jamestiotio/SimEng/internal/isa"
	"github.com/jamestiotio/SimEng/internal/regfile"
)

// lsqAdapter implements rob.LSQ by coupling lsq.Queue's StartStore and
// CommitStore calls at the moment a store retires. The true
// out-of-order C++ translation unit that calls startStore at commit time
// was never retrieved (only the in-order model's retireInstruction,
// which calls startStore then commitStore back to back, and
// LoadStoreQueue.cc's shared contract for both); this pairs the two the
// same way. Resetting CommitReady inside StartStore has no observable
// effect here because rob.Buffer.Commit has already decided to retire
// the uop and popped it from the ROB by the time this returns.
type lsqAdapter struct {
	q queueCommitter
}

// queueCommitter is the narrow surface lsqAdapter needs from *lsq.Queue.
type queueCommitter interface {
	StartStore(uop *isa.Uop)
	CommitStore(uop *isa.Uop) bool
	CommitLoad(uop *isa.Uop)
	ViolatingLoad() *isa.Uop
}

func newLSQAdapter(q queueCommitter) *lsqAdapter {
	return &lsqAdapter{q: q}
}

func (a *lsqAdapter) CommitStore(uop *isa.Uop) bool {
	a.q.StartStore(uop)
	return a.q.CommitStore(uop)
}

func (a *lsqAdapter) CommitLoad(uop *isa.Uop)     { a.q.CommitLoad(uop) }
func (a *lsqAdapter) ViolatingLoad() *isa.Uop     { return a.q.ViolatingLoad() }

// writeback implements both execute.Forwarder and lsq.Forwarder: it
// copies a completed uop's destination values into the physical register
// file — so a dependent read of the register file sees the fresh value
// — before handing the uop to dispatch's scoreboard/dependency-matrix
// forwarding path, mirroring DispatchIssueUnit.cc's pairing of
// getResults() with getDestinationRegisters().
type writeback struct {
	regs     *regfile.Set
	dispatch *dispatch.Unit
}

func (w *writeback) Forward(uop *isa.Uop) {
	for i, dest := range uop.PhysDests {
		if dest.Invalid() || i >= len(uop.DestValues) {
			continue
		}
		w.regs.Set(dest, uop.DestValues[i])
	}
	w.dispatch.Forward(uop)
}

// completionSlot is one of the LSQ's writeback ports (spec §6's
// Pipeline-Widths.LSQ-Completion), stateless since delivery forwards
// immediately rather than buffering into a further writeback stage.
type completionSlot struct{}

func (completionSlot) Stalled() bool          { return false }
func (completionSlot) Deliver(uop *isa.Uop)   { uop.CommitReady = true }

// fetchRequester bridges fetch.Unit's synchronous
// poll-until-bytes-arrive Requester contract onto the MMU's asynchronous
// accept-now/complete-later uop model (mem.MMU has no instruction-fetch
// surface of its own — only RequestRead/RequestWrite against a uop
// carrying memory targets). It tracks one synthetic marker uop per
// address currently in flight and hands back a zero-filled block once
// the MMU reports it ready; the byte content never matters since the
// decoder this module wires in reads only MacroOp.Addr/Prediction, never
// instruction bytes (spec §1 — byte-level decode is out of scope).
type fetchRequester struct {
	mmu     memRequester
	pending map[uint64]*isa.Uop
}

// memRequester is the narrow MMU surface fetchRequester needs.
type memRequester interface {
	RequestRead(uop *isa.Uop) bool
}

func newFetchRequester(mmu memRequester) *fetchRequester {
	return &fetchRequester{mmu: mmu, pending: make(map[uint64]*isa.Uop)}
}

func (f *fetchRequester) RequestFetch(addr uint64, size uint64) []byte {
	if u, ok := f.pending[addr]; ok {
		if u.PendingResult {
			delete(f.pending, addr)
			return make([]byte, size)
		}
		return nil
	}

	marker := &isa.Uop{MemTargets: []isa.MemTarget{{Addr: addr, Size: size}}}
	if f.mmu.RequestRead(marker) {
		f.pending[addr] = marker
	}
	return nil
}

// supportedPorts resolves which issue ports a decoded uop may dispatch
// to, per spec §6's Ports[*].Instruction-Group-Support /
// Instruction-Opcode-Support lists. A group matches if it or any of its
// group-inheritance ancestors (config.GroupChain) is named by the port;
// an opcode matches only exactly.
func supportedPorts(doc *config.Document, group isa.Group, op string) []int {
	chain := config.GroupChain(group)

	var ports []int
	for i, p := range doc.Ports {
		if portSupports(p, chain, op) {
			ports = append(ports, i)
		}
	}
	return ports
}

func portSupports(p config.Port, chain []isa.Group, op string) bool {
	for _, want := range chain {
		for _, g := range p.InstructionGroupSupp {
			if g == want {
				return true
			}
		}
	}
	for _, o := range p.InstructionOpcodeSupp {
		if o == op {
			return true
		}
	}
	return false
}
