// Package decode splits macro-ops into micro-ops. Real ISA decode
// (instruction encoding, architecture-specific semantics) is an
// external collaborator (spec §1 non-goal); this package only supplies
// the contract plus a minimal in-tree splitter sufficient to drive the
// out-of-order core end to end.
package decode

import (
	"github.com/jamestiotio/SimEng/internal/fetch"
	"github.com/jamestiotio/SimEng/internal/isa"
)

// Insn is the ISA-specific decode result for one macro-op — everything
// the out-of-order core needs to know about an instruction that only an
// ISA backend can supply.
type Insn struct {
	ArchSrcs  []isa.Register
	ArchDests []isa.Register
	Group     isa.Group
	Op        string

	IsBranch    bool
	IsLoad      bool
	IsStore     bool
	IsStoreData bool
	IsCondStore bool

	// UnconditionalDirect marks a branch whose target is fully known at
	// decode time (e.g. an unconditional direct branch), letting decode
	// catch an obviously-wrong prediction without waiting for execute.
	UnconditionalDirect bool
	StaticTarget        uint64

	Execute func(u *isa.Uop)
}

// Decoder is the narrow ISA-decode surface decode.Unit needs.
type Decoder interface {
	Decode(op fetch.MacroOp) Insn
}

// FlushRequest is decode's early-redirect signal: a macro-op's static
// shape makes the fetch-time prediction obviously wrong, so there is no
// need to wait for the branch to execute before refetching.
type FlushRequest struct {
	Addr uint64
}

// Unit cracks macro-ops into micro-ops and renames them into program
// order by assigning InsnID.
type Unit struct {
	pool    *isa.Pool
	decoder Decoder

	nextInsnID uint64

	earlyFlushes uint64
}

// NewUnit builds a decode unit backed by the given uop pool and
// ISA-specific decoder.
func NewUnit(pool *isa.Pool, decoder Decoder) *Unit {
	return &Unit{pool: pool, decoder: decoder}
}

// PassthroughSplitter is the in-tree Decoder: it always emits exactly
// one uop per macro-op (spec §4.7 — sufficient for every testable
// property in §8, since none depend on multi-uop cracking), deferring
// the actual ISA decode to an injected callback.
type PassthroughSplitter struct {
	DecodeFunc func(op fetch.MacroOp) Insn
}

// Decode implements Decoder by forwarding to the injected callback.
func (s PassthroughSplitter) Decode(op fetch.MacroOp) Insn {
	return s.DecodeFunc(op)
}

// Crack decodes one macro-op into exactly one uop, whatever the
// Decoder, and checks whether its prediction is obviously
// wrong given the macro-op's static shape. Returns the produced uops
// and, if decode itself wants to redirect fetch, a FlushRequest.
func (u *Unit) Crack(op fetch.MacroOp) ([]*isa.Uop, *FlushRequest) {
	insn := u.decoder.Decode(op)

	uop := u.pool.Alloc()
	uop.InsnID = u.nextInsnID
	u.nextInsnID++

	uop.Addr = op.Addr
	uop.ArchSrcs = insn.ArchSrcs
	uop.ArchDests = insn.ArchDests
	uop.Group = insn.Group
	uop.Op = insn.Op
	uop.IsBranch = insn.IsBranch
	uop.IsLoad = insn.IsLoad
	uop.IsStore = insn.IsStore
	uop.IsStoreData = insn.IsStoreData
	uop.IsCondStore = insn.IsCondStore
	uop.Execute = insn.Execute
	uop.Prediction = isa.BranchPrediction{Taken: op.Prediction.Taken, Target: op.Prediction.Target}
	uop.Decoded = true

	var flush *FlushRequest
	if insn.UnconditionalDirect {
		wronglyNotTaken := !op.Prediction.Taken
		wrongTarget := op.Prediction.Taken && op.Prediction.Target != insn.StaticTarget
		if wronglyNotTaken || wrongTarget {
			u.earlyFlushes++
			flush = &FlushRequest{Addr: insn.StaticTarget}
		}
	}

	return []*isa.Uop{uop}, flush
}

// EarlyFlushes returns the number of macro-ops decode redirected itself
// rather than waiting for execute (spec §6's decode stall/flush stat).
func (u *Unit) EarlyFlushes() uint64 { return u.earlyFlushes }
