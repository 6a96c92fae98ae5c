// Package rob implements the reorder buffer: in-order reservation and
// commit over a speculative pipeline, flush-from-tail on misprediction
// or violation, and an optional loop-boundary hook for the fetch stage.
//
// Grounded directly on
// original_source/src/outoforder/ReorderBuffer.cc (reserve/commit/flush
// translated method-for-method), extended per spec §4.5's loop-detect
// design note (§4.8 of SPEC_FULL.md) which original_source's retrieved
// translation unit does not implement.
package rob

import "github.com/jamestiotio/SimEng/internal/isa"

// RAT is the narrow register-alias-table surface the ROB needs;
// satisfied by *rat.Table.
type RAT interface {
	Commit(dest isa.Register, seqID uint64)
	Rewind(dest isa.Register, seqID uint64)
}

// LSQ is the narrow load/store queue surface the ROB needs; satisfied
// by *lsq.Queue.
type LSQ interface {
	CommitStore(uop *isa.Uop) bool
	CommitLoad(uop *isa.Uop)
	ViolatingLoad() *isa.Uop
}

// ExceptionHandler is invoked exactly once when the head uop carries an
// exception, per spec §7.
type ExceptionHandler func(uop *isa.Uop)

// LoopDetected is emitted when a retiring branch has repeated
// contiguously for Threshold commits and its body fits within
// BufferSize, per SPEC_FULL.md §4.8.
type LoopDetected struct {
	StartAddr uint64
	EndAddr   uint64
}

// LoopDetectConfig configures the optional loop-boundary hook. A
// Threshold of 0 disables detection.
type LoopDetectConfig struct {
	Threshold  int
	BufferSize uint64
}

// Buffer is the reorder buffer for one core.
type Buffer struct {
	rat RAT
	lsq LSQ

	maxSize int
	entries []*isa.Uop
	nextSeq uint64

	raiseException ExceptionHandler
	onLoopDetected func(LoopDetected)
	loopCfg        LoopDetectConfig

	lastBranchAddr  uint64
	branchRepeats   int
	loopActive      bool

	shouldFlush   bool
	flushAfterSeq uint64
	flushAddress  uint64
}

// New builds a reorder buffer with the given capacity.
func New(maxSize int, rat RAT, lsq LSQ, onException ExceptionHandler) *Buffer {
	return &Buffer{rat: rat, lsq: lsq, maxSize: maxSize, raiseException: onException}
}

// SetLoopDetect installs the loop-boundary hook and its configuration.
func (b *Buffer) SetLoopDetect(cfg LoopDetectConfig, onLoopDetected func(LoopDetected)) {
	b.loopCfg = cfg
	b.onLoopDetected = onLoopDetected
}

// FreeSpace returns the number of unoccupied ROB slots.
func (b *Buffer) FreeSpace() int { return b.maxSize - len(b.entries) }

// Size returns the number of occupied ROB slots.
func (b *Buffer) Size() int { return len(b.entries) }

// Reserve assigns the next sequence id to uop and appends it to the
// tail. Panics if the ROB is full — callers must check FreeSpace first,
// matching ReorderBuffer::reserve's precondition assertion.
func (b *Buffer) Reserve(uop *isa.Uop) {
	if len(b.entries) >= b.maxSize {
		panic("rob: reserve on a full reorder buffer")
	}
	uop.SeqID = b.nextSeq
	b.nextSeq++
	b.entries = append(b.entries, uop)
}

// Commit attempts to retire up to maxN head entries in program order.
// Stops at the first not-yet-commit-ready uop, at an exception (which is
// surfaced once and halts further commits this call), or at a detected
// store-load violation (which also halts further commits and latches a
// flush request). Returns the number of uops committed this call.
func (b *Buffer) Commit(maxN int) int {
	b.shouldFlush = false

	n := 0
	for n < maxN && n < len(b.entries) {
		uop := b.entries[0]
		if !uop.CanCommit() {
			break
		}

		if uop.ExceptionRaised {
			b.raiseException(uop)
			b.entries = b.entries[1:]
			return n + 1
		}

		for _, dest := range uop.ArchDests {
			b.rat.Commit(dest, uop.SeqID)
		}

		if uop.IsStore {
			if b.lsq.CommitStore(uop) {
				load := b.lsq.ViolatingLoad()
				b.shouldFlush = true
				b.flushAfterSeq = load.SeqID - 1
				b.flushAddress = load.Addr
				b.entries = b.entries[1:]
				return n + 1
			}
		} else if uop.IsLoad {
			b.lsq.CommitLoad(uop)
		}

		b.entries = b.entries[1:]
		n++

		if uop.IsBranch {
			b.trackLoop(uop)
		}
	}

	return n
}

func (b *Buffer) trackLoop(branch *isa.Uop) {
	if b.loopCfg.Threshold <= 0 {
		return
	}

	if branch.Addr == b.lastBranchAddr {
		b.branchRepeats++
	} else {
		b.lastBranchAddr = branch.Addr
		b.branchRepeats = 1
		b.loopActive = false
	}

	if !b.loopActive && b.branchRepeats >= b.loopCfg.Threshold {
		bodySize := branch.BranchTarget - branch.Addr
		if branch.Addr > branch.BranchTarget {
			bodySize = branch.Addr - branch.BranchTarget
		}
		if bodySize <= b.loopCfg.BufferSize && b.onLoopDetected != nil {
			b.loopActive = true
			start, end := branch.BranchTarget, branch.Addr
			if start > end {
				start, end = end, start
			}
			b.onLoopDetected(LoopDetected{StartAddr: start, EndAddr: end})
		}
	}
}

// ShouldFlush reports whether the most recent Commit call latched a
// flush request (from a store/load violation).
func (b *Buffer) ShouldFlush() bool { return b.shouldFlush }

// FlushAfterSeq returns the sequence id the latched flush should keep
// (everything strictly newer is discarded).
func (b *Buffer) FlushAfterSeq() uint64 { return b.flushAfterSeq }

// FlushAddress returns the refetch address for the latched flush.
func (b *Buffer) FlushAddress() uint64 { return b.flushAddress }

// Flush discards every entry newer than afterSeqID from the tail,
// rewinding each discarded uop's destination registers in the RAT and
// marking it flushed. Any flush whose range crosses the currently
// detected loop's branch cancels loop mode (SPEC_FULL.md §4.8's
// conservative open-question resolution).
func (b *Buffer) Flush(afterSeqID uint64) {
	for len(b.entries) > 0 {
		tail := b.entries[len(b.entries)-1]
		if tail.SeqID <= afterSeqID {
			break
		}

		for _, dest := range tail.ArchDests {
			b.rat.Rewind(dest, tail.SeqID)
		}
		tail.Flushed = true
		b.entries = b.entries[:len(b.entries)-1]

		if b.loopActive && tail.Addr == b.lastBranchAddr {
			b.loopActive = false
			b.branchRepeats = 0
		}
	}
}

// Head returns the oldest in-flight uop, or nil if empty.
func (b *Buffer) Head() *isa.Uop {
	if len(b.entries) == 0 {
		return nil
	}
	return b.entries[0]
}
