// Package fetch buffers macro-op descriptors ahead of decode. Real ISA
// fetch (instruction-byte parsing, full branch prediction) is an
// external collaborator (spec §1 non-goal); this package only supplies
// the contracts and a minimal in-tree implementation needed to drive
// the out-of-order core end to end.
package fetch

// Prediction is what a Predictor hands back for a fetched address.
type Prediction struct {
	Taken  bool
	Target uint64
}

// Predictor is the narrow branch-prediction surface fetch needs, and
// the same contract execute checks a branch's real outcome against
// (see internal/execute.Predictor).
type Predictor interface {
	Predict(addr uint64) Prediction
	Update(addr uint64, taken bool, target uint64)
}

// StaticPredictor always predicts not-taken, spec §6's
// Fallback-Static-Predictor. Deterministic, so scenario tests that rely
// on "a branch falls through" or "a branch mispredicts" never depend on
// predictor internals.
type StaticPredictor struct{}

// Predict always reports not-taken, target unchanged (fallthrough).
func (StaticPredictor) Predict(addr uint64) Prediction { return Prediction{} }

// Update is a no-op: a static predictor carries no state to learn from.
func (StaticPredictor) Update(addr uint64, taken bool, target uint64) {}

// Requester is the MMU-facing surface fetch needs to read instruction
// bytes: request an instruction-fetch block starting at addr, get back
// the raw bytes (or nil if not yet available — the caller retries next
// cycle).
type Requester interface {
	RequestFetch(addr uint64, size uint64) []byte
}

// MacroOp is one not-yet-decoded instruction descriptor.
type MacroOp struct {
	Addr       uint64
	Len        uint64
	Prediction Prediction
}

// LoopWindow is the currently active loop-buffer range, set by
// EnterLoop and cleared by ExitLoop (internal/rob's LoopDetected
// signal and the flush-crosses-branch cancellation, spec §4.8).
type LoopWindow struct {
	StartAddr uint64
	EndAddr   uint64
}

// Unit buffers macro-ops ahead of decode, reading instruction bytes
// through an injected Requester and predicting every fetched address
// through an injected Predictor. Each fetch request asks for OpSize
// bytes; Fetch-Block-Size (BlockSize) is the request size only when
// OpSize is 0.
type Unit struct {
	mmu       Requester
	predictor Predictor
	blockSize uint64
	opSize    uint64
	capacity  int

	buffered []MacroOp
	nextAddr uint64
	stalled  bool

	loop       *LoopWindow
	loopCache  map[uint64][]byte
	loopBufCap uint64

	branchStalls uint64
}

// Config parameterizes a fetch Unit.
type Config struct {
	BlockSize  uint64
	OpSize     uint64 // fixed macro-op length; real ISAs vary this per op
	Capacity   int
	LoopBufCap uint64
}

// NewUnit builds a fetch unit starting at startAddr.
func NewUnit(mmu Requester, predictor Predictor, cfg Config, startAddr uint64) *Unit {
	return &Unit{
		mmu:        mmu,
		predictor:  predictor,
		blockSize:  cfg.BlockSize,
		opSize:     cfg.OpSize,
		capacity:   cfg.Capacity,
		nextAddr:   startAddr,
		loopCache:  make(map[uint64][]byte),
		loopBufCap: cfg.LoopBufCap,
	}
}

// EnterLoop installs a loop-buffer window (internal/rob's
// LoopDetected). Fetch addresses inside [w.StartAddr, w.EndAddr) are
// served from loopCache once primed, rather than re-requested from the
// MMU every iteration.
func (u *Unit) EnterLoop(w LoopWindow) {
	if w.EndAddr-w.StartAddr > u.loopBufCap {
		return // doesn't fit the configured loop buffer, stay in normal mode
	}
	u.loop = &w
}

// ExitLoop cancels loop-buffer mode, per SPEC_FULL.md §4.8: any flush
// whose range crosses the detected branch cancels it unconditionally.
func (u *Unit) ExitLoop() {
	u.loop = nil
	u.loopCache = make(map[uint64][]byte)
}

// Redirect discards buffered macro-ops and resumes fetch at addr — used
// for ROB flush targets and decode's early-flush redirect.
func (u *Unit) Redirect(addr uint64) {
	u.buffered = nil
	u.nextAddr = addr
	u.stalled = false
}

// Tick requests one more macro-op if there is buffer space, and
// predicts its outcome. Returns true if a macro-op was buffered.
func (u *Unit) Tick() bool {
	if len(u.buffered) >= u.capacity {
		return false
	}

	addr := u.nextAddr
	if u.inLoopWindow(addr) {
		data, ok := u.loopCache[addr]
		if !ok {
			data = u.requestBytes(addr)
			if data == nil {
				return false
			}
			u.loopCache[addr] = data
		}
		return u.bufferOp(addr, uint64(len(data)))
	}

	data := u.requestBytes(addr)
	if data == nil {
		u.stalled = true
		u.branchStalls++
		return false
	}
	u.stalled = false

	return u.bufferOp(addr, uint64(len(data)))
}

// BranchStalls returns the number of cycles fetch stalled waiting on
// the MMU to return instruction bytes (spec §6's fetch stall stat).
func (u *Unit) BranchStalls() uint64 { return u.branchStalls }

func (u *Unit) inLoopWindow(addr uint64) bool {
	return u.loop != nil && addr >= u.loop.StartAddr && addr < u.loop.EndAddr
}

func (u *Unit) requestBytes(addr uint64) []byte {
	size := u.opSize
	if size == 0 {
		size = u.blockSize
	}
	return u.mmu.RequestFetch(addr, size)
}

func (u *Unit) bufferOp(addr, length uint64) bool {
	pred := u.predictor.Predict(addr)

	u.buffered = append(u.buffered, MacroOp{Addr: addr, Len: length, Prediction: pred})

	if pred.Taken {
		u.nextAddr = pred.Target
	} else {
		u.nextAddr = addr + length
	}

	return true
}

// Pop removes and returns the oldest buffered macro-op for decode, or
// false if empty.
func (u *Unit) Pop() (MacroOp, bool) {
	if len(u.buffered) == 0 {
		return MacroOp{}, false
	}
	op := u.buffered[0]
	u.buffered = u.buffered[1:]
	return op, true
}

// Len returns the number of buffered macro-ops.
func (u *Unit) Len() int { return len(u.buffered) }

// Stalled reports whether the most recent Tick failed to get bytes back
// from the MMU (branch/fetch-miss stall bookkeeping, spec §6).
func (u *Unit) Stalled() bool { return u.stalled }

// Predictor returns the installed predictor. Decode does not call it: its
// early-flush check uses the Prediction already stored in each MacroOp.
func (u *Unit) Predictor() Predictor { return u.predictor }
