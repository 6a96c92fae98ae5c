// Package core wires fetch, decode, dispatch/issue, the execution
// ports, the load/store queue and the reorder buffer into one
// out-of-order core and drives them with a single per-cycle Tick,
// matching original_source/src/lib/models/outoforder/Core.cc's tick()
// method-for-method: the same unit ordering, the same two-pass
// dispatch/issue split, the same flush tie-break between execution
// units and the reorder buffer, and the same exception-handling
// early-return contract.
package core

import (
	"github.com/jamestiotio/SimEng/internal/akita/sim"
	"github.com/jamestiotio/SimEng/internal/config"
	"github.com/jamestiotio/SimEng/internal/decode"
	"github.com/jamestiotio/SimEng/internal/dispatch"
	"github.com/jamestiotio/SimEng/internal/execute"
	"github.com/jamestiotio/SimEng/internal/fetch"
	"github.com/jamestiotio/SimEng/internal/isa"
	"github.com/jamestiotio/SimEng/internal/lsq"
	"github.com/jamestiotio/SimEng/internal/mem"
	"github.com/jamestiotio/SimEng/internal/rat"
	"github.com/jamestiotio/SimEng/internal/regfile"
	"github.com/jamestiotio/SimEng/internal/rob"
	"github.com/jamestiotio/SimEng/internal/scoreboard"
)

// Stats is the snapshot of per-core counters spec §6 names.
type Stats struct {
	Cycles  uint64
	Retired uint64
	IPC     float64
	Flushes uint64

	FetchBranchStalls   uint64
	DecodeEarlyFlushes  uint64
	IssueFrontendStalls uint64
	IssueBackendStalls  uint64
	IssuePortBusyStalls uint64
	LSQLoadViolations   uint64

	BranchExecuted   uint64
	BranchMispredict uint64
	BranchMissRate   float64

	IdleTicks       uint64
	ContextSwitches uint64
}

// HookPosFlush marks a flush (misprediction, memory-order violation, or
// decode early-redirect) applied this cycle.
var HookPosFlush = &sim.HookPos{Name: "Core Flush"}

// HookPosException marks an exception raised by the head of the ROB.
var HookPosException = &sim.HookPos{Name: "Core Exception"}

// HookPosStatusChange marks a top-level Status transition.
var HookPosStatusChange = &sim.HookPos{Name: "Core Status Change"}

// Core is one out-of-order core, built from a validated config.Document
// and ISA-specific decode/exception collaborators.
type Core struct {
	*sim.HookableBase

	cfg *config.Document

	pool *isa.Pool

	fetchUnit    *fetch.Unit
	decodeUnit   *decode.Unit
	dispatchUnit *dispatch.Unit
	ports        []*execute.Port
	lsq          *lsq.Queue
	rob          *rob.Buffer
	rat          *rat.Table
	regs         *regfile.Set
	scoreboard   *scoreboard.Board
	mmu          *mem.MMU

	fetchReq  *fetchRequester
	writeback *writeback

	renameToDispatch sim.Buffer
	pendingDecode    []*isa.Uop
	decodeFlush      *decode.FlushRequest

	completionSlots []lsq.CompletionSlot

	exceptionHandler ExceptionHandler
	exceptionUop     *isa.Uop

	status Status

	ticks           uint64
	retired         uint64
	flushes         uint64
	idleTicks       uint64
	contextSwitches uint64
}

// New builds an out-of-order core from cfg, wiring one execution port per
// cfg.Ports[i]/cfg.ExecutionUnits[i] pair (matched by index — spec §6
// describes these as parallel lists). decoder and exceptionHandler are
// the ISA-specific collaborators spec §1 puts out of this module's
// scope.
func New(cfg *config.Document, decoder decode.Decoder, exceptionHandler ExceptionHandler, startAddr uint64) *Core {
	ratCfg := cfg.RATConfig()

	mmuCfg := mem.Config{
		MaxInflight:        cfg.LSQMemoryInterface.PermittedRequestsPerCycle,
		BandwidthPerCycle:  cfg.LSQMemoryInterface.LoadBandwidth + cfg.LSQMemoryInterface.StoreBandwidth,
		TranslationLatency: cfg.MemoryHierarchy.AccessLatency,
	}
	mmu := mem.NewMMU("mmu0", mmuCfg)

	regs := regfile.NewSet(ratCfg.PhysCounts, 8)
	ratTable := rat.NewTable(ratCfg)
	sb := scoreboard.NewBoard(ratCfg.PhysCounts)

	lsqQueue := lsq.NewQueue(lsq.Config{
		Combined:      false,
		LoadCapacity:  cfg.QueueSizes.Load,
		StoreCapacity: cfg.QueueSizes.Store,
		LoadLatency:   0,
	})

	stations := make([]dispatch.StationSpec, len(cfg.ReservationStations))
	for i, rs := range cfg.ReservationStations {
		stations[i] = dispatch.StationSpec{Capacity: rs.Size, Ports: rs.Ports}
	}
	dispatchUnit := dispatch.NewUnit(len(cfg.Ports), stations, regs, sb, cfg.BypassTable(), cfg.PipelineWidths.DispatchRate)

	wb := &writeback{regs: regs, dispatch: dispatchUnit}

	fetchReq := newFetchRequester(mmu)
	// Real branch prediction (BTB/TAGE/RAS) is an external collaborator
	// (spec §1); StaticPredictor is the documented fallback and the only
	// one this module carries.
	var predictor fetch.Predictor = fetch.StaticPredictor{}
	// Both supported ISAs (AArch64, RV64) use fixed 4-byte instructions,
	// so every fetch request asks the MMU for one 4-byte instruction;
	// fetch uses FetchBlockSize as the request size only when OpSize is 0.
	const fixedInsnLen = 4
	fetchUnit := fetch.NewUnit(fetchReq, predictor, fetch.Config{
		BlockSize:  cfg.Fetch.FetchBlockSize,
		OpSize:     fixedInsnLen,
		Capacity:   cfg.PipelineWidths.FrontEnd,
		LoopBufCap: cfg.BranchPredictor.LoopBufferSize,
	}, startAddr)

	pool := isa.NewPool()
	decodeUnit := decode.NewUnit(pool, decoder)

	latencyTable := cfg.LatencyTable()
	ports := make([]*execute.Port, len(cfg.Ports))
	for i := range cfg.Ports {
		var eu config.ExecutionUnit
		if i < len(cfg.ExecutionUnits) {
			eu = cfg.ExecutionUnits[i]
		}
		ports[i] = execute.NewPort(i, execute.Config{
			Pipelined:      eu.Pipelined,
			BlockingGroups: eu.BlockingGroupNums,
		}, latencyTable, lsqQueue, wb, predictor)
	}

	slots := make([]lsq.CompletionSlot, cfg.PipelineWidths.LSQCompletion)
	for i := range slots {
		slots[i] = completionSlot{}
	}

	c := &Core{
		HookableBase:     sim.NewHookableBase(),
		cfg:              cfg,
		pool:             pool,
		fetchUnit:        fetchUnit,
		decodeUnit:       decodeUnit,
		dispatchUnit:     dispatchUnit,
		ports:            ports,
		lsq:              lsqQueue,
		rat:              ratTable,
		regs:             regs,
		scoreboard:       sb,
		mmu:              mmu,
		fetchReq:         fetchReq,
		writeback:        wb,
		renameToDispatch: sim.NewBuffer("RenameToDispatch", cfg.PipelineWidths.FrontEnd),
		completionSlots:  slots,
		exceptionHandler: exceptionHandler,
		status:           StatusExecuting,
	}

	// onRobException captures c, so the ROB can only be built once c
	// exists.
	c.rob = rob.New(cfg.QueueSizes.ROB, ratTable, newLSQAdapter(lsqQueue), c.onRobException)

	if cfg.BranchPredictor.LoopDetectionThreshold > 0 {
		c.rob.SetLoopDetect(rob.LoopDetectConfig{
			Threshold:  cfg.BranchPredictor.LoopDetectionThreshold,
			BufferSize: cfg.BranchPredictor.LoopBufferSize,
		}, func(l rob.LoopDetected) {
			c.fetchUnit.EnterLoop(fetch.LoopWindow{StartAddr: l.StartAddr, EndAddr: l.EndAddr})
		})
	}

	return c
}

func (c *Core) onRobException(uop *isa.Uop) {
	c.exceptionUop = uop
}

// Status returns the core's current top-level state.
func (c *Core) Status() Status { return c.status }

// RequestSwitch asks the core to context-switch out once its pipeline
// drains, per original_source's CoreStatus::switching handling.
func (c *Core) RequestSwitch() {
	if c.status == StatusExecuting {
		c.setStatus(StatusSwitching)
	}
}

// setStatus updates the core's status, notifying any registered hooks of
// the transition (internal/core/corelog's LogHook, e.g.).
func (c *Core) setStatus(s Status) {
	prev := c.status
	c.status = s
	if c.NumHooks() > 0 {
		c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosStatusChange, Item: s, Detail: prev})
	}
}

// RegisterFile exposes the physical register file, e.g. to save/restore
// architectural state across a context switch.
func (c *Core) RegisterFile() *regfile.Set { return c.regs }

// Stats snapshots the core's running counters.
func (c *Core) Stats() Stats {
	var branchExec, mispredicts uint64
	for _, p := range c.ports {
		branchExec += p.BranchesExecuted()
		mispredicts += p.Mispredicts()
	}

	s := Stats{
		Cycles:              c.ticks,
		Retired:             c.retired,
		Flushes:             c.flushes,
		FetchBranchStalls:   c.fetchUnit.BranchStalls(),
		DecodeEarlyFlushes:  c.decodeUnit.EarlyFlushes(),
		IssueFrontendStalls: c.dispatchUnit.FrontendStalls(),
		IssueBackendStalls:  c.dispatchUnit.BackendStalls(),
		IssuePortBusyStalls: c.dispatchUnit.PortBusyStalls(),
		LSQLoadViolations:   c.lsq.LoadViolations(),
		BranchExecuted:      branchExec,
		BranchMispredict:    mispredicts,
		IdleTicks:           c.idleTicks,
		ContextSwitches:     c.contextSwitches,
	}
	if c.ticks > 0 {
		s.IPC = float64(c.retired) / float64(c.ticks)
	}
	if branchExec > 0 {
		s.BranchMissRate = float64(mispredicts) / float64(branchExec)
	}
	return s
}

// Tick advances the core by one cycle. Returns whether any progress was
// made, satisfying sim.Ticker.
func (c *Core) Tick() bool {
	c.ticks++

	switch c.status {
	case StatusHalted:
		return false
	case StatusIdle:
		c.idleTicks++
		return false
	case StatusSwitching:
		if c.pipelineDrained() {
			c.fetchUnit.ExitLoop()
			c.dispatchUnit.Reset()
			c.setStatus(StatusIdle)
			return false
		}
	}

	if c.exceptionUop != nil {
		return c.processException()
	}

	c.stepFrontend()
	c.stepDispatch()

	var euFlush *execute.FlushRequest
	for _, p := range c.ports {
		p.Tick()
		if f := p.PendingFlush(); f != nil {
			if euFlush == nil || f.InsnID < euFlush.InsnID {
				euFlush = f
			}
		}
	}

	c.lsq.Tick(c.mmu, c.completionSlots, c.writeback)
	c.mmu.Tick()

	c.stepIssue()

	c.retired += uint64(c.rob.Commit(c.cfg.PipelineWidths.Commit))

	if c.exceptionUop != nil {
		c.handleException()
		return true
	}

	c.flushIfNeeded(euFlush)
	return true
}

// pipelineDrained reports whether every in-flight pipeline stage is
// empty, per original_source's CoreStatus::switching precondition.
func (c *Core) pipelineDrained() bool {
	return c.fetchUnit.Len() == 0 &&
		len(c.pendingDecode) == 0 &&
		c.renameToDispatch.Size() == 0 &&
		c.mmu.Inflight() == 0 &&
		c.rob.Size() == 0 &&
		c.exceptionUop == nil
}

// stepFrontend fetches and decodes up to Pipeline-Widths.Front-End
// macro-ops, folding rename into the same step (this module crafts
// exactly one uop per macro-op, so there is no separate multi-uop rename
// stage to model — see DESIGN.md). Uops that cannot yet obtain ROB/LSQ/
// physical-register resources are latched in pendingDecode and retried
// first on the next cycle, before any further macro-ops are pulled from
// fetch.
func (c *Core) stepFrontend() {
	c.fetchUnit.Tick()

	for len(c.pendingDecode) > 0 {
		if !c.tryRename(c.pendingDecode[0]) {
			return
		}
		c.pendingDecode = c.pendingDecode[1:]
	}

	width := c.cfg.PipelineWidths.FrontEnd
	for i := 0; i < width; i++ {
		op, ok := c.fetchUnit.Pop()
		if !ok {
			break
		}

		uops, flush := c.decodeUnit.Crack(op)
		for _, uop := range uops {
			if len(c.pendingDecode) > 0 || !c.tryRename(uop) {
				c.pendingDecode = append(c.pendingDecode, uop)
			}
		}

		if flush != nil {
			c.decodeFlush = flush
			break
		}
		if len(c.pendingDecode) > 0 {
			break
		}
	}
}

// tryRename attempts to allocate a ROB slot, LSQ slot (if needed) and
// physical destination registers for uop, and push it to the
// rename-to-dispatch buffer. Returns false, leaving uop untouched, if
// any resource is unavailable this cycle.
func (c *Core) tryRename(uop *isa.Uop) bool {
	if !c.renameToDispatch.CanPush() {
		return false
	}
	if c.rob.FreeSpace() <= 0 {
		return false
	}
	if uop.IsLoad && c.lsq.LoadQueueSpace() <= 0 {
		return false
	}
	if uop.IsStore && c.lsq.StoreQueueSpace() <= 0 {
		return false
	}

	need := make(map[isa.RegType]int, len(uop.ArchDests))
	for _, d := range uop.ArchDests {
		need[d.Type]++
	}
	for rt, n := range need {
		if c.rat.FreeCount(rt) < n {
			return false
		}
	}

	c.rob.Reserve(uop)

	phys := make([]isa.Register, len(uop.ArchDests))
	for i, d := range uop.ArchDests {
		p, ok := c.rat.Allocate(d, uop.SeqID)
		if !ok {
			panic("core: rename allocation failed after a successful free-count check")
		}
		phys[i] = p
	}
	uop.PhysDests = phys
	uop.DestValues = make([]isa.RegisterValue, len(phys))

	srcs := make([]isa.OperandSlot, len(uop.ArchSrcs))
	for i, s := range uop.ArchSrcs {
		srcs[i] = isa.OperandSlot{Reg: c.rat.Rewrite(s)}
	}
	uop.PhysSrcs = srcs
	uop.Renamed = true
	uop.SupportedPorts = supportedPorts(c.cfg, uop.Group, uop.Op)

	if uop.IsLoad {
		c.lsq.AddLoad(uop)
	}
	if uop.IsStore {
		c.lsq.AddStore(uop)
	}

	c.renameToDispatch.Push(uop)
	return true
}

// stepDispatch drains the rename-to-dispatch buffer into reservation
// stations, bounded by Pipeline-Widths.Dispatch-Rate macro-ops per
// cycle, mirroring DispatchIssueUnit::tick's input-buffer loop.
func (c *Core) stepDispatch() {
	c.dispatchUnit.BeginCycle(c.ticks)

	rate := c.cfg.PipelineWidths.DispatchRate
	for i := 0; i < rate; i++ {
		v := c.renameToDispatch.Peek()
		if v == nil {
			break
		}
		uop := v.(*isa.Uop)
		if !c.dispatchUnit.Dispatch(uop) {
			break
		}
		c.renameToDispatch.Pop()
	}
}

// stepIssue runs the late issue pass, after every execution port and the
// LSQ have ticked this cycle, so a port vacated this cycle can accept a
// new uop immediately, matching DispatchIssueUnit::issue's placement in
// Core::tick().
func (c *Core) stepIssue() {
	c.dispatchUnit.Issue(
		func(port int, uop *isa.Uop) bool {
			return c.ports[port].CanAccept(uop.Group, c.ticks)
		},
		func(port int, uop *isa.Uop) {
			c.ports[port].Accept(uop, c.ticks)
		},
	)
}

// flushIfNeeded applies the flush tie-break between misspeculating
// execution units and the reorder buffer's own store/load violation
// flush, falling back to decode's own early-redirect flush when neither
// fired this cycle. Grounded method-for-method on Core::flushIfNeeded.
func (c *Core) flushIfNeeded(euFlush *execute.FlushRequest) {
	haveFlush := euFlush != nil
	var keep, addr uint64
	if haveFlush {
		keep, addr = euFlush.InsnID, euFlush.Address
	}

	if c.rob.ShouldFlush() {
		robKeep := c.rob.FlushAfterSeq()
		if !haveFlush || robKeep < keep {
			keep, addr = robKeep, c.rob.FlushAddress()
		}
		haveFlush = true
	}

	if haveFlush {
		c.fetchUnit.ExitLoop()
		c.fetchUnit.Redirect(addr)
		c.renameToDispatch.Clear()
		c.pendingDecode = nil
		c.decodeFlush = nil

		c.rob.Flush(keep)
		c.dispatchUnit.PurgeFlushed()
		c.lsq.PurgeFlushed()
		for _, p := range c.ports {
			p.PurgeFlushed()
		}
		c.flushes++
		if c.NumHooks() > 0 {
			c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosFlush, Item: keep, Detail: addr})
		}
		return
	}

	if c.decodeFlush != nil {
		c.fetchUnit.ExitLoop()
		c.fetchUnit.Redirect(c.decodeFlush.Addr)
		c.decodeFlush = nil
		c.flushes++
		if c.NumHooks() > 0 {
			c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosFlush, Item: "decode-early-redirect"})
		}
	}
}

// handleException flushes everything younger than the excepting uop
// (which the ROB has already popped by the time this runs) and begins
// resolving it. Grounded on Core::handleException.
func (c *Core) handleException() {
	uop := c.exceptionUop

	c.renameToDispatch.Clear()
	c.pendingDecode = nil
	c.decodeFlush = nil

	c.rob.Flush(uop.SeqID)
	c.dispatchUnit.PurgeFlushed()
	c.lsq.PurgeFlushed()
	for _, p := range c.ports {
		p.PurgeFlushed()
	}

	if c.NumHooks() > 0 {
		c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosException, Item: uop.Exception.Kind, Detail: uop.Addr})
	}
	c.exceptionHandler.Begin(uop)
	c.processException()
}

// processException polls the exception handler once per cycle, per
// Core::processException: it waits for any outstanding MMU request to
// drain, then for the handler itself to report ready, before applying
// the outcome.
func (c *Core) processException() bool {
	if c.mmu.Inflight() > 0 {
		return true
	}

	outcome, ready := c.exceptionHandler.Step()
	if !ready {
		return true
	}

	if outcome.Fatal {
		c.setStatus(StatusHalted)
		c.exceptionUop = nil
		return true
	}

	c.fetchUnit.ExitLoop()
	c.fetchUnit.Redirect(outcome.TargetPC)
	for _, w := range outcome.StateChange {
		c.regs.Set(w.Reg, w.Value)
	}

	if outcome.IdleAfterSyscall {
		c.dispatchUnit.Reset()
		c.setStatus(StatusIdle)
		c.contextSwitches++
	}

	c.exceptionUop = nil
	return true
}
