// Package dispatch implements the dispatch/issue engine: reservation
// stations bound to issue ports, the port allocator, scoreboard-driven
// operand supply, and the forwarding path that drains the dependency
// matrix when an execution result is published.
//
// Grounded method-for-method on original_source's
// src/lib/pipeline/DispatchIssueUnit.cc (tick, issue, forwardOperands,
// purgeFlushed), generalized from the C++ fixed-vector-of-ports layout
// to Go slices over internal/isa.Uop.
package dispatch

import (
	"github.com/jamestiotio/SimEng/internal/isa"
	"github.com/jamestiotio/SimEng/internal/scoreboard"
)

// BypassTable answers how many cycles a forwarded result takes to reach
// a dependent uop's operand, given the producer's and consumer's groups
// (spec §4.2's producer-group/consumer-group table, with 0 = immediate,
// -1 = forwarding disallowed, k>0 = delayed k cycles).
type BypassTable interface {
	Bypass(producer, consumer isa.Group) int
}

// RegisterFile is the narrow read surface dispatch needs; satisfied by
// *regfile.Set.
type RegisterFile interface {
	Get(isa.Register) isa.RegisterValue
}

// reservationStation mirrors DispatchIssueUnit.cc's ReservationStation:
// a capacity, the number of uops currently dispatched-but-not-issued,
// and one ready queue per issue port bound to this station.
type reservationStation struct {
	capacity    int
	currentSize int
	ready       [][]*isa.Uop // indexed by this RS's local port slot
}

// waitingEntry is a uop due to have an operand supplied once the
// simulated bypass latency elapses (spec §4.2's "latency k>0" case).
type waitingEntry struct {
	readyAtTick uint64
	uop         *isa.Uop
	operandIdx  int
	port        int
	value       isa.RegisterValue
}

// dependentEntry is a uop that must re-poll the scoreboard every tick
// because forwarding was disallowed for its producer/consumer pair
// (spec §4.2's "latency -1" case).
type dependentEntry struct {
	uop        *isa.Uop
	operandIdx int
}

// Unit is the dispatch/issue engine for one core.
type Unit struct {
	regs       RegisterFile
	scoreboard *scoreboard.Board
	allocator  *PortAllocator
	bypass     BypassTable

	// portToRS[port] = (rsIndex, localPortSlot)
	portToRS [][2]int
	stations []*reservationStation

	dispatchRate int
	dispatched   []int // per-RS dispatches made this cycle

	waiting    []waitingEntry
	dependents []dependentEntry

	ticks uint64

	rsStalls       uint64
	frontendStalls uint64
	backendStalls  uint64
	portBusyStalls uint64
}

// StationSpec describes one reservation station: its capacity and the
// issue ports bound to it, in port-slot order.
type StationSpec struct {
	Capacity int
	Ports    []int
}

// NewUnit builds a dispatch/issue engine. numPorts is the total issue
// port count; stations partitions those ports across reservation
// stations per spec §6's Reservation-Stations config.
func NewUnit(numPorts int, stations []StationSpec, regs RegisterFile, sb *scoreboard.Board, bypass BypassTable, dispatchRate int) *Unit {
	u := &Unit{
		regs:         regs,
		scoreboard:   sb,
		allocator:    NewPortAllocator(numPorts),
		bypass:       bypass,
		portToRS:     make([][2]int, numPorts),
		dispatchRate: dispatchRate,
	}

	for rsIdx, spec := range stations {
		rs := &reservationStation{
			capacity: spec.Capacity,
			ready:    make([][]*isa.Uop, len(spec.Ports)),
		}
		u.stations = append(u.stations, rs)
		for slot, port := range spec.Ports {
			u.portToRS[port] = [2]int{rsIdx, slot}
		}
	}
	u.dispatched = make([]int, len(u.stations))

	return u
}

// BeginCycle resets the per-cycle dispatch-rate counters; call once at
// the start of each tick before any Dispatch calls.
func (u *Unit) BeginCycle(tick uint64) {
	u.ticks = tick
	for i := range u.dispatched {
		u.dispatched[i] = 0
	}
	u.drainWaiting()
	u.pollDependents()
}

// Dispatch attempts to dispatch one already-renamed uop, mirroring one
// iteration of DispatchIssueUnit::tick's input-buffer loop. Returns
// false (stalling the caller's feeding buffer) the moment a reservation
// station is full or its dispatch-rate budget for this cycle is
// exhausted.
func (u *Unit) Dispatch(uop *isa.Uop) bool {
	if uop.ExceptionRaised {
		uop.CommitReady = true
		return true
	}

	if len(uop.SupportedPorts) == 0 {
		uop.ExceptionRaised = true
		uop.Exception = isa.Exception{Kind: isa.ExceptionNoAvailablePort}
		uop.CommitReady = true
		return true
	}

	port := u.allocator.Allocate(uop.SupportedPorts)
	rsIdx, slot := u.portToRS[port][0], u.portToRS[port][1]
	rs := u.stations[rsIdx]

	if rs.currentSize == rs.capacity || u.dispatched[rsIdx] == u.dispatchRate {
		u.allocator.Deallocate(port)
		u.rsStalls++
		return false
	}

	uop.AssignedPort = port
	ready := true

	for i := range uop.PhysSrcs {
		if uop.PhysSrcs[i].Ready {
			continue
		}
		reg := uop.PhysSrcs[i].Reg
		if u.scoreboard.Ready(reg) {
			uop.PhysSrcs[i].Value = u.regs.Get(reg)
			uop.PhysSrcs[i].Ready = true
		} else {
			u.scoreboard.AddWaiter(reg, scoreboard.Waiter{Uop: uop, OperandIdx: i, Port: port})
			ready = false
		}
	}

	for _, d := range uop.PhysDests {
		u.scoreboard.ClaimDestination(d)
	}

	u.dispatched[rsIdx]++
	rs.currentSize++
	uop.Dispatched = true

	if ready {
		rs.ready[slot] = append(rs.ready[slot], uop)
	}

	return true
}

// Issue runs the per-port issue step: for each port whose downstream
// pipeline cannot yet accept its ready queue's head uop, skip it;
// otherwise pop the head and hand it to issueFn. A ready-queue head that
// was flushed after being pushed (forwarded and re-queued by supply in
// the same cycle its producer was retired but before this flush was
// applied) is dropped here rather than issued — PurgeFlushed only runs
// once per flush and cannot see entries added after it ran this same
// cycle. portReady is consulted with the actual candidate uop so a
// caller can account for per-group port occupancy (pipelined
// throughput, blocking groups) before the uop is committed to issuing.
// Increments frontend/backend/port-busy stall counters per spec §4.2.
func (u *Unit) Issue(portReady func(port int, uop *isa.Uop) bool, issueFn func(port int, uop *isa.Uop)) {
	issued := 0

	for port := range u.portToRS {
		rsIdx, slot := u.portToRS[port][0], u.portToRS[port][1]
		rs := u.stations[rsIdx]
		queue := rs.ready[slot]

		for len(queue) > 0 && queue[0].Flushed {
			u.allocator.Deallocate(queue[0].AssignedPort)
			if rs.currentSize == 0 {
				panic("dispatch: reservation station underflow on issue")
			}
			rs.currentSize--
			queue = queue[1:]
		}
		rs.ready[slot] = queue

		if len(queue) == 0 {
			continue
		}

		if !portReady(port, queue[0]) {
			u.portBusyStalls++
			continue
		}

		uop := queue[0]
		rs.ready[slot] = queue[1:]

		issueFn(port, uop)
		u.allocator.Issued(port)
		uop.Issued = true
		issued++

		if rs.currentSize == 0 {
			panic("dispatch: reservation station underflow on issue")
		}
		rs.currentSize--
	}

	if issued == 0 {
		anyOccupied := false
		for _, rs := range u.stations {
			if rs.currentSize != 0 {
				anyOccupied = true
				break
			}
		}
		if anyOccupied {
			u.backendStalls++
		} else {
			u.frontendStalls++
		}
	}
}

// Forward publishes a uop's results: marks each destination ready on
// the scoreboard and resolves every dependency-matrix waiter for it,
// applying the configured bypass latency between the producer's and
// each waiter's group.
func (u *Unit) Forward(producer *isa.Uop) {
	for _, dest := range producer.PhysDests {
		waiters := u.scoreboard.Forward(dest)

		for _, w := range waiters {
			latency := 0
			if u.bypass != nil {
				latency = u.bypass.Bypass(producer.Group, w.Uop.Group)
			}

			value := u.resultFor(producer, dest)

			switch {
			case latency == 0:
				u.supply(w, value)
			case latency < 0:
				u.dependents = append(u.dependents, dependentEntry{uop: w.Uop, operandIdx: w.OperandIdx})
			default:
				u.waiting = append(u.waiting, waitingEntry{
					readyAtTick: u.ticks + uint64(latency),
					uop:         w.Uop,
					operandIdx:  w.OperandIdx,
					port:        w.Port,
					value:       value,
				})
			}
		}
	}
}

// resultFor looks up the value a producer wrote to one of its
// destinations, for forwarding to a waiter. Destinations carry no value
// themselves in this model (the register file already holds it by the
// time Forward runs); callers that need an exact bypassed value before
// writeback should route it through PhysDests' paired values upstream —
// this fetches straight from the register file, matching
// DispatchIssueUnit.cc's use of getResults() aligned with
// getDestinationRegisters().
func (u *Unit) resultFor(producer *isa.Uop, dest isa.Register) isa.RegisterValue {
	return u.regs.Get(dest)
}

func (u *Unit) supply(w scoreboard.Waiter, value isa.RegisterValue) {
	if w.Uop.Flushed {
		return
	}

	w.Uop.PhysSrcs[w.OperandIdx].Value = value
	w.Uop.PhysSrcs[w.OperandIdx].Ready = true

	if w.Uop.AllSourcesReady() {
		rsIdx, slot := u.portToRS[w.Port][0], u.portToRS[w.Port][1]
		u.stations[rsIdx].ready[slot] = append(u.stations[rsIdx].ready[slot], w.Uop)
	}
}

// drainWaiting supplies any waitingEntry whose bypass delay has now
// elapsed.
func (u *Unit) drainWaiting() {
	kept := u.waiting[:0]
	for _, w := range u.waiting {
		if w.readyAtTick == u.ticks {
			u.supply(scoreboard.Waiter{Uop: w.uop, OperandIdx: w.operandIdx, Port: w.port}, w.value)
		} else {
			kept = append(kept, w)
		}
	}
	u.waiting = kept
}

// pollDependents re-checks the scoreboard for every uop parked because
// forwarding was disallowed for its producer/consumer pair.
func (u *Unit) pollDependents() {
	kept := u.dependents[:0]
	for _, d := range u.dependents {
		reg := d.uop.PhysSrcs[d.operandIdx].Reg
		if u.scoreboard.Ready(reg) {
			d.uop.PhysSrcs[d.operandIdx].Value = u.regs.Get(reg)
			d.uop.PhysSrcs[d.operandIdx].Ready = true

			if d.uop.AllSourcesReady() {
				rsIdx, slot := u.portToRS[d.uop.AssignedPort][0], u.portToRS[d.uop.AssignedPort][1]
				u.stations[rsIdx].ready[slot] = append(u.stations[rsIdx].ready[slot], d.uop)
			}
		} else {
			kept = append(kept, d)
		}
	}
	u.dependents = kept
}

// PurgeFlushed removes every flushed uop from the ready queues, the
// scoreboard's dependency matrix, and this unit's own pending waiters,
// deallocating the ports they had claimed, mirroring
// DispatchIssueUnit::purgeFlushed.
func (u *Unit) PurgeFlushed() {
	u.scoreboard.PurgeFlushed()

	for _, rs := range u.stations {
		for slot, queue := range rs.ready {
			kept := queue[:0]
			for _, uop := range queue {
				if uop.Flushed {
					u.allocator.Deallocate(uop.AssignedPort)
					if rs.currentSize == 0 {
						panic("dispatch: reservation station underflow on purge")
					}
					rs.currentSize--
				} else {
					kept = append(kept, uop)
				}
			}
			rs.ready[slot] = kept
		}
	}

	keptDep := u.dependents[:0]
	for _, d := range u.dependents {
		if d.uop.Flushed {
			continue
		}
		keptDep = append(keptDep, d)
	}
	u.dependents = keptDep

	keptWait := u.waiting[:0]
	for _, w := range u.waiting {
		if w.uop.Flushed {
			continue
		}
		keptWait = append(keptWait, w)
	}
	u.waiting = keptWait
}

// Reset discards every in-flight dispatch/issue data structure: ready
// queues, pending waiters, and the port allocator's load counts. Used for
// a full pipeline drain (idle-after-syscall, context switch) where
// discarding silently is correct because nothing downstream still
// references the affected uops, unlike PurgeFlushed which must pick
// flushed entries out of an otherwise-live pipeline.
func (u *Unit) Reset() {
	for _, rs := range u.stations {
		for slot := range rs.ready {
			rs.ready[slot] = nil
		}
		rs.currentSize = 0
	}
	u.waiting = nil
	u.dependents = nil
	u.allocator = NewPortAllocator(len(u.portToRS))
}

// RSStalls returns the count of cycles dispatch stalled due to an RS
// being full or its dispatch-rate budget exhausted.
func (u *Unit) RSStalls() uint64 { return u.rsStalls }

// FrontendStalls returns the count of cycles no port issued and no RS
// held any entries.
func (u *Unit) FrontendStalls() uint64 { return u.frontendStalls }

// BackendStalls returns the count of cycles no port issued despite some
// RS holding entries.
func (u *Unit) BackendStalls() uint64 { return u.backendStalls }

// PortBusyStalls returns the count of cycles a port's ready queue was
// non-empty but its downstream pipeline was stalled.
func (u *Unit) PortBusyStalls() uint64 { return u.portBusyStalls }

// RSOccupancy reports capacity-minus-currentSize per reservation station
// (free slots), mirroring DispatchIssueUnit::getRSSizes.
func (u *Unit) RSOccupancy() []int {
	sizes := make([]int, len(u.stations))
	for i, rs := range u.stations {
		sizes[i] = rs.capacity - rs.currentSize
	}
	return sizes
}
