// Package lsq implements the age-ordered load/store queue: speculative
// load issue and store/load conflict disambiguation, in-order store
// commit with violation detection, and per-cycle MMU request scheduling
// with completion draining into the writeback completion slots.
//
// Grounded directly on
// original_source/src/lib/pipeline/LoadStoreQueue.cc — method names and
// bookkeeping (conflictionMap, requestedLoads, per-cycle request
// buckets, the load/store tie-break in Tick) follow it closely,
// translated from its combined/split capacity C++ model into a Go
// package built on internal/isa.Uop.
package lsq

import "github.com/jamestiotio/SimEng/internal/isa"

// Requester is the narrow MMU-facing surface the queue needs; satisfied
// by *mem.MMU. Returns false if the request was rejected for bandwidth
// and must be retried next cycle.
type Requester interface {
	RequestRead(uop *isa.Uop) bool
	RequestWrite(uop *isa.Uop) bool
}

// CompletionSlot is one writeback completion slot the queue drains
// finished memory uops into.
type CompletionSlot interface {
	Stalled() bool
	Deliver(uop *isa.Uop)
}

// Forwarder publishes a completed memory uop's results.
type Forwarder interface {
	Forward(uop *isa.Uop)
}

func overlaps(a, b isa.MemTarget) bool {
	return a.Overlaps(b)
}

type storeEntry struct {
	uop          *isa.Uop
	data         isa.RegisterValue
	dataSupplied bool
}

// Queue is the load/store queue for one core.
type Queue struct {
	combined     bool
	maxCombined  int
	maxLoad      int
	maxStore     int
	loadLatency  uint64

	loadQueue  []*isa.Uop
	storeQueue []*storeEntry

	conflictionMap map[uint64][]*isa.Uop
	requestLoadAt  map[uint64][]*isa.Uop
	requestStoreAt map[uint64][]*isa.Uop
	requestedLoads map[uint64]*isa.Uop

	completed []*isa.Uop

	violatingLoad *isa.Uop

	tick uint64

	loadViolations uint64
}

// Config selects combined vs. split capacity, per spec §4.4.
type Config struct {
	Combined     bool
	Capacity     int // used when Combined
	LoadCapacity int // used when !Combined
	StoreCapacity int
	LoadLatency  uint64
}

// NewQueue builds a Queue per cfg.
func NewQueue(cfg Config) *Queue {
	return &Queue{
		combined:       cfg.Combined,
		maxCombined:    cfg.Capacity,
		maxLoad:        cfg.LoadCapacity,
		maxStore:       cfg.StoreCapacity,
		loadLatency:    cfg.LoadLatency,
		conflictionMap: make(map[uint64][]*isa.Uop),
		requestLoadAt:  make(map[uint64][]*isa.Uop),
		requestStoreAt: make(map[uint64][]*isa.Uop),
		requestedLoads: make(map[uint64]*isa.Uop),
	}
}

// LoadQueueSpace returns the number of free load-queue slots.
func (q *Queue) LoadQueueSpace() int {
	if q.combined {
		return q.maxCombined - len(q.loadQueue) - len(q.storeQueue)
	}
	return q.maxLoad - len(q.loadQueue)
}

// StoreQueueSpace returns the number of free store-queue slots.
func (q *Queue) StoreQueueSpace() int {
	if q.combined {
		return q.maxCombined - len(q.loadQueue) - len(q.storeQueue)
	}
	return q.maxStore - len(q.storeQueue)
}

// AddLoad admits a load uop at the tail of the load queue, at rename.
func (q *Queue) AddLoad(uop *isa.Uop) {
	q.loadQueue = append(q.loadQueue, uop)
}

// AddStore admits a store uop at the tail of the store queue, at rename.
func (q *Queue) AddStore(uop *isa.Uop) {
	q.storeQueue = append(q.storeQueue, &storeEntry{uop: uop})
}

// StartLoad is called once a load's address has been computed. If it
// has no memory targets it executes directly; otherwise it is checked
// against every older store for an address conflict (newest-to-oldest),
// deferred behind the first conflicting store if found, or else
// scheduled to request memory at tick+loadLatency.
func (q *Queue) StartLoad(uop *isa.Uop) {
	if len(uop.MemTargets) == 0 {
		if uop.Execute != nil {
			uop.Execute(uop)
		}
		uop.Executed = true
		q.completed = append(q.completed, uop)
		return
	}

	for i := len(q.storeQueue) - 1; i >= 0; i-- {
		store := q.storeQueue[i].uop
		if store.SeqID >= uop.SeqID {
			continue
		}
		if targetsOverlap(store.MemTargets, uop.MemTargets) {
			q.conflictionMap[store.SeqID] = append(q.conflictionMap[store.SeqID], uop)
			return
		}
	}

	q.requestLoadAt[q.tick+q.loadLatency] = append(q.requestLoadAt[q.tick+q.loadLatency], uop)
	q.requestedLoads[uop.SeqID] = uop
}

func targetsOverlap(a, b []isa.MemTarget) bool {
	for _, ta := range a {
		for _, tb := range b {
			if overlaps(ta, tb) {
				return true
			}
		}
	}
	return false
}

// SupplyStoreData matches a store-data uop to its store-address entry by
// instruction id, and records the data to be written at commit.
func (q *Queue) SupplyStoreData(uop *isa.Uop) {
	if !uop.IsStoreData {
		return
	}
	for _, entry := range q.storeQueue {
		if entry.uop.InsnID == uop.InsnID {
			entry.data = uop.StoreData
			entry.dataSupplied = true
			return
		}
	}
}

// StartStore is called when the store at the head of the ROB becomes
// commit-ready: it attaches the previously supplied data and schedules
// the write request for this tick.
func (q *Queue) StartStore(uop *isa.Uop) {
	if len(uop.MemTargets) == 0 {
		return
	}
	uop.CommitReady = false
	q.requestStoreAt[q.tick] = append(q.requestStoreAt[q.tick], uop)
}

// CommitStore pops the head store, checking every load that has already
// requested memory (other than the store's own sequence id) for an
// address conflict, flagging a memory-order violation on the oldest
// such load, and releasing any
// loads that were parked behind this store in the confliction map.
// Returns true if a violation was detected.
func (q *Queue) CommitStore(uop *isa.Uop) bool {
	if len(q.storeQueue) == 0 {
		panic("lsq: commitStore on empty store queue")
	}
	if q.storeQueue[0].uop.SeqID != uop.SeqID {
		panic("lsq: commitStore uop not at head of store queue")
	}

	if len(uop.MemTargets) == 0 {
		q.storeQueue = q.storeQueue[1:]
		return false
	}

	q.violatingLoad = nil
	for _, load := range q.requestedLoads {
		if q.violatingLoad != nil && load.SeqID > q.violatingLoad.SeqID {
			continue
		}
		if load.SeqID == uop.SeqID {
			continue
		}
		if targetsOverlap(uop.MemTargets, load.MemTargets) {
			q.violatingLoad = load
		}
	}
	if q.violatingLoad != nil {
		q.loadViolations++
	}

	if waiters, ok := q.conflictionMap[uop.SeqID]; ok {
		for _, load := range waiters {
			at := q.tick + 1 + q.loadLatency
			q.requestLoadAt[at] = append(q.requestLoadAt[at], load)
			q.requestedLoads[load.SeqID] = load
		}
		delete(q.conflictionMap, uop.SeqID)
	}

	q.storeQueue = q.storeQueue[1:]

	return q.violatingLoad != nil
}

// ViolatingLoad returns the load flagged by the most recent CommitStore
// call, or nil.
func (q *Queue) ViolatingLoad() *isa.Uop { return q.violatingLoad }

// LoadViolations returns the running count of detected memory-order
// violations (spec §6's lsq.loadViolations stat).
func (q *Queue) LoadViolations() uint64 { return q.loadViolations }

// CommitLoad pops the head load, asserting it matches uop, and drops its
// requestedLoads bookkeeping entry.
func (q *Queue) CommitLoad(uop *isa.Uop) {
	if len(q.loadQueue) == 0 {
		panic("lsq: commitLoad on empty load queue")
	}
	if q.loadQueue[0].SeqID != uop.SeqID {
		panic("lsq: commitLoad uop not at head of load queue")
	}
	delete(q.requestedLoads, uop.SeqID)
	q.loadQueue = q.loadQueue[1:]
}

// PurgeFlushed removes flushed entries from every queue and bookkeeping
// structure, per LoadStoreQueue::purgeFlushed.
func (q *Queue) PurgeFlushed() {
	keptLoads := q.loadQueue[:0]
	for _, l := range q.loadQueue {
		if l.Flushed {
			delete(q.requestedLoads, l.SeqID)
		} else {
			keptLoads = append(keptLoads, l)
		}
	}
	q.loadQueue = keptLoads

	keptStores := q.storeQueue[:0]
	for _, s := range q.storeQueue {
		if s.uop.Flushed {
			delete(q.conflictionMap, s.uop.SeqID)
		} else {
			keptStores = append(keptStores, s)
		}
	}
	q.storeQueue = keptStores

	for seq, waiters := range q.conflictionMap {
		kept := waiters[:0]
		for _, l := range waiters {
			if !l.Flushed {
				kept = append(kept, l)
			}
		}
		if len(kept) == 0 {
			delete(q.conflictionMap, seq)
		} else {
			q.conflictionMap[seq] = kept
		}
	}

	for t, reqs := range q.requestLoadAt {
		kept := reqs[:0]
		for _, l := range reqs {
			if !l.Flushed {
				kept = append(kept, l)
			}
		}
		if len(kept) == 0 {
			delete(q.requestLoadAt, t)
		} else {
			q.requestLoadAt[t] = kept
		}
	}

	for t, reqs := range q.requestStoreAt {
		kept := reqs[:0]
		for _, s := range reqs {
			if !s.Flushed {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(q.requestStoreAt, t)
		} else {
			q.requestStoreAt[t] = kept
		}
	}
}

// Tick schedules buffered read/write requests against the MMU (oldest
// bucket first, store wins exact ties), drains completed load
// responses by invoking each uop's Execute and forwarding results, and
// drains completedRequests into the given completion slots in order,
// skipping stalled slots.
func (q *Queue) Tick(mmu Requester, slots []CompletionSlot, forward Forwarder) {
	q.tick++

	q.scheduleRequests(mmu)
	q.drainCompletedLoads()
	q.deliverCompletions(slots, forward)
}

func (q *Queue) scheduleRequests(mmu Requester) {
	loadExceeded, storeExceeded := false, false

	for len(q.requestLoadAt) > 0 || len(q.requestStoreAt) > 0 {
		loadTick, haveLoad := earliestTick(q.requestLoadAt)
		storeTick, haveStore := earliestTick(q.requestStoreAt)

		haveLoad = haveLoad && !loadExceeded
		haveStore = haveStore && !storeExceeded

		var chooseLoad bool
		switch {
		case haveLoad && haveStore:
			chooseLoad = loadTick < storeTick
		case haveLoad:
			chooseLoad = true
		case haveStore:
			chooseLoad = false
		default:
			return
		}

		bucketTick := storeTick
		bucket := q.requestStoreAt
		if chooseLoad {
			bucketTick = loadTick
			bucket = q.requestLoadAt
		}
		if bucketTick > q.tick {
			return
		}

		reqs := bucket[bucketTick]
		remaining := reqs[:0]
		for i, uop := range reqs {
			var accepted bool
			if chooseLoad {
				accepted = mmu.RequestRead(uop)
			} else {
				accepted = mmu.RequestWrite(uop)
			}
			if !accepted {
				if chooseLoad {
					loadExceeded = true
				} else {
					storeExceeded = true
				}
				remaining = append(remaining, reqs[i:]...)
				break
			}
		}

		if len(remaining) == 0 {
			delete(bucket, bucketTick)
		} else {
			bucket[bucketTick] = remaining
		}
	}
}

func earliestTick(m map[uint64][]*isa.Uop) (uint64, bool) {
	first := true
	var best uint64
	for t := range m {
		if first || t < best {
			best = t
			first = false
		}
	}
	return best, !first
}

func (q *Queue) drainCompletedLoads() {
	for _, uop := range q.requestedLoads {
		if uop.PendingResult && !uop.Executed {
			if uop.Execute != nil {
				uop.Execute(uop)
			}
			uop.Executed = true
			if uop.IsStoreData {
				q.SupplyStoreData(uop)
			}
			q.completed = append(q.completed, uop)
		}
	}
}

func (q *Queue) deliverCompletions(slots []CompletionSlot, forward Forwarder) {
	count := 0
	for len(q.completed) > 0 && count < len(slots) {
		if slots[count].Stalled() {
			count++
			continue
		}

		uop := q.completed[0]

		if uop.Flushed {
			q.completed = q.completed[1:]
			continue
		}
		if uop.IsLoad && !uop.Executed {
			break
		}

		forward.Forward(uop)
		slots[count].Deliver(uop)
		q.completed = q.completed[1:]
		count++
	}
}
