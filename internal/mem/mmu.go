package mem

import "github.com/jamestiotio/SimEng/internal/isa"

// pendingAccess is an in-flight translation/access the MMU is still
// working on.
type pendingAccess struct {
	uop    *isa.Uop
	readyAt uint64
}

// Config parameterizes the fake MMU's bandwidth/latency model.
type Config struct {
	MaxInflight        int
	BandwidthPerCycle  int
	TranslationLatency uint64
}

// MMU is a fake memory management unit sufficient to drive the core's
// load/store queue end to end: it enforces a bounded number of
// in-flight accesses and a fixed per-access latency, without modeling
// any actual cache hierarchy, page table, or TLB (spec §1 non-goal —
// the real MMU is an external collaborator).
//
// Bandwidth/rejection bookkeeping is grounded on
// sarchlab-akita/mem/vm/mmu/mmu.go's inflight-request accounting,
// re-expressed against this package's own packet/connection types
// rather than the teacher's sim/modeling+sim/timing generation (which
// this module does not carry — see DESIGN.md).
type MMU struct {
	name string

	cfg      Config
	inflight []pendingAccess
	tick     uint64

	budgetCycle uint64
	accepted    int

	rejectedReads  uint64
	rejectedWrites uint64
}

// NewMMU builds a fake MMU with the given bandwidth/latency model.
func NewMMU(name string, cfg Config) *MMU {
	return &MMU{name: name, cfg: cfg}
}

// Name returns the MMU's component name.
func (m *MMU) Name() string { return m.name }

// admit reports whether one more access can start this cycle, against
// both the total-outstanding cap (MaxInflight) and the per-cycle accept
// budget (BandwidthPerCycle; internal/core fills it from the LSQ memory
// interface's load bandwidth plus store bandwidth).
// A zero BandwidthPerCycle leaves the per-cycle budget unbounded, so
// MaxInflight alone still governs callers that never configure it.
func (m *MMU) admit() bool {
	if m.budgetCycle != m.tick {
		m.budgetCycle = m.tick
		m.accepted = 0
	}

	if len(m.inflight) >= m.cfg.MaxInflight {
		return false
	}
	if m.cfg.BandwidthPerCycle > 0 && m.accepted >= m.cfg.BandwidthPerCycle {
		return false
	}

	m.accepted++
	return true
}

// RequestRead attempts to start a load's translation/access. Returns
// false if the MMU is saturated, in which case the caller (the LSQ)
// must retry on a later cycle. On acceptance, uop.PendingResult is set
// once the fixed translation latency elapses.
func (m *MMU) RequestRead(uop *isa.Uop) bool {
	if !m.admit() {
		m.rejectedReads++
		return false
	}

	m.inflight = append(m.inflight, pendingAccess{
		uop:     uop,
		readyAt: m.tick + m.cfg.TranslationLatency,
	})
	return true
}

// RequestWrite attempts to start a store's translation/access. Writes
// need no response payload — the LSQ only needs to know whether the
// MMU accepted the request this cycle.
func (m *MMU) RequestWrite(uop *isa.Uop) bool {
	if !m.admit() {
		m.rejectedWrites++
		return false
	}

	m.inflight = append(m.inflight, pendingAccess{
		uop:     uop,
		readyAt: m.tick + m.cfg.TranslationLatency,
	})
	return true
}

// Tick advances the MMU by one cycle, marking any access whose latency
// has elapsed as having its data assembled. Returns true if any access
// completed this cycle (Ticker contract).
func (m *MMU) Tick() bool {
	m.tick++

	progressed := false
	remaining := m.inflight[:0]
	for _, a := range m.inflight {
		if a.readyAt <= m.tick && !a.uop.Flushed {
			a.uop.PendingResult = true
			progressed = true
			continue
		}
		if a.uop.Flushed {
			continue
		}
		remaining = append(remaining, a)
	}
	m.inflight = remaining

	return progressed
}

// RejectedReads returns how many read requests were refused for lack
// of bandwidth.
func (m *MMU) RejectedReads() uint64 { return m.rejectedReads }

// RejectedWrites returns how many write requests were refused for lack
// of bandwidth.
func (m *MMU) RejectedWrites() uint64 { return m.rejectedWrites }

// Inflight returns the number of accesses still outstanding.
func (m *MMU) Inflight() int { return len(m.inflight) }
