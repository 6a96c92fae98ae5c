// Package corelog adapts internal/core's hook events onto the teacher's
// own log-hook idiom (internal/akita/sim.LogHook/LogHookBase), so a
// caller wires up observability with AcceptHook the same way any other
// akita component does, rather than a bespoke internal/core-specific
// logging API.
package corelog

import (
	"log"

	"github.com/jamestiotio/SimEng/internal/akita/sim"
	"github.com/jamestiotio/SimEng/internal/core"
)

// Hook logs every flush, exception, and status-change event a *core.Core
// invokes its registered hooks with, through an embedded
// sim.LogHookBase the same way the teacher's own log hooks do.
type Hook struct {
	sim.LogHookBase
}

// NewHook builds a Hook writing through logger.
func NewHook(logger *log.Logger) *Hook {
	return &Hook{LogHookBase: sim.LogHookBase{Logger: logger}}
}

// Func implements sim.Hook.
func (h *Hook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case core.HookPosFlush:
		h.Printf("flush: keep=%v target=%v", ctx.Item, ctx.Detail)
	case core.HookPosException:
		h.Printf("exception: kind=%v addr=%#x", ctx.Item, ctx.Detail)
	case core.HookPosStatusChange:
		h.Printf("status: %v -> %v", ctx.Detail, ctx.Item)
	}
}

// StatsHook accumulates flush and exception counts from the same hook
// stream, for a caller that wants running totals without re-deriving
// them from *core.Core.Stats() on every event.
type StatsHook struct {
	Flushes    uint64
	Exceptions uint64
}

// Func implements sim.Hook.
func (h *StatsHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case core.HookPosFlush:
		h.Flushes++
	case core.HookPosException:
		h.Exceptions++
	}
}
