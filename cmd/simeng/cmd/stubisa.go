package cmd

import (
	"github.com/jamestiotio/SimEng/internal/core"
	"github.com/jamestiotio/SimEng/internal/decode"
	"github.com/jamestiotio/SimEng/internal/fetch"
	"github.com/jamestiotio/SimEng/internal/isa"
)

// nopDecoder is a placeholder ISA backend: every fetched address decodes
// to a single no-operand, no-effect integer uop. Real ISA decode is an
// external collaborator this library deliberately does not provide
// (spec §1); this lets the CLI harness drive internal/core end to end
// without one.
type nopDecoder struct{}

func (nopDecoder) Decode(op fetch.MacroOp) decode.Insn {
	return decode.Insn{Group: isa.GroupInt, Op: "nop"}
}

// nopExceptionHandler never actually runs, since nopDecoder never raises
// an exception, but core.New requires one.
type nopExceptionHandler struct{}

func (nopExceptionHandler) Begin(uop *isa.Uop) {}

func (nopExceptionHandler) Step() (core.ExceptionOutcome, bool) {
	return core.ExceptionOutcome{Fatal: true}, true
}
