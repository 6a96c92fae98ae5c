package core

import "github.com/jamestiotio/SimEng/internal/isa"

// RegisterWrite is one register update an exception outcome applies to
// architectural state, e.g. a syscall's return value.
type RegisterWrite struct {
	Reg   isa.Register
	Value isa.RegisterValue
}

// ExceptionOutcome is the result of fully resolving a raised exception
// (spec §7): either the core halts, or execution resumes at TargetPC
// with StateChange applied first.
type ExceptionOutcome struct {
	Fatal            bool
	TargetPC         uint64
	StateChange      []RegisterWrite
	IdleAfterSyscall bool
}

// ExceptionHandler resolves a raised exception, possibly over several
// cycles — a syscall might need to wait on a simulated filesystem
// response, for instance. Grounded on
// Core::handleException/processException's
// registerException-then-repeatedly-tick-until-ready contract: Begin is
// called exactly once per exception, when the ROB first surfaces it;
// Step is then polled once per cycle until it reports ready.
type ExceptionHandler interface {
	Begin(uop *isa.Uop)
	Step() (outcome ExceptionOutcome, ready bool)
}
