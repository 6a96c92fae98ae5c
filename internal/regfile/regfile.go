// Package regfile implements the physical register file set: one typed
// file per isa.RegType, each sized independently by configuration. It is
// the leaf-most storage the core touches — the RAT hands out tags into
// it, the scoreboard tracks which of its slots hold a valid forwarded or
// committed value, and dispatch/writeback read and write it directly.
//
// Grounded on SimEng's registerFile.cc (a flat vector of RegisterValue
// indexed by tag, get/set only — no readiness tracking, that's the
// scoreboard's job) generalized to one vector per register type.
package regfile

import "github.com/jamestiotio/SimEng/internal/isa"

// Set is the physical register file: one []isa.RegisterValue per
// isa.RegType, sized per the Core.RegisterSet config counts.
type Set struct {
	files [isa.NumRegTypes][]isa.RegisterValue
}

// NewSet allocates a Set with counts[t] physical registers of type t. A
// zero count is valid and means the core's ISA does not use that file
// (e.g. RV64 carries no Matrix file).
func NewSet(counts [isa.NumRegTypes]int, width int) *Set {
	s := &Set{}
	for t, n := range counts {
		if n <= 0 {
			continue
		}
		file := make([]isa.RegisterValue, n)
		for i := range file {
			file[i] = isa.ZeroRegisterValue(width)
		}
		s.files[t] = file
	}
	return s
}

// Get returns the current value of r.
func (s *Set) Get(r isa.Register) isa.RegisterValue {
	return s.files[r.Type][r.Tag]
}

// Set stores value into r.
func (s *Set) Set(r isa.Register, value isa.RegisterValue) {
	s.files[r.Type][r.Tag] = value
}

// Count returns the number of physical registers of the given type.
func (s *Set) Count(t isa.RegType) int {
	return len(s.files[t])
}
