package decode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/SimEng/internal/decode"
	"github.com/jamestiotio/SimEng/internal/fetch"
	"github.com/jamestiotio/SimEng/internal/isa"
)

func alwaysALU(op fetch.MacroOp) decode.Insn {
	return decode.Insn{Op: "add", Group: isa.GroupInt}
}

func TestCrackEmitsExactlyOneUopPerMacroOp(t *testing.T) {
	u := decode.NewUnit(isa.NewPool(), decode.PassthroughSplitter{DecodeFunc: alwaysALU})

	uops, flush := u.Crack(fetch.MacroOp{Addr: 0x1000, Len: 4})
	require.Len(t, uops, 1)
	assert.Nil(t, flush)
	assert.Equal(t, uint64(0x1000), uops[0].Addr)
	assert.True(t, uops[0].Decoded)
}

func TestCrackAssignsSequentialInsnIDs(t *testing.T) {
	u := decode.NewUnit(isa.NewPool(), decode.PassthroughSplitter{DecodeFunc: alwaysALU})

	a, _ := u.Crack(fetch.MacroOp{Addr: 0x0})
	b, _ := u.Crack(fetch.MacroOp{Addr: 0x4})

	assert.Equal(t, uint64(0), a[0].InsnID)
	assert.Equal(t, uint64(1), b[0].InsnID)
}

func TestCrackFlagsObviouslyWrongUnconditionalBranchPrediction(t *testing.T) {
	unconditional := func(op fetch.MacroOp) decode.Insn {
		return decode.Insn{
			Op:                  "b",
			Group:               isa.GroupBranch,
			IsBranch:            true,
			UnconditionalDirect: true,
			StaticTarget:        0x2000,
		}
	}
	u := decode.NewUnit(isa.NewPool(), decode.PassthroughSplitter{DecodeFunc: unconditional})

	// Predictor said not-taken, but the branch is unconditional — decode
	// can tell this is wrong without waiting for execute.
	_, flush := u.Crack(fetch.MacroOp{Addr: 0x1000, Prediction: fetch.Prediction{Taken: false}})

	require.NotNil(t, flush)
	assert.Equal(t, uint64(0x2000), flush.Addr)
	assert.Equal(t, uint64(1), u.EarlyFlushes())
}

func TestCrackAcceptsCorrectlyPredictedUnconditionalBranch(t *testing.T) {
	unconditional := func(op fetch.MacroOp) decode.Insn {
		return decode.Insn{
			IsBranch:            true,
			UnconditionalDirect: true,
			StaticTarget:        0x2000,
		}
	}
	u := decode.NewUnit(isa.NewPool(), decode.PassthroughSplitter{DecodeFunc: unconditional})

	_, flush := u.Crack(fetch.MacroOp{Addr: 0x1000, Prediction: fetch.Prediction{Taken: true, Target: 0x2000}})

	assert.Nil(t, flush)
	assert.Equal(t, uint64(0), u.EarlyFlushes())
}
