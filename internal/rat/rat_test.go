package rat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/SimEng/internal/isa"
	"github.com/jamestiotio/SimEng/internal/rat"
)

func smallConfig() rat.Config {
	var cfg rat.Config
	cfg.ArchCounts[isa.RegGeneral] = 4
	cfg.PhysCounts[isa.RegGeneral] = 6
	return cfg
}

func TestAllocateRewriteCommit(t *testing.T) {
	table := rat.NewTable(smallConfig())

	arch := isa.Register{Type: isa.RegGeneral, Tag: 1}
	phys, ok := table.Allocate(arch, 100)
	require.True(t, ok)
	assert.Equal(t, isa.RegGeneral, phys.Type)

	assert.Equal(t, phys, table.Rewrite(arch))

	table.Commit(arch, 100)
	assert.Equal(t, phys, table.Rewrite(arch))
}

func TestAllocateExhaustionStalls(t *testing.T) {
	table := rat.NewTable(smallConfig())
	arch := isa.Register{Type: isa.RegGeneral, Tag: 0}

	freeCount := table.FreeCount(isa.RegGeneral)
	for i := 0; i < freeCount; i++ {
		_, ok := table.Allocate(arch, uint64(i))
		require.True(t, ok)
	}

	_, ok := table.Allocate(arch, uint64(freeCount))
	assert.False(t, ok)
	assert.Equal(t, uint64(1), table.AllocationStalls(isa.RegGeneral))
}

func TestRewindRestoresPriorMapping(t *testing.T) {
	table := rat.NewTable(smallConfig())
	arch := isa.Register{Type: isa.RegGeneral, Tag: 2}

	before := table.Rewrite(arch)
	freeBefore := table.FreeCount(isa.RegGeneral)

	phys, ok := table.Allocate(arch, 7)
	require.True(t, ok)
	assert.NotEqual(t, before, phys)
	assert.Equal(t, phys, table.Rewrite(arch))

	table.Rewind(arch, 7)

	assert.Equal(t, before, table.Rewrite(arch))
	assert.Equal(t, freeBefore, table.FreeCount(isa.RegGeneral))
}
