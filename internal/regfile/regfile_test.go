package regfile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamestiotio/SimEng/internal/isa"
	"github.com/jamestiotio/SimEng/internal/regfile"
)

func counts(general int) [isa.NumRegTypes]int {
	var c [isa.NumRegTypes]int
	c[isa.RegGeneral] = general
	return c
}

func TestNewSetZeroesUnusedFiles(t *testing.T) {
	s := regfile.NewSet(counts(4), 8)

	assert.Equal(t, 4, s.Count(isa.RegGeneral))
	assert.Equal(t, 0, s.Count(isa.RegMatrix))
}

func TestGetSetRoundTrip(t *testing.T) {
	s := regfile.NewSet(counts(4), 8)
	r := isa.Register{Type: isa.RegGeneral, Tag: 2}

	v := isa.RegisterValue{Bytes: []byte{1, 2, 3, 4, 5, 6, 7, 8}, Valid: true}
	s.Set(r, v)

	got := s.Get(r)
	assert.True(t, got.Valid)
	assert.Equal(t, v.Bytes, got.Bytes)
}

func TestFreshRegistersAreInvalid(t *testing.T) {
	s := regfile.NewSet(counts(2), 8)
	r := isa.Register{Type: isa.RegGeneral, Tag: 0}

	assert.False(t, s.Get(r).Valid)
}
