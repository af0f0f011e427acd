package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkillWeightsTotal(t *testing.T) {
	w := SkillWeights{EC: 3, LT: 2}
	assert.Equal(t, 5, w.Total())

	assert.Equal(t, 0, SkillWeights{}.Total())

	full := SkillWeights{EC: 1, LT: 1, AP: 1, PR: 1, AC: 1, CT: 1, PM: 1, EI: 1, NP: 1, SM: 1}
	assert.Equal(t, 10, full.Total())
}

func TestSkillWeightsByCode(t *testing.T) {
	w := SkillWeights{EC: 4, SM: 7}
	m := w.ByCode()
	assert.Len(t, m, 10)
	assert.Equal(t, 4, m["EC"])
	assert.Equal(t, 7, m["SM"])
	assert.Equal(t, 0, m["NP"])
}

func TestSkillCatalogConsistency(t *testing.T) {
	assert.Len(t, SkillCodes, 10)
	for _, code := range SkillCodes {
		assert.Contains(t, SkillNames, code)
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0))
	assert.Equal(t, 1, TotalPages(1))
	assert.Equal(t, 1, TotalPages(10))
	assert.Equal(t, 2, TotalPages(11))
	assert.Equal(t, 2, TotalPages(15))
	assert.Equal(t, 2, TotalPages(20))
}

func TestListFilterValid(t *testing.T) {
	for _, f := range []ListFilter{FilterAll, FilterCurrent, FilterPrevious, FilterUpcoming} {
		assert.True(t, f.Valid())
	}
	assert.False(t, ListFilter("finished").Valid())
	assert.False(t, ListFilter("").Valid())
}
