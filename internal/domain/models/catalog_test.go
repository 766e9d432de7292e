package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog(t *testing.T) {
	cat := Catalog()
	assert.Len(t, cat, 17)

	seen := map[string]bool{}
	for _, info := range cat {
		assert.NotEmpty(t, info.Unit, info.Code)
		assert.NotEmpty(t, info.Description, info.Code)
		assert.False(t, seen[info.Code], "duplicate %s", info.Code)
		seen[info.Code] = true
	}

	// Callers cannot mutate the shared table.
	cat[0].Code = "changed"
	assert.Equal(t, IndicatorSaleRentPercent, Catalog()[0].Code)

	info, ok := LookupIndicator(IndicatorInvestmentGrade)
	assert.True(t, ok)
	assert.Equal(t, "r_g", info.Code)
	_, ok = LookupIndicator("nope")
	assert.False(t, ok)
}

func TestAdminLevels(t *testing.T) {
	levels := AdminLevels()
	assert.Len(t, levels, 6)
	assert.Equal(t, AdminLevelCountry, levels[0].Code)
	assert.Equal(t, "country", levels[0].Name)
	assert.Equal(t, "neighborhood", AdminLevelNeighborhood.String())
	assert.Equal(t, AdminLevel(5), AdminLevelNeighborhood)
}
