package carbon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup_CaseAndWhitespaceInsensitive(t *testing.T) {
	t.Parallel()

	table := DefaultTable()

	assert.Equal(t, 2.5, table.Lookup("chicken"))
	assert.Equal(t, 2.5, table.Lookup("Chicken"))
	assert.Equal(t, 2.5, table.Lookup("  CHICKEN  "))
	assert.Equal(t, 1.1, table.Lookup("rice"))
	assert.Equal(t, 0.03, table.Lookup("Garlic"))
}

func TestLookup_UnknownReturnsDefault(t *testing.T) {
	t.Parallel()

	table := DefaultTable()

	assert.Equal(t, DefaultFactorKg, table.Lookup("dragonfruit"))
	assert.Equal(t, DefaultFactorKg, table.Lookup(""))
	assert.Equal(t, DefaultFactorKg, table.Lookup("   "))
}

func TestNewTable_NormalizesKeys(t *testing.T) {
	t.Parallel()

	table := NewTable(map[string]float64{" Seaweed ": 0.02})

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 0.02, table.Lookup("seaweed"))
	assert.Equal(t, 0.02, table.Lookup("SEAWEED"))
}

func TestRound1(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want float64
	}{
		{0.0, 0.0},
		{0.04, 0.0},
		{0.05, 0.1},
		{1.14, 1.1},
		{1.16, 1.2},
		{1.25, 1.3},
		{3.99, 4.0},
		{4.0, 4.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round1(tt.in), "Round1(%v)", tt.in)
	}
}

func TestEstimate_Fallback(t *testing.T) {
	t.Parallel()

	assert.False(t, Estimate{Dish: "Pizza"}.Fallback())
	assert.True(t, Estimate{Dish: "Pizza", Error: "boom"}.Fallback())
}
