package carbon

import (
	"math"
	"strings"
)

// DefaultFactorKg is returned for ingredients missing from the table.
const DefaultFactorKg = 0.5

// Ingredient is a single recognized ingredient with its emission factor.
type Ingredient struct {
	Name     string  `json:"name"`
	CarbonKg float64 `json:"carbonKg"`
}

// Estimate is the response shape for both estimation paths. A non-empty
// Error marks a degraded result; the total is always the rounded sum of the
// ingredient factors.
type Estimate struct {
	Dish              string       `json:"dish"`
	EstimatedCarbonKg float64      `json:"estimatedCarbonKg"`
	Ingredients       []Ingredient `json:"ingredients"`
	Error             string       `json:"error,omitempty"`
}

// Fallback reports whether the estimate is a degraded placeholder rather
// than the outcome of a successful provider round trip.
func (e Estimate) Fallback() bool {
	return e.Error != ""
}

// Table maps lower-cased ingredient names to kg CO2 per typical serving.
// Immutable after construction; lookups never fail.
type Table struct {
	factors map[string]float64
}

// NewTable copies factors into an immutable table.
func NewTable(factors map[string]float64) *Table {
	m := make(map[string]float64, len(factors))
	for name, kg := range factors {
		m[strings.ToLower(strings.TrimSpace(name))] = kg
	}
	return &Table{factors: m}
}

// DefaultTable returns the builtin emission-factor set.
func DefaultTable() *Table {
	return NewTable(map[string]float64{
		"chicken":    2.5,
		"rice":       1.1,
		"beef":       6.0,
		"pork":       3.8,
		"lamb":       5.5,
		"tofu":       0.2,
		"cheese":     3.0,
		"milk":       0.6,
		"butter":     1.0,
		"oil":        0.4,
		"spices":     0.2,
		"onion":      0.05,
		"garlic":     0.03,
		"tomato":     0.1,
		"potato":     0.07,
		"egg":        0.5,
		"noodles":    0.9,
		"vegetables": 0.1,
		"beans":      0.3,
		"lentils":    0.2,
	})
}

// Lookup returns the emission factor for name, trimming and lower-casing
// before the match. Unknown ingredients get DefaultFactorKg.
func (t *Table) Lookup(name string) float64 {
	if kg, ok := t.factors[strings.ToLower(strings.TrimSpace(name))]; ok {
		return kg
	}
	return DefaultFactorKg
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	return len(t.factors)
}

// Round1 rounds to one decimal, half away from zero. Applied to every
// per-ingredient factor and to the total.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
