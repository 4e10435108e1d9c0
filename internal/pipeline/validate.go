package pipeline

import (
	"fmt"
	"math"

	"gdp-growth-pipeline/internal/model"
)

// ValidateMatrix checks the structural invariants every stage relies on:
// a strictly increasing contiguous year index, unique country labels and
// finite-or-missing values.
func ValidateMatrix(m *model.GrowthMatrix) error {
	if m == nil {
		return fmt.Errorf("matrix is nil")
	}
	if len(m.Years) == 0 {
		return fmt.Errorf("matrix has no years")
	}
	if len(m.Countries) == 0 {
		return fmt.Errorf("matrix has no countries")
	}
	for i := 1; i < len(m.Years); i++ {
		if m.Years[i] != m.Years[i-1]+1 {
			return fmt.Errorf("year index not contiguous at %d -> %d", m.Years[i-1], m.Years[i])
		}
	}

	seen := make(map[string]bool, len(m.Countries))
	for _, c := range m.Countries {
		if seen[c] {
			return fmt.Errorf("duplicate country column %q", c)
		}
		seen[c] = true
	}

	if len(m.Values) != len(m.Years) {
		return fmt.Errorf("matrix has %d rows for %d years", len(m.Values), len(m.Years))
	}
	for yi, row := range m.Values {
		if len(row) != len(m.Countries) {
			return fmt.Errorf("row %d has %d values for %d countries", m.Years[yi], len(row), len(m.Countries))
		}
		for ci, v := range row {
			if math.IsInf(v, 0) {
				return fmt.Errorf("infinite value for %s in %d", m.Countries[ci], m.Years[yi])
			}
		}
	}
	return nil
}
