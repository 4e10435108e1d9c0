package pipeline

import (
	"math"

	"gdp-growth-pipeline/internal/model"

	"gonum.org/v1/gonum/stat"
)

// ComputeCorrelations returns pairwise Pearson coefficients between
// countries, using only years where both values are present. Pairs with
// fewer than two such years, or where either side has no variance, are NaN.
func ComputeCorrelations(m *model.GrowthMatrix) *model.CorrelationMatrix {
	n := len(m.Countries)
	cols := make([][]float64, n)
	for ci := range cols {
		cols[ci] = m.Column(ci)
	}

	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r := pairwiseCorrelation(cols[i], cols[j])
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			values[i][j] = r
			values[j][i] = r
		}
	}

	return &model.CorrelationMatrix{
		Countries: append([]string(nil), m.Countries...),
		Values:    values,
	}
}

func pairwiseCorrelation(a, b []float64) float64 {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(a))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	if len(x) < 2 || constant(x) || constant(y) {
		return math.NaN()
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return r
	}
	return round(math.Max(-1, math.Min(1, r)), 3)
}

func constant(xs []float64) bool {
	for _, v := range xs[1:] {
		if v != xs[0] {
			return false
		}
	}
	return true
}

// CorrelatedPair is one off-diagonal entry of a correlation matrix.
type CorrelatedPair struct {
	A, B        string
	Correlation float64
}

// Pairs lists the upper triangle in row-major order.
func Pairs(c *model.CorrelationMatrix) []CorrelatedPair {
	var out []CorrelatedPair
	for i := range c.Countries {
		for j := i + 1; j < len(c.Countries); j++ {
			out = append(out, CorrelatedPair{A: c.Countries[i], B: c.Countries[j], Correlation: c.Values[i][j]})
		}
	}
	return out
}
