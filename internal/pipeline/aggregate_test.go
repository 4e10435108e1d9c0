package pipeline

import (
	"math"
	"testing"

	"gdp-growth-pipeline/internal/config"
	"gdp-growth-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

// matrixOf builds a matrix from per-country series starting at startYear.
func matrixOf(t *testing.T, startYear int, countries []string, columns ...[]float64) *model.GrowthMatrix {
	t.Helper()
	require.Len(t, columns, len(countries))
	years := model.YearRange(startYear, startYear+len(columns[0])-1)
	m := model.NewGrowthMatrix(years, countries)
	for ci, col := range columns {
		require.Len(t, col, len(years))
		for yi, v := range col {
			m.Values[yi][ci] = v
		}
	}
	return m
}

func TestComputeStatistics(t *testing.T) {
	m := matrixOf(t, 2000, []string{"A", "B"},
		[]float64{1, 2, 3, -1},
		[]float64{5, 5, 0, 6},
	)

	s := ComputeStatistics(m)
	require.Len(t, s, 2)

	b := s[0]
	assert.Equal(t, "B", b.Country)
	assert.Equal(t, 4.0, b.Mean)
	assert.Equal(t, 5.0, b.Median)
	assert.Equal(t, 2.71, b.StdDev)
	assert.Equal(t, 6.0, b.Max)
	assert.Equal(t, 0.0, b.Min)
	assert.Equal(t, 2003, b.BestYear)
	assert.Equal(t, 2002, b.WorstYear)
	assert.Equal(t, 3, b.PositiveYears)
	assert.Equal(t, 0, b.NegativeYears)

	a := s[1]
	assert.Equal(t, "A", a.Country)
	assert.Equal(t, 1.25, a.Mean)
	assert.Equal(t, 1.5, a.Median)
	assert.Equal(t, 1.71, a.StdDev)
	assert.Equal(t, 2002, a.BestYear)
	assert.Equal(t, 2003, a.WorstYear)
	assert.Equal(t, 3, a.PositiveYears)
	assert.Equal(t, 1, a.NegativeYears)
}

func TestComputeStatisticsSkipsMissing(t *testing.T) {
	m := matrixOf(t, 2000, []string{"A", "Empty", "Single"},
		[]float64{nan, 2, nan, 4},
		[]float64{nan, nan, nan, nan},
		[]float64{nan, 3, nan, nan},
	)

	s := ComputeStatistics(m)
	require.Len(t, s, 3)

	assert.Equal(t, "A", s[0].Country)
	assert.Equal(t, 3.0, s[0].Mean)
	assert.Equal(t, 1.41, s[0].StdDev)
	assert.Equal(t, 2001, s[0].WorstYear)

	assert.Equal(t, "Single", s[1].Country)
	assert.Equal(t, 3.0, s[1].Mean)
	assert.True(t, math.IsNaN(s[1].StdDev), "one observation has no sample deviation")

	assert.Equal(t, "Empty", s[2].Country)
	assert.True(t, math.IsNaN(s[2].Mean))
	assert.Zero(t, s[2].PositiveYears)
}

func TestComputeStatisticsStableOnTies(t *testing.T) {
	m := matrixOf(t, 2000, []string{"First", "Second", "Third"},
		[]float64{1, 3},
		[]float64{2, 2},
		[]float64{5, 5},
	)

	s := ComputeStatistics(m)
	assert.Equal(t, "Third", s[0].Country)
	assert.Equal(t, "First", s[1].Country)
	assert.Equal(t, "Second", s[2].Country)
}

func TestComputeStatisticsFirstExtremeWins(t *testing.T) {
	m := matrixOf(t, 2000, []string{"A"}, []float64{4, 1, 4, 1})

	s := ComputeStatistics(m)
	assert.Equal(t, 2000, s[0].BestYear)
	assert.Equal(t, 2001, s[0].WorstYear)
}

func TestComputeStatisticsSortedByMean(t *testing.T) {
	a := config.DefaultAnalysis()
	s := ComputeStatistics(GenerateSynthetic(a.StartYear, a.EndYear, a.Economies, a.Seed))

	require.Len(t, s, len(a.Economies))
	for i := 1; i < len(s); i++ {
		assert.GreaterOrEqual(t, s[i-1].Mean, s[i].Mean)
	}
	assert.Equal(t, "China", s[0].Country)
}
