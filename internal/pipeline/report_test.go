package pipeline

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"gdp-growth-pipeline/internal/config"
	"gdp-growth-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticReport(t *testing.T, start, end int) Report {
	t.Helper()
	a := config.DefaultAnalysis()
	m := GenerateSynthetic(start, end, a.Economies, a.Seed)
	return Report{
		Matrix:       m,
		Stats:        ComputeStatistics(m),
		Correlations: ComputeCorrelations(m),
		CrisisYears:  a.CrisisYears,
		OutputDir:    "output",
	}
}

func TestReportSections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, syntheticReport(t, 2000, 2023).Write(&buf))
	out := buf.String()

	for _, want := range []string{
		"GDP GROWTH YEAR-OVER-YEAR ANALYSIS REPORT",
		"Major World Economies (2000-2023)",
		"📊 SUMMARY STATISTICS",
		"Average Growth (%)",
		"🏆 KEY FINDINGS",
		"1. HIGHEST AVERAGE GROWTH:",
		"2. MOST VOLATILE ECONOMIES:",
		"3. CRISIS IMPACT ANALYSIS:",
		"2009 (Global Financial Crisis):",
		"2020 (COVID-19 Pandemic):",
		"      - Italy: -7.5%",
		"4. CORRELATION INSIGHTS:",
		"📈 YEAR-BY-YEAR DATA",
		"Analysis complete. Visualizations saved to output/ directory.",
	} {
		assert.Contains(t, out, want)
	}

	// top three by mean, then a blank line before the next finding
	highest := out[strings.Index(out, "1. HIGHEST AVERAGE GROWTH:"):strings.Index(out, "2. MOST VOLATILE")]
	assert.Equal(t, 3, strings.Count(highest, "% average annual growth"))
	assert.Contains(t, highest, "   1. China: ")

	insights := out[strings.Index(out, "4. CORRELATION INSIGHTS:"):strings.Index(out, "📈")]
	assert.Equal(t, 5, strings.Count(insights, "      - "))
}

func TestReportSkipsCrisisOutsideWindow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, syntheticReport(t, 2010, 2019).Write(&buf))
	out := buf.String()

	assert.Contains(t, out, "3. CRISIS IMPACT ANALYSIS:")
	assert.NotContains(t, out, "2009 (")
	assert.NotContains(t, out, "2020 (")
}

func TestReportOnlyPandemicInWindow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, syntheticReport(t, 2015, 2023).Write(&buf))
	out := buf.String()

	assert.NotContains(t, out, "2009 (Global Financial Crisis)")
	assert.Contains(t, out, "2020 (COVID-19 Pandemic):")
}

func TestTopGrowthAndVolatility(t *testing.T) {
	s := model.SummaryStats{
		{Country: "A", Mean: 1, StdDev: 3},
		{Country: "B", Mean: 5, StdDev: math.NaN()},
		{Country: "C", Mean: 3, StdDev: 1},
		{Country: "D", Mean: math.NaN(), StdDev: 2},
	}

	assert.Equal(t, []CountryValue{{"B", 5}, {"C", 3}}, TopGrowth(s, 2))
	assert.Equal(t, []CountryValue{{"A", 3}, {"D", 2}, {"C", 1}}, MostVolatile(s, 5))
}

func TestCrisisRanking(t *testing.T) {
	m := matrixOf(t, 2008, []string{"A", "B", "C", "D"},
		[]float64{1, -2},
		[]float64{1, -5},
		[]float64{1, nan},
		[]float64{1, 0.5},
	)

	ranking, ok := CrisisRanking(m, 2009, 3)
	require.True(t, ok)
	assert.Equal(t, []CountryValue{{"B", -5}, {"A", -2}, {"D", 0.5}}, ranking)

	_, ok = CrisisRanking(m, 2020, 3)
	assert.False(t, ok)
}

func TestTopCorrelatedPairs(t *testing.T) {
	c := &model.CorrelationMatrix{
		Countries: []string{"A", "B", "C", "D"},
		Values: [][]float64{
			{1, 0.5, -0.9, math.NaN()},
			{0.5, 1, 0.9, 0.1},
			{-0.9, 0.9, 1, 0.5},
			{math.NaN(), 0.1, 0.5, 1},
		},
	}

	top := TopCorrelatedPairs(c, 6)
	require.Len(t, top, 6)
	assert.Equal(t, CorrelatedPair{"A", "C", -0.9}, top[0])
	assert.Equal(t, CorrelatedPair{"B", "C", 0.9}, top[1])
	assert.Equal(t, CorrelatedPair{"A", "B", 0.5}, top[2])
	assert.Equal(t, CorrelatedPair{"C", "D", 0.5}, top[3])
	assert.Equal(t, CorrelatedPair{"B", "D", 0.1}, top[4])
	assert.True(t, math.IsNaN(top[5].Correlation))
}
