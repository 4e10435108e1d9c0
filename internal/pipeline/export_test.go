package pipeline

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gdp-growth-pipeline/internal/config"
	"gdp-growth-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportRoundTrip(t *testing.T) {
	a := config.DefaultAnalysis()
	m := GenerateSynthetic(a.StartYear, a.EndYear, a.Economies, a.Seed)
	s := ComputeStatistics(m)

	em := NewExportManager("run-1", t.TempDir())
	statsResult, err := em.ExportStatistics(s)
	require.NoError(t, err)
	matrixResult, err := em.ExportMatrix(m)
	require.NoError(t, err)

	assert.True(t, statsResult.Success)
	assert.Equal(t, len(a.Economies), statsResult.RecordCount)
	assert.Equal(t, filepath.Join(em.OutputDir, StatisticsFile), statsResult.Path)
	assert.Equal(t, len(m.Years), matrixResult.RecordCount)
	assert.Len(t, em.Results, 2)

	readStats, err := ReadStatistics(statsResult.Path)
	require.NoError(t, err)
	assert.Equal(t, s, readStats)

	readMatrix, err := ReadMatrix(matrixResult.Path)
	require.NoError(t, err)
	assert.Equal(t, m, readMatrix)
}

func TestExportOverwrites(t *testing.T) {
	em := NewExportManager("run-1", t.TempDir())
	first := matrixOf(t, 2000, []string{"A"}, []float64{1, 2, 3})
	second := matrixOf(t, 2000, []string{"A"}, []float64{4})

	_, err := em.ExportMatrix(first)
	require.NoError(t, err)
	result, err := em.ExportMatrix(second)
	require.NoError(t, err)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, "Year,A\n2000,4.0\n", string(data))
}

func TestWriteMatrixCSVMissingValues(t *testing.T) {
	m := matrixOf(t, 2000, []string{"A", "B"},
		[]float64{1.5, nan},
		[]float64{-2, 0.25},
	)

	var buf bytes.Buffer
	require.NoError(t, WriteMatrixCSV(&buf, m))
	assert.Equal(t, "Year,A,B\n2000,1.5,-2.0\n2001,,0.25\n", buf.String())
}

func TestWriteStatisticsCSV(t *testing.T) {
	s := model.SummaryStats{
		{Country: "A", Mean: 2.5, Median: 2, StdDev: 0.71, Max: 3, Min: 2, BestYear: 2001, WorstYear: 2000, PositiveYears: 2},
		{Country: "Empty", Mean: math.NaN(), Median: math.NaN(), StdDev: math.NaN(), Max: math.NaN(), Min: math.NaN()},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStatisticsCSV(&buf, s))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(StatisticsHeader, ","), lines[0])
	assert.Equal(t, "A,2.5,2.0,0.71,3.0,2.0,2001,2000,2,0", lines[1])
	assert.Equal(t, "Empty,,,,,,,,0,0", lines[2])
}

func TestExportFailsOnUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	em := NewExportManager("run-1", blocker)
	result, err := em.ExportStatistics(model.SummaryStats{})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Contains(t, err.Error(), StatisticsFile)
}

func TestExportWorkbook(t *testing.T) {
	a := config.DefaultAnalysis()
	m := GenerateSynthetic(2018, 2021, a.Economies, a.Seed)
	m.Values[0][0] = math.NaN()
	s := ComputeStatistics(m)
	c := ComputeCorrelations(m)

	em := NewExportManager("run-1", t.TempDir())
	result, err := em.ExportWorkbook(m, s, c)
	require.NoError(t, err)

	f, err := excelize.OpenFile(result.Path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Statistics", "Growth Data", "Correlations"}, f.GetSheetList())

	header, err := f.GetCellValue("Statistics", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Average Growth (%)", header)

	first, err := f.GetCellValue("Statistics", "A2")
	require.NoError(t, err)
	assert.Equal(t, s[0].Country, first)

	missing, err := f.GetCellValue("Growth Data", "B2")
	require.NoError(t, err)
	assert.Empty(t, missing)

	year, err := f.GetCellValue("Growth Data", "A5")
	require.NoError(t, err)
	assert.Equal(t, "2021", year)

	diag, err := f.GetCellValue("Correlations", "C3")
	require.NoError(t, err)
	assert.Equal(t, "1", diag)
}
