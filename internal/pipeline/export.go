package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gdp-growth-pipeline/internal/model"

	"github.com/xuri/excelize/v2"
)

// Export file names.
const (
	StatisticsFile = "gdp_statistics.csv"
	GrowthDataFile = "gdp_growth_data.csv"
	WorkbookFile   = "gdp_analysis.xlsx"
)

// StatisticsHeader is the column layout of the statistics export.
var StatisticsHeader = []string{
	"Country",
	"Average Growth (%)",
	"Median Growth (%)",
	"Std Deviation",
	"Max Growth (%)",
	"Min Growth (%)",
	"Best Year",
	"Worst Year",
	"Positive Years",
	"Negative Years",
}

// ExportManager writes the tabular artifacts of one run into its output directory.
type ExportManager struct {
	RunID     string
	OutputDir string
	Results   []model.ExportResult
}

func NewExportManager(runID, outputDir string) *ExportManager {
	return &ExportManager{RunID: runID, OutputDir: outputDir}
}

// ExportStatistics writes gdp_statistics.csv, replacing any previous file.
func (em *ExportManager) ExportStatistics(s model.SummaryStats) (model.ExportResult, error) {
	path := filepath.Join(em.OutputDir, StatisticsFile)
	err := writeFile(path, func(w io.Writer) error { return WriteStatisticsCSV(w, s) })
	return em.record("csv", path, len(s), err)
}

// ExportMatrix writes gdp_growth_data.csv, replacing any previous file.
func (em *ExportManager) ExportMatrix(m *model.GrowthMatrix) (model.ExportResult, error) {
	path := filepath.Join(em.OutputDir, GrowthDataFile)
	err := writeFile(path, func(w io.Writer) error { return WriteMatrixCSV(w, m) })
	return em.record("csv", path, len(m.Years), err)
}

// ExportWorkbook writes statistics, growth data and correlations as sheets of one xlsx file.
func (em *ExportManager) ExportWorkbook(m *model.GrowthMatrix, s model.SummaryStats, c *model.CorrelationMatrix) (model.ExportResult, error) {
	path := filepath.Join(em.OutputDir, WorkbookFile)
	if err := os.MkdirAll(em.OutputDir, 0755); err != nil {
		return em.record("xlsx", path, 0, err)
	}
	err := writeWorkbook(path, m, s, c)
	return em.record("xlsx", path, len(s)+len(m.Years), err)
}

func (em *ExportManager) record(kind, path string, n int, err error) (model.ExportResult, error) {
	result := model.ExportResult{
		Type:        kind,
		Path:        path,
		RecordCount: n,
		Success:     err == nil,
		ExportedAt:  time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
		err = fmt.Errorf("failed to export %s: %w", filepath.Base(path), err)
	}
	em.Results = append(em.Results, result)
	return result, err
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ------------------- CSV -------------------

// WriteStatisticsCSV writes one row per country in ranking order.
func WriteStatisticsCSV(w io.Writer, s model.SummaryStats) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(StatisticsHeader); err != nil {
		return err
	}
	for _, cs := range s {
		if err := writer.Write(statisticsRow(cs, formatCSVFloat)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMatrixCSV writes the matrix with a Year column followed by one column per country.
func WriteMatrixCSV(w io.Writer, m *model.GrowthMatrix) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{"Year"}, m.Countries...)); err != nil {
		return err
	}
	for yi, year := range m.Years {
		row := make([]string, 0, len(m.Countries)+1)
		row = append(row, strconv.Itoa(year))
		for _, v := range m.Values[yi] {
			row = append(row, formatCSVFloat(v))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func statisticsRow(cs model.CountryStats, format func(float64) string) []string {
	year := func(y int) string {
		if math.IsNaN(cs.Max) {
			return ""
		}
		return strconv.Itoa(y)
	}
	return []string{
		cs.Country,
		format(cs.Mean),
		format(cs.Median),
		format(cs.StdDev),
		format(cs.Max),
		format(cs.Min),
		year(cs.BestYear),
		year(cs.WorstYear),
		strconv.Itoa(cs.PositiveYears),
		strconv.Itoa(cs.NegativeYears),
	}
}

// formatCSVFloat writes missing values as empty cells and keeps a decimal
// point on whole numbers.
func formatCSVFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func parseCSVFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseCSVInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// ReadStatistics parses a file written by ExportStatistics.
func ReadStatistics(path string) (model.SummaryStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statistics file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read statistics file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("statistics file is empty")
	}
	if strings.Join(records[0], ",") != strings.Join(StatisticsHeader, ",") {
		return nil, fmt.Errorf("unexpected statistics header %v", records[0])
	}

	out := make(model.SummaryStats, 0, len(records)-1)
	for line, rec := range records[1:] {
		var cs model.CountryStats
		cs.Country = rec[0]
		floats := []*float64{&cs.Mean, &cs.Median, &cs.StdDev, &cs.Max, &cs.Min}
		for i, dst := range floats {
			if *dst, err = parseCSVFloat(rec[1+i]); err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line+2, StatisticsHeader[1+i], err)
			}
		}
		ints := []*int{&cs.BestYear, &cs.WorstYear, &cs.PositiveYears, &cs.NegativeYears}
		for i, dst := range ints {
			if *dst, err = parseCSVInt(rec[6+i]); err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line+2, StatisticsHeader[6+i], err)
			}
		}
		out = append(out, cs)
	}
	return out, nil
}

// ReadMatrix parses a file written by ExportMatrix.
func ReadMatrix(path string) (*model.GrowthMatrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open growth data file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read growth data file: %w", err)
	}
	if len(records) == 0 || len(records[0]) < 2 || records[0][0] != "Year" {
		return nil, fmt.Errorf("unexpected growth data header")
	}

	years := make([]int, 0, len(records)-1)
	for _, rec := range records[1:] {
		y, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("bad year %q: %w", rec[0], err)
		}
		years = append(years, y)
	}

	m := model.NewGrowthMatrix(years, records[0][1:])
	for yi, rec := range records[1:] {
		for ci := range m.Countries {
			v, err := parseCSVFloat(rec[ci+1])
			if err != nil {
				return nil, fmt.Errorf("year %d %s: %w", years[yi], m.Countries[ci], err)
			}
			m.Values[yi][ci] = v
		}
	}
	return m, nil
}

// ------------------- Workbook -------------------

const (
	sheetStatistics   = "Statistics"
	sheetGrowthData   = "Growth Data"
	sheetCorrelations = "Correlations"
)

func writeWorkbook(path string, m *model.GrowthMatrix, s model.SummaryStats, c *model.CorrelationMatrix) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetStatistics); err != nil {
		return err
	}
	for _, name := range []string{sheetGrowthData, sheetCorrelations} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	// Statistics
	if err := writeSheetRow(f, sheetStatistics, 1, toCells(StatisticsHeader)); err != nil {
		return err
	}
	for i, cs := range s {
		row := []any{cs.Country, cellFloat(cs.Mean), cellFloat(cs.Median), cellFloat(cs.StdDev),
			cellFloat(cs.Max), cellFloat(cs.Min), cs.BestYear, cs.WorstYear, cs.PositiveYears, cs.NegativeYears}
		if err := writeSheetRow(f, sheetStatistics, i+2, row); err != nil {
			return err
		}
	}
	if err := styleHeader(f, sheetStatistics, len(StatisticsHeader), header); err != nil {
		return err
	}

	// Growth data
	if err := writeSheetRow(f, sheetGrowthData, 1, toCells(append([]string{"Year"}, m.Countries...))); err != nil {
		return err
	}
	for yi, year := range m.Years {
		row := []any{year}
		for _, v := range m.Values[yi] {
			row = append(row, cellFloat(v))
		}
		if err := writeSheetRow(f, sheetGrowthData, yi+2, row); err != nil {
			return err
		}
	}
	if err := styleHeader(f, sheetGrowthData, len(m.Countries)+1, header); err != nil {
		return err
	}

	// Correlations
	if c != nil {
		if err := writeSheetRow(f, sheetCorrelations, 1, toCells(append([]string{""}, c.Countries...))); err != nil {
			return err
		}
		for i, name := range c.Countries {
			row := []any{name}
			for _, v := range c.Values[i] {
				row = append(row, cellFloat(v))
			}
			if err := writeSheetRow(f, sheetCorrelations, i+2, row); err != nil {
				return err
			}
		}
		if err := styleHeader(f, sheetCorrelations, len(c.Countries)+1, header); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleHeader(f *excelize.File, sheet string, cols, style int) error {
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

func toCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// cellFloat leaves missing values as blank cells.
func cellFloat(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
