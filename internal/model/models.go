package model

import (
	"fmt"
	"math"
)

// Economy is one entry of the configured economy registry.
type Economy struct {
	Code string `json:"code"` // ISO3 code used by the World Bank API
	Name string `json:"name"` // display name, used as the column label
}

// GrowthMatrix holds annual growth rates indexed by year (rows) and country (columns).
// Missing observations are NaN.
type GrowthMatrix struct {
	Years     []int       `json:"years"`
	Countries []string    `json:"countries"`
	Values    [][]float64 `json:"values"` // [year][country]
}

// NewGrowthMatrix creates a matrix with every cell set to NaN.
func NewGrowthMatrix(years []int, countries []string) *GrowthMatrix {
	m := &GrowthMatrix{
		Years:     append([]int(nil), years...),
		Countries: append([]string(nil), countries...),
		Values:    make([][]float64, len(years)),
	}
	for i := range m.Values {
		row := make([]float64, len(countries))
		for j := range row {
			row[j] = math.NaN()
		}
		m.Values[i] = row
	}
	return m
}

// YearRange builds the contiguous inclusive year index [start, end].
func YearRange(start, end int) []int {
	if end < start {
		return nil
	}
	years := make([]int, 0, end-start+1)
	for y := start; y <= end; y++ {
		years = append(years, y)
	}
	return years
}

func (m *GrowthMatrix) YearIndex(year int) (int, bool) {
	for i, y := range m.Years {
		if y == year {
			return i, true
		}
	}
	return -1, false
}

func (m *GrowthMatrix) CountryIndex(country string) (int, bool) {
	for i, c := range m.Countries {
		if c == country {
			return i, true
		}
	}
	return -1, false
}

// HasYear reports whether year is part of the row index.
func (m *GrowthMatrix) HasYear(year int) bool {
	_, ok := m.YearIndex(year)
	return ok
}

// Set stores a value for the given year and country.
func (m *GrowthMatrix) Set(year int, country string, v float64) error {
	yi, ok := m.YearIndex(year)
	if !ok {
		return fmt.Errorf("year %d outside matrix range", year)
	}
	ci, ok := m.CountryIndex(country)
	if !ok {
		return fmt.Errorf("unknown country %q", country)
	}
	m.Values[yi][ci] = v
	return nil
}

// Value returns the cell for year and country, NaN when absent.
func (m *GrowthMatrix) Value(year int, country string) float64 {
	yi, ok := m.YearIndex(year)
	if !ok {
		return math.NaN()
	}
	ci, ok := m.CountryIndex(country)
	if !ok {
		return math.NaN()
	}
	return m.Values[yi][ci]
}

// Column returns a copy of one country's series in year order.
func (m *GrowthMatrix) Column(ci int) []float64 {
	col := make([]float64, len(m.Years))
	for yi := range m.Years {
		col[yi] = m.Values[yi][ci]
	}
	return col
}

// Row returns a copy of one year's values in country order.
func (m *GrowthMatrix) Row(yi int) []float64 {
	return append([]float64(nil), m.Values[yi]...)
}

// Observed counts the non-missing cells.
func (m *GrowthMatrix) Observed() int {
	n := 0
	for _, row := range m.Values {
		for _, v := range row {
			if !math.IsNaN(v) {
				n++
			}
		}
	}
	return n
}

// CountryStats is the per-country summary produced by the statistics engine.
type CountryStats struct {
	Country       string  `json:"country"`
	Mean          float64 `json:"mean"`
	Median        float64 `json:"median"`
	StdDev        float64 `json:"std_dev"`
	Max           float64 `json:"max"`
	Min           float64 `json:"min"`
	BestYear      int     `json:"best_year"`
	WorstYear     int     `json:"worst_year"`
	PositiveYears int     `json:"positive_years"`
	NegativeYears int     `json:"negative_years"`
}

// SummaryStats is ordered by descending mean growth.
type SummaryStats []CountryStats

// Find returns the entry for a country.
func (s SummaryStats) Find(country string) (CountryStats, bool) {
	for _, cs := range s {
		if cs.Country == country {
			return cs, true
		}
	}
	return CountryStats{}, false
}

// CorrelationMatrix is a square, symmetric Pearson correlation table.
type CorrelationMatrix struct {
	Countries []string    `json:"countries"`
	Values    [][]float64 `json:"values"`
}

// At returns the coefficient for two countries, NaN when either is unknown.
func (c *CorrelationMatrix) At(a, b string) float64 {
	ai, bi := -1, -1
	for i, name := range c.Countries {
		if name == a {
			ai = i
		}
		if name == b {
			bi = i
		}
	}
	if ai < 0 || bi < 0 {
		return math.NaN()
	}
	return c.Values[ai][bi]
}
