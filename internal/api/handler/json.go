package handler

import (
	"encoding/json"
	"math"
	"net/http"

	"gdp-growth-pipeline/internal/model"
	"gdp-growth-pipeline/internal/pipeline"
)

// Float encodes NaN and infinities as null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func floats(vs []float64) []Float {
	out := make([]Float, len(vs))
	for i, v := range vs {
		out[i] = Float(v)
	}
	return out
}

func floatRows(rows [][]float64) [][]Float {
	out := make([][]Float, len(rows))
	for i, row := range rows {
		out[i] = floats(row)
	}
	return out
}

// CountryStatsJSON is the wire form of model.CountryStats.
type CountryStatsJSON struct {
	Rank          int    `json:"rank"`
	Country       string `json:"country"`
	Mean          Float  `json:"mean" swaggertype:"number"`
	Median        Float  `json:"median" swaggertype:"number"`
	StdDev        Float  `json:"std_dev" swaggertype:"number"`
	Max           Float  `json:"max" swaggertype:"number"`
	Min           Float  `json:"min" swaggertype:"number"`
	BestYear      *int   `json:"best_year"`
	WorstYear     *int   `json:"worst_year"`
	PositiveYears int    `json:"positive_years"`
	NegativeYears int    `json:"negative_years"`
}

func statsJSON(s model.SummaryStats) []CountryStatsJSON {
	out := make([]CountryStatsJSON, len(s))
	for i, cs := range s {
		row := CountryStatsJSON{
			Rank:          i + 1,
			Country:       cs.Country,
			Mean:          Float(cs.Mean),
			Median:        Float(cs.Median),
			StdDev:        Float(cs.StdDev),
			Max:           Float(cs.Max),
			Min:           Float(cs.Min),
			PositiveYears: cs.PositiveYears,
			NegativeYears: cs.NegativeYears,
		}
		// years are meaningless without an observation
		if !math.IsNaN(cs.Max) {
			best, worst := cs.BestYear, cs.WorstYear
			row.BestYear, row.WorstYear = &best, &worst
		}
		out[i] = row
	}
	return out
}

// MatrixJSON is the wire form of model.GrowthMatrix.
type MatrixJSON struct {
	Years     []int     `json:"years"`
	Countries []string  `json:"countries"`
	Values    [][]Float `json:"values" swaggertype:"array,number"`
}

func matrixJSON(m *model.GrowthMatrix) MatrixJSON {
	return MatrixJSON{Years: m.Years, Countries: m.Countries, Values: floatRows(m.Values)}
}

// PairJSON is one entry of the correlation ranking.
type PairJSON struct {
	A           string `json:"a"`
	B           string `json:"b"`
	Correlation Float  `json:"correlation" swaggertype:"number"`
}

// CorrelationsJSON is the wire form of model.CorrelationMatrix plus its
// strongest pairs.
type CorrelationsJSON struct {
	Countries []string   `json:"countries"`
	Values    [][]Float  `json:"values" swaggertype:"array,number"`
	TopPairs  []PairJSON `json:"top_pairs"`
}

func correlationsJSON(c *model.CorrelationMatrix, top int) CorrelationsJSON {
	pairs := pipeline.TopCorrelatedPairs(c, top)
	out := CorrelationsJSON{
		Countries: c.Countries,
		Values:    floatRows(c.Values),
		TopPairs:  make([]PairJSON, len(pairs)),
	}
	for i, p := range pairs {
		out.TopPairs[i] = PairJSON{A: p.A, B: p.B, Correlation: Float(p.Correlation)}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
