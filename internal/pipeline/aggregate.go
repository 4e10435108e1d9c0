package pipeline

import (
	"math"
	"sort"

	"gdp-growth-pipeline/internal/model"

	"github.com/montanaflynn/stats"
)

// ------------------- Summary statistics -------------------

// ComputeStatistics summarises each country's series, skipping missing
// years, and orders the result by descending mean. Ties keep the matrix
// column order; countries with no observations sort last.
func ComputeStatistics(m *model.GrowthMatrix) model.SummaryStats {
	out := make(model.SummaryStats, 0, len(m.Countries))
	for ci, country := range m.Countries {
		out = append(out, countryStats(country, m.Years, m.Column(ci)))
	}
	SortByMean(out)
	return out
}

// SortByMean sorts descending by mean, stable, NaN last.
func SortByMean(s model.SummaryStats) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i].Mean, s[j].Mean
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		if math.IsNaN(a) {
			return false
		}
		return a > b
	})
}

func countryStats(country string, years []int, series []float64) model.CountryStats {
	cs := model.CountryStats{
		Country: country,
		Mean:    math.NaN(),
		Median:  math.NaN(),
		StdDev:  math.NaN(),
		Max:     math.NaN(),
		Min:     math.NaN(),
	}

	observed := make(stats.Float64Data, 0, len(series))
	for i, v := range series {
		if math.IsNaN(v) {
			continue
		}
		observed = append(observed, v)

		// first occurrence wins on ties
		if math.IsNaN(cs.Max) || v > cs.Max {
			cs.Max, cs.BestYear = v, years[i]
		}
		if math.IsNaN(cs.Min) || v < cs.Min {
			cs.Min, cs.WorstYear = v, years[i]
		}
		switch {
		case v > 0:
			cs.PositiveYears++
		case v < 0:
			cs.NegativeYears++
		}
	}
	if len(observed) == 0 {
		return cs
	}

	if mean, err := observed.Mean(); err == nil {
		cs.Mean = round(mean, 2)
	}
	if median, err := observed.Median(); err == nil {
		cs.Median = round(median, 2)
	}
	// a single observation has no sample deviation and stays NaN
	if len(observed) > 1 {
		if sd, err := observed.StandardDeviationSample(); err == nil {
			cs.StdDev = round(sd, 2)
		}
	}
	cs.Max = round(cs.Max, 2)
	cs.Min = round(cs.Min, 2)
	return cs
}
