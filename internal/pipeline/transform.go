package pipeline

import (
	"gdp-growth-pipeline/internal/model"
)

// PivotObservations arranges observations into a year x country matrix over
// the full [startYear, endYear] window. Columns follow the registry order and
// carry display names; observations for other countries or years are dropped.
func PivotObservations(obs []Observation, economies []model.Economy, startYear, endYear int) (*model.GrowthMatrix, int) {
	names := make([]string, len(economies))
	byCode := make(map[string]int, len(economies))
	for i, e := range economies {
		names[i] = e.Name
		byCode[e.Code] = i
	}

	m := model.NewGrowthMatrix(model.YearRange(startYear, endYear), names)

	dropped := 0
	for _, o := range obs {
		ci, ok := byCode[o.CountryCode]
		if !ok {
			dropped++
			continue
		}
		yi, ok := m.YearIndex(o.Year)
		if !ok {
			dropped++
			continue
		}
		if o.Value == nil {
			continue
		}
		m.Values[yi][ci] = *o.Value
	}
	return m, dropped
}
