package pipeline

import (
	"math"
	"testing"

	"gdp-growth-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

var twoEconomies = []model.Economy{
	{Code: "USA", Name: "United States"},
	{Code: "CHN", Name: "China"},
}

func TestPivotObservations(t *testing.T) {
	obs := []Observation{
		{CountryCode: "CHN", Year: 2001, Value: ptr(8.3)},
		{CountryCode: "USA", Year: 2000, Value: ptr(4.1)},
		{CountryCode: "USA", Year: 2001, Value: nil},
		{CountryCode: "FRA", Year: 2000, Value: ptr(3.9)},
		{CountryCode: "USA", Year: 1999, Value: ptr(4.8)},
	}

	m, dropped := PivotObservations(obs, twoEconomies, 2000, 2002)

	assert.Equal(t, 2, dropped)
	assert.Equal(t, []int{2000, 2001, 2002}, m.Years)
	assert.Equal(t, []string{"United States", "China"}, m.Countries)
	assert.Equal(t, 4.1, m.Value(2000, "United States"))
	assert.Equal(t, 8.3, m.Value(2001, "China"))
	assert.True(t, math.IsNaN(m.Value(2001, "United States")))
	assert.True(t, math.IsNaN(m.Value(2002, "China")))
	assert.Equal(t, 2, m.Observed())
}

func TestValidateMatrix(t *testing.T) {
	valid := func() *model.GrowthMatrix {
		return model.NewGrowthMatrix([]int{2000, 2001}, []string{"A", "B"})
	}

	tests := []struct {
		name    string
		mutate  func(m *model.GrowthMatrix) *model.GrowthMatrix
		wantErr string
	}{
		{name: "valid", mutate: func(m *model.GrowthMatrix) *model.GrowthMatrix { return m }},
		{name: "nil", mutate: func(*model.GrowthMatrix) *model.GrowthMatrix { return nil }, wantErr: "nil"},
		{
			name:    "gap in years",
			mutate:  func(m *model.GrowthMatrix) *model.GrowthMatrix { m.Years[1] = 2003; return m },
			wantErr: "not contiguous",
		},
		{
			name:    "duplicate country",
			mutate:  func(m *model.GrowthMatrix) *model.GrowthMatrix { m.Countries[1] = "A"; return m },
			wantErr: "duplicate",
		},
		{
			name:    "short row",
			mutate:  func(m *model.GrowthMatrix) *model.GrowthMatrix { m.Values[0] = m.Values[0][:1]; return m },
			wantErr: "row 2000",
		},
		{
			name:    "infinite value",
			mutate:  func(m *model.GrowthMatrix) *model.GrowthMatrix { m.Values[1][0] = math.Inf(1); return m },
			wantErr: "infinite",
		},
		{
			name:    "no countries",
			mutate:  func(*model.GrowthMatrix) *model.GrowthMatrix { return model.NewGrowthMatrix([]int{2000}, nil) },
			wantErr: "no countries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMatrix(tt.mutate(valid()))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
