package pipeline

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gdp-growth-pipeline/internal/model"
)

// crisisLabels names the crisis years the report knows about.
var crisisLabels = map[int]string{
	FinancialCrisisYear: "Global Financial Crisis",
	PandemicYear:        "COVID-19 Pandemic",
}

// Report bundles everything the console report prints.
type Report struct {
	Matrix       *model.GrowthMatrix
	Stats        model.SummaryStats
	Correlations *model.CorrelationMatrix
	CrisisYears  []int
	OutputDir    string
}

// CountryValue pairs a country with one number, used by the rankings.
type CountryValue struct {
	Country string
	Value   float64
}

// TopGrowth returns the n countries with the highest mean growth.
func TopGrowth(s model.SummaryStats, n int) []CountryValue {
	return topBy(s, n, func(cs model.CountryStats) float64 { return cs.Mean })
}

// MostVolatile returns the n countries with the largest standard deviation.
func MostVolatile(s model.SummaryStats, n int) []CountryValue {
	return topBy(s, n, func(cs model.CountryStats) float64 { return cs.StdDev })
}

func topBy(s model.SummaryStats, n int, key func(model.CountryStats) float64) []CountryValue {
	var out []CountryValue
	for _, cs := range s {
		if v := key(cs); !math.IsNaN(v) {
			out = append(out, CountryValue{Country: cs.Country, Value: v})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// CrisisRanking returns the n lowest growth rates in year, ascending. ok is
// false when the year is not in the matrix.
func CrisisRanking(m *model.GrowthMatrix, year, n int) (ranking []CountryValue, ok bool) {
	yi, ok := m.YearIndex(year)
	if !ok {
		return nil, false
	}
	for ci, country := range m.Countries {
		if v := m.Values[yi][ci]; !math.IsNaN(v) {
			ranking = append(ranking, CountryValue{Country: country, Value: v})
		}
	}
	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].Value < ranking[j].Value })
	if len(ranking) > n {
		ranking = ranking[:n]
	}
	return ranking, true
}

// TopCorrelatedPairs returns the n pairs with the largest absolute
// correlation. Ties keep upper-triangle order; NaN pairs sort last.
func TopCorrelatedPairs(c *model.CorrelationMatrix, n int) []CorrelatedPair {
	pairs := Pairs(c)
	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := math.Abs(pairs[i].Correlation), math.Abs(pairs[j].Correlation)
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		if math.IsNaN(a) {
			return false
		}
		return a > b
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}

// ------------------- Printing -------------------

// Write prints the full analysis report.
func (r Report) Write(w io.Writer) error {
	p := &printer{w: w}
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	p.printf("\n%s\n", rule)
	p.printf("GDP GROWTH YEAR-OVER-YEAR ANALYSIS REPORT\n")
	p.printf("Major World Economies (%s)\n", yearSpan(r.Matrix))
	p.printf("%s\n", rule)

	p.printf("\n📊 SUMMARY STATISTICS\n%s\n", thin)
	p.table(func(tw io.Writer) {
		fmt.Fprintln(tw, strings.Join(StatisticsHeader, "\t")+"\t")
		for _, cs := range r.Stats {
			fmt.Fprintln(tw, strings.Join(statisticsRow(cs, formatFixed2), "\t")+"\t")
		}
	})

	p.printf("\n\n🏆 KEY FINDINGS\n%s\n", thin)

	p.printf("\n1. HIGHEST AVERAGE GROWTH:\n")
	for i, cv := range TopGrowth(r.Stats, 3) {
		p.printf("   %d. %s: %s%% average annual growth\n", i+1, cv.Country, formatFloat(cv.Value))
	}

	p.printf("\n2. MOST VOLATILE ECONOMIES:\n")
	for i, cv := range MostVolatile(r.Stats, 3) {
		p.printf("   %d. %s: %s std deviation\n", i+1, cv.Country, formatFloat(cv.Value))
	}

	p.printf("\n3. CRISIS IMPACT ANALYSIS:\n")
	first := true
	for _, year := range r.CrisisYears {
		ranking, ok := CrisisRanking(r.Matrix, year, 3)
		if !ok {
			continue
		}
		if !first {
			p.printf("\n")
		}
		first = false
		label := crisisLabels[year]
		if label == "" {
			label = "Crisis"
		}
		p.printf("   %d (%s):\n", year, label)
		for _, cv := range ranking {
			p.printf("      - %s: %.1f%%\n", cv.Country, cv.Value)
		}
	}

	p.printf("\n4. CORRELATION INSIGHTS:\n")
	p.printf("   Economies with highest correlation (move together):\n")
	if r.Correlations != nil {
		for _, pair := range TopCorrelatedPairs(r.Correlations, 5) {
			p.printf("      - %s & %s: %.3f\n", pair.A, pair.B, pair.Correlation)
		}
	}

	p.printf("\n\n📈 YEAR-BY-YEAR DATA\n%s\n", thin)
	p.table(func(tw io.Writer) {
		fmt.Fprintln(tw, "Year\t"+strings.Join(r.Matrix.Countries, "\t")+"\t")
		for yi, year := range r.Matrix.Years {
			cells := make([]string, 0, len(r.Matrix.Countries)+1)
			cells = append(cells, strconv.Itoa(year))
			for _, v := range r.Matrix.Values[yi] {
				cells = append(cells, formatFixed2(v))
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
		}
	})

	p.printf("\n%s\n", rule)
	p.printf("Analysis complete. Visualizations saved to %s/ directory.\n", strings.TrimRight(r.OutputDir, "/"))
	p.printf("%s\n\n", rule)
	return p.err
}

// printer remembers the first write error so the report reads top to bottom.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) table(fill func(io.Writer)) {
	if p.err != nil {
		return
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fill(tw)
	p.err = tw.Flush()
}

func formatFixed2(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatFloat prints the shortest representation, e.g. 2.3 rather than 2.30.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
