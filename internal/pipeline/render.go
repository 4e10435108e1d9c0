package pipeline

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"gdp-growth-pipeline/internal/model"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Chart file names.
const (
	ChartGrowthComparison = "gdp_growth_comparison.png"
	ChartGrowthHeatmap    = "gdp_growth_heatmap.png"
	ChartAverageGrowth    = "average_growth_comparison.png"
	ChartVolatility       = "growth_volatility_scatter.png"
)

// Shaded recession bands on the time-series chart.
var recessionBands = []struct {
	Label    string
	From, To float64
	Color    color.Color
}{
	{Label: "2008-09 Crisis", From: 2008, To: 2009.5, Color: color.RGBA{R: 220, G: 40, B: 40, A: 40}},
	{Label: "COVID-19", From: 2020, To: 2020.5, Color: color.RGBA{R: 255, G: 140, B: 0, A: 40}},
}

var (
	positiveColor = color.RGBA{R: 46, G: 139, B: 87, A: 255}
	negativeColor = color.RGBA{R: 205, G: 55, B: 55, A: 255}
	missingColor  = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

// ------------------- Growth comparison -------------------

// RenderGrowthComparison draws every country's series over time with a zero
// line and shaded crisis periods.
func RenderGrowthComparison(m *model.GrowthMatrix, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("GDP Growth Rate Comparison (%s)", yearSpan(m))
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "GDP Growth Rate (%)"
	p.Legend.Top = true
	p.Legend.Left = true

	lo, hi := valueRange(m)
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 1
	}
	lo, hi = math.Min(lo-pad, 0), math.Max(hi+pad, 0)
	p.Y.Min, p.Y.Max = lo, hi
	p.X.Min = float64(m.Years[0]) - 0.5
	p.X.Max = float64(m.Years[len(m.Years)-1]) + 0.5

	for _, band := range recessionBands {
		poly, err := plotter.NewPolygon(plotter.XYs{
			{X: band.From, Y: lo}, {X: band.To, Y: lo}, {X: band.To, Y: hi}, {X: band.From, Y: hi},
		})
		if err != nil {
			return fmt.Errorf("failed to build recession band: %w", err)
		}
		poly.Color = band.Color
		poly.LineStyle.Width = 0
		p.Add(poly)
		p.Legend.Add(band.Label, poly)
	}

	zero, err := plotter.NewLine(plotter.XYs{{X: p.X.Min, Y: 0}, {X: p.X.Max, Y: 0}})
	if err != nil {
		return err
	}
	zero.Color = color.Black
	zero.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(zero)
	p.Add(plotter.NewGrid())

	for ci, country := range m.Countries {
		col := plotutil.Color(ci)
		for si, segment := range segments(m.Years, m.Column(ci)) {
			line, points, err := plotter.NewLinePoints(segment)
			if err != nil {
				return fmt.Errorf("failed to plot %s: %w", country, err)
			}
			line.Color = col
			line.Width = vg.Points(2)
			points.Color = col
			points.Radius = vg.Points(2.5)
			points.Shape = draw.CircleGlyph{}
			p.Add(line, points)
			if si == 0 {
				p.Legend.Add(country, line, points)
			}
		}
	}

	return p.Save(14*vg.Inch, 8*vg.Inch, path)
}

// segments splits a series at missing values so gaps are not bridged.
func segments(years []int, series []float64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i, v := range series {
		if math.IsNaN(v) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(years[i]), Y: v})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// ------------------- Heatmap -------------------

// growthGrid adapts a matrix to plotter.GridXYZ with years as columns and
// countries as rows, first country on top.
type growthGrid struct {
	m *model.GrowthMatrix
}

func (g growthGrid) Dims() (c, r int) { return len(g.m.Years), len(g.m.Countries) }
func (g growthGrid) Z(c, r int) float64 {
	return g.m.Values[c][len(g.m.Countries)-1-r]
}
func (g growthGrid) X(c int) float64 { return float64(c) }
func (g growthGrid) Y(r int) float64 { return float64(r) }

type colors []color.Color

func (c colors) Colors() []color.Color { return c }

// divergingPalette runs from red (negative) through a light midpoint to green.
func divergingPalette(n int) palette.Palette {
	cmap := moreland.SmoothGreenRed()
	cmap.SetMin(0)
	cmap.SetMax(1)
	src := cmap.Palette(n).Colors()
	out := make(colors, len(src))
	for i, c := range src {
		out[len(src)-1-i] = c
	}
	return out
}

// RenderGrowthHeatmap draws the country x year matrix as an annotated heatmap
// with the colour scale centred on zero.
func RenderGrowthHeatmap(m *model.GrowthMatrix, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("GDP Growth Rate Heatmap (%s)", yearSpan(m))
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Year"

	lo, hi := valueRange(m)
	bound := math.Max(math.Abs(lo), math.Abs(hi))
	if bound == 0 || math.IsNaN(bound) {
		bound = 1
	}

	grid := growthGrid{m: m}
	hm := plotter.NewHeatMap(grid, divergingPalette(256))
	hm.Min, hm.Max = -bound, bound
	hm.NaN = missingColor
	p.Add(hm)

	var xys plotter.XYs
	var labels []string
	cols, rows := grid.Dims()
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			v := grid.Z(c, r)
			if math.IsNaN(v) {
				continue
			}
			xys = append(xys, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			labels = append(labels, fmt.Sprintf("%.1f", v))
		}
	}
	if len(xys) > 0 {
		annotations, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
		if err != nil {
			return fmt.Errorf("failed to annotate heatmap: %w", err)
		}
		for i := range annotations.TextStyle {
			annotations.TextStyle[i].Font.Size = vg.Points(7)
			annotations.TextStyle[i].XAlign = draw.XCenter
			annotations.TextStyle[i].YAlign = draw.YCenter
		}
		p.Add(annotations)
	}

	yearLabels := make([]string, len(m.Years))
	for i, y := range m.Years {
		yearLabels[i] = strconv.Itoa(y)
	}
	countryLabels := make([]string, len(m.Countries))
	for i, c := range m.Countries {
		countryLabels[len(m.Countries)-1-i] = c
	}
	p.NominalX(yearLabels...)
	p.NominalY(countryLabels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight

	return p.Save(12*vg.Inch, 10*vg.Inch, path)
}

// ------------------- Average growth -------------------

// RenderAverageGrowth draws one horizontal bar per country, green for a
// positive mean and red otherwise, highest mean on top.
func RenderAverageGrowth(s model.SummaryStats, years []int, path string) error {
	p := plot.New()
	p.Title.Text = "Average GDP Growth Rate"
	if len(years) > 0 {
		p.Title.Text = fmt.Sprintf("Average GDP Growth Rate (%d-%d)", years[0], years[len(years)-1])
	}
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Average Growth Rate (%)"

	n := len(s)
	pos := make(plotter.Values, n)
	neg := make(plotter.Values, n)
	names := make([]string, n)
	var posXYs, negXYs plotter.XYs
	var posLabels, negLabels []string
	maxAbs := 0.0

	for i, cs := range s {
		slot := n - 1 - i
		names[slot] = cs.Country
		if math.IsNaN(cs.Mean) {
			continue
		}
		maxAbs = math.Max(maxAbs, math.Abs(cs.Mean))
		label := fmt.Sprintf("%.1f%%", cs.Mean)
		if cs.Mean > 0 {
			pos[slot] = cs.Mean
			posXYs = append(posXYs, plotter.XY{X: cs.Mean, Y: float64(slot)})
			posLabels = append(posLabels, label)
		} else {
			neg[slot] = cs.Mean
			negXYs = append(negXYs, plotter.XY{X: cs.Mean, Y: float64(slot)})
			negLabels = append(negLabels, label)
		}
	}

	for _, series := range []struct {
		values plotter.Values
		color  color.Color
	}{{pos, positiveColor}, {neg, negativeColor}} {
		bars, err := plotter.NewBarChart(series.values, vg.Points(20))
		if err != nil {
			return fmt.Errorf("failed to build bar chart: %w", err)
		}
		bars.Horizontal = true
		bars.Color = series.color
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
	}

	if err := addBarLabels(p, posXYs, posLabels, vg.Points(4), draw.XLeft); err != nil {
		return err
	}
	if err := addBarLabels(p, negXYs, negLabels, -vg.Points(4), draw.XRight); err != nil {
		return err
	}

	if maxAbs == 0 {
		maxAbs = 1
	}
	p.X.Min = math.Min(p.X.Min, -maxAbs*0.15)
	p.X.Max = math.Max(p.X.Max, maxAbs*1.2)

	axis, err := plotter.NewLine(plotter.XYs{{X: 0, Y: -0.5}, {X: 0, Y: float64(n) - 0.5}})
	if err != nil {
		return err
	}
	axis.Color = color.Black
	p.Add(axis)
	p.NominalY(names...)

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}

func addBarLabels(p *plot.Plot, xys plotter.XYs, labels []string, dx vg.Length, align draw.XAlignment) error {
	if len(xys) == 0 {
		return nil
	}
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return fmt.Errorf("failed to label bars: %w", err)
	}
	l.Offset = vg.Point{X: dx}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = align
		l.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(l)
	return nil
}

// ------------------- Volatility -------------------

// RenderGrowthVolatility plots mean growth against standard deviation, one
// labelled point per country, coloured by mean growth.
func RenderGrowthVolatility(s model.SummaryStats, path string) error {
	p := plot.New()
	p.Title.Text = "Growth vs Volatility Analysis"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Average Growth Rate (%)"
	p.Y.Label.Text = "Standard Deviation (Volatility)"
	p.Add(plotter.NewGrid())

	var xys plotter.XYs
	var labels []string
	bound := 0.0
	for _, cs := range s {
		if math.IsNaN(cs.Mean) || math.IsNaN(cs.StdDev) {
			continue
		}
		xys = append(xys, plotter.XY{X: cs.Mean, Y: cs.StdDev})
		labels = append(labels, cs.Country)
		bound = math.Max(bound, math.Abs(cs.Mean))
	}
	if len(xys) == 0 {
		return p.Save(10*vg.Inch, 8*vg.Inch, path)
	}
	if bound == 0 {
		bound = 1
	}

	cmap := moreland.SmoothGreenRed()
	cmap.SetMin(-bound)
	cmap.SetMax(bound)

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c, err := cmap.At(-xys[i].X)
		if err != nil {
			c = missingColor
		}
		return draw.GlyphStyle{Color: c, Radius: vg.Points(7), Shape: draw.CircleGlyph{}}
	}
	p.Add(scatter)

	names, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return fmt.Errorf("failed to label scatter: %w", err)
	}
	names.Offset = vg.Point{Y: vg.Points(10)}
	for i := range names.TextStyle {
		names.TextStyle[i].XAlign = draw.XCenter
	}
	p.Add(names)

	return p.Save(10*vg.Inch, 8*vg.Inch, path)
}

// ------------------- helpers -------------------

func valueRange(m *model.GrowthMatrix) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range m.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

func yearSpan(m *model.GrowthMatrix) string {
	if len(m.Years) == 0 {
		return ""
	}
	return fmt.Sprintf("%d-%d", m.Years[0], m.Years[len(m.Years)-1])
}
