// Package chart renders the dashboard's regional snapshot and yearly trend as PNG.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"triplebillion/internal/engine"
	"triplebillion/internal/region"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("chart: no data to plot")

const (
	Width  = 900
	Height = 480
)

// one fixed colour per region so both charts agree
var palette = map[string]drawing.Color{
	region.Africa:               drawing.ColorFromHex("1f77b4"),
	region.Americas:             drawing.ColorFromHex("ff7f0e"),
	region.EasternMediterranean: drawing.ColorFromHex("2ca02c"),
	region.Europe:               drawing.ColorFromHex("d62728"),
	region.SouthEastAsia:        drawing.ColorFromHex("9467bd"),
	region.WesternPacific:       drawing.ColorFromHex("8c564b"),
	region.Other:                drawing.ColorFromHex("7f7f7f"),
}

func colorFor(reg string) drawing.Color {
	if c, ok := palette[reg]; ok {
		return c
	}
	return chart.ColorAlternateGray
}

// RegionPie draws each region's share of the total. Regions with a zero total
// are left out; if nothing remains ErrNoData is returned.
func RegionPie(w io.Writer, title string, totals []engine.RegionTotal) error {
	values := make([]chart.Value, 0, len(totals))
	for _, t := range totals {
		if t.CountMillions <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: t.Region,
			Value: t.CountMillions,
			Style: chart.Style{FillColor: colorFor(t.Region), StrokeColor: drawing.ColorWhite, StrokeWidth: 1},
		})
	}
	if len(values) == 0 {
		return ErrNoData
	}

	pie := chart.PieChart{
		Title:  title,
		Width:  Width,
		Height: Height,
		Values: values,
	}
	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render pie: %w", err)
	}
	return nil
}

// TrendLine draws one line per region across the selected years.
func TrendLine(w io.Writer, title string, trend []engine.YearRegionTotal) error {
	if len(trend) == 0 {
		return ErrNoData
	}

	type point struct{ x, y float64 }
	byRegion := make(map[string][]point)
	years := make(map[int]struct{})
	maxY := 0.0
	for _, t := range trend {
		byRegion[t.Region] = append(byRegion[t.Region], point{float64(t.Year), t.CountMillions})
		years[t.Year] = struct{}{}
		maxY = math.Max(maxY, t.CountMillions)
	}

	names := make([]string, 0, len(byRegion))
	for reg := range byRegion {
		names = append(names, reg)
	}
	sort.Strings(names)

	series := make([]chart.Series, 0, len(names))
	for _, reg := range names {
		pts := byRegion[reg]
		sort.Slice(pts, func(i, j int) bool { return pts[i].x < pts[j].x })
		xs := make([]float64, len(pts))
		ys := make([]float64, len(pts))
		for i, p := range pts {
			xs[i], ys[i] = p.x, p.y
		}
		c := colorFor(reg)
		series = append(series, chart.ContinuousSeries{
			Name:    reg,
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: c, StrokeWidth: 2, DotColor: c, DotWidth: 3},
		})
	}

	ch := chart.Chart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      yearAxis(years),
		YAxis: chart.YAxis{
			Name:  "Count (Millions)",
			Range: &chart.ContinuousRange{Min: 0, Max: yMax(maxY)},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render trend: %w", err)
	}
	return nil
}

// yearAxis labels every year as an integer. A single year gets one year of
// margin each side so the range is never zero-width.
func yearAxis(years map[int]struct{}) chart.XAxis {
	ys := make([]int, 0, len(years))
	for y := range years {
		ys = append(ys, y)
	}
	sort.Ints(ys)

	lo, hi := float64(ys[0]), float64(ys[len(ys)-1])
	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	ticks := make([]chart.Tick, 0, len(ys)+2)
	for y := int(lo); y <= int(hi); y++ {
		ticks = append(ticks, chart.Tick{Value: float64(y), Label: strconv.Itoa(y)})
	}
	return chart.XAxis{
		Name:  "Year",
		Ticks: ticks,
		Range: &chart.ContinuousRange{Min: lo, Max: hi},
	}
}

func yMax(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v * 1.1
}
