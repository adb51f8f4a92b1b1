package engine

import (
	"math"
	"sort"
)

// RegionTotal is the snapshot aggregate for one region.
type RegionTotal struct {
	Region        string  `json:"region"`
	CountMillions float64 `json:"count_millions"`
}

// YearRegionTotal is the trend aggregate for one (year, region) pair.
type YearRegionTotal struct {
	Year          int     `json:"year"`
	Region        string  `json:"region"`
	CountMillions float64 `json:"count_millions"`
}

// YearTotal is the trend aggregate summed across regions.
type YearTotal struct {
	Year          int     `json:"year"`
	CountMillions float64 `json:"count_millions"`
}

// AggregateByRegion sums CountMillions per region, one entry per region present,
// ordered by region name.
func AggregateByRegion(v View) []RegionTotal {
	sums := make(map[string]float64)
	for i := 0; i < v.Len(); i++ {
		r := v.At(i)
		sums[r.Region] += r.CountMillions()
	}

	out := make([]RegionTotal, 0, len(sums))
	for reg, total := range sums {
		out = append(out, RegionTotal{Region: reg, CountMillions: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

// AggregateByYearRegion sums CountMillions per (year, region), ordered by year
// then region.
func AggregateByYearRegion(v View) []YearRegionTotal {
	type key struct {
		year   int
		region string
	}
	sums := make(map[key]float64)
	for i := 0; i < v.Len(); i++ {
		r := v.At(i)
		sums[key{r.Year, r.Region}] += r.CountMillions()
	}

	out := make([]YearRegionTotal, 0, len(sums))
	for k, total := range sums {
		out = append(out, YearRegionTotal{Year: k.year, Region: k.region, CountMillions: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Region < out[j].Region
	})
	return out
}

// YearlyTotals collapses a trend aggregate across regions, ordered by year.
func YearlyTotals(trend []YearRegionTotal) []YearTotal {
	sums := make(map[int]float64)
	for _, t := range trend {
		sums[t.Year] += t.CountMillions
	}

	out := make([]YearTotal, 0, len(sums))
	for y, total := range sums {
		out = append(out, YearTotal{Year: y, CountMillions: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// TopRegions returns the n largest regional totals, largest first.
func TopRegions(totals []RegionTotal, n int) []RegionTotal {
	out := append([]RegionTotal(nil), totals...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CountMillions != out[j].CountMillions {
			return out[i].CountMillions > out[j].CountMillions
		}
		return out[i].Region < out[j].Region
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Metrics are the headline numbers shown above the charts.
type Metrics struct {
	TotalMillions      float64 `json:"total_millions"`
	YearsCovered       int     `json:"years_covered"`
	Regions            int     `json:"regions"`
	AvgPerYearMillions float64 `json:"avg_per_year_millions"`
}

// Summarize computes Metrics for a view. The per-year average is 0 when the
// view has no years.
func Summarize(v View) Metrics {
	years := make(map[int]struct{})
	regions := make(map[string]struct{})
	var total float64
	for i := 0; i < v.Len(); i++ {
		r := v.At(i)
		years[r.Year] = struct{}{}
		regions[r.Region] = struct{}{}
		total += r.CountMillions()
	}

	m := Metrics{
		TotalMillions: total,
		YearsCovered:  len(years),
		Regions:       len(regions),
	}
	if m.YearsCovered > 0 {
		m.AvgPerYearMillions = total / float64(m.YearsCovered)
	}
	return m
}

// Round2 rounds to two decimal places for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
