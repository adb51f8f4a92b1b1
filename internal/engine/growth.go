package engine

import (
	"math"
)

// GrowthWindow is how many trailing years the growth table shows.
const GrowthWindow = 3

// Growth is the year-over-year change of one year's total, in percent.
// Rate is nil when there is no prior year or the prior total is zero.
type Growth struct {
	Year int      `json:"year"`
	Rate *float64 `json:"growth_rate"`
}

// Defined reports whether the rate has a value.
func (g Growth) Defined() bool { return g.Rate != nil }

// Value returns the rate, or NaN when it is undefined.
func (g Growth) Value() float64 {
	if g.Rate == nil {
		return math.NaN()
	}
	return *g.Rate
}

// GrowthRates computes (total[i]-total[i-1])/total[i-1]*100 over the whole
// series and returns the trailing window entries. A window <= 0 returns all.
// The first year of the series and any year following a zero total are
// undefined.
func GrowthRates(totals []YearTotal, window int) []Growth {
	all := make([]Growth, len(totals))
	for i, t := range totals {
		all[i] = Growth{Year: t.Year}
		if i == 0 {
			continue
		}
		prev := totals[i-1].CountMillions
		if prev == 0 {
			continue
		}
		rate := (t.CountMillions - prev) / prev * 100
		all[i].Rate = &rate
	}

	if window > 0 && len(all) > window {
		all = all[len(all)-window:]
	}
	return all
}
