package engine

import (
	"strings"

	"triplebillion/internal/dataset"
)

// Status tells the presentation layer whether it can render.
type Status string

const (
	StatusOK Status = "ok"
	// StatusEmptySelection: no categories or no tracers selected. Rendering pauses
	// until the user selects something.
	StatusEmptySelection Status = "empty_selection"
	// StatusEmptyResult: the filters are valid but match no rows.
	StatusEmptyResult Status = "empty_result"
)

const (
	warnNoCategory = "Please select at least one TRIPLE BILLION category."
	warnNoTracer   = "Please select at least one TRIPLE BILLION TRACER."
	warnNoData     = "No data available for the selected filters."
)

// Config holds presentation sizes.
type Config struct {
	GrowthWindow int
	TopN         int
}

func DefaultConfig() Config {
	return Config{GrowthWindow: GrowthWindow, TopN: 5}
}

// Dashboard is one full recompute for a selection. Aggregates are only set when
// Status is StatusOK.
type Dashboard struct {
	Status     Status            `json:"status"`
	Warning    string            `json:"warning,omitempty"`
	Selection  Selection         `json:"selection"`
	Title      string            `json:"title"`
	Rows       int               `json:"rows"`
	Metrics    *Metrics          `json:"metrics,omitempty"`
	ByRegion   []RegionTotal     `json:"by_region,omitempty"`
	Trend      []YearRegionTotal `json:"trend,omitempty"`
	TopRegions []RegionTotal     `json:"top_regions,omitempty"`
	Growth     []Growth          `json:"growth,omitempty"`

	view View
}

// View is the filtered subset behind the dashboard.
func (d Dashboard) View() View { return d.view }

// OK reports whether the dashboard can be rendered.
func (d Dashboard) OK() bool { return d.Status == StatusOK }

// Build filters t by sel and computes every aggregate the dashboard shows.
func Build(t *dataset.Table, sel Selection, cfg Config) Dashboard {
	d := Dashboard{
		Selection: sel,
		Title:     strings.Join(sel.Categories, ", "),
		view:      View{table: t},
	}

	switch {
	case len(sel.Categories) == 0:
		d.Status, d.Warning = StatusEmptySelection, warnNoCategory
		return d
	case len(sel.Tracers) == 0:
		d.Status, d.Warning = StatusEmptySelection, warnNoTracer
		return d
	}

	v := Filter(t, sel)
	d.view = v
	d.Rows = v.Len()
	if v.Len() == 0 {
		d.Status, d.Warning = StatusEmptyResult, warnNoData
		return d
	}

	m := Summarize(v)
	d.Status = StatusOK
	d.Metrics = &m
	d.ByRegion = AggregateByRegion(v)
	d.Trend = AggregateByYearRegion(v)
	d.TopRegions = TopRegions(d.ByRegion, cfg.TopN)
	d.Growth = GrowthRates(YearlyTotals(d.Trend), cfg.GrowthWindow)
	return d
}
