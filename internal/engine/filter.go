package engine

import (
	"triplebillion/internal/dataset"
)

// Selection is the user's filter state. Both sets are exact, case-sensitive
// matches; the year range is inclusive.
type Selection struct {
	Categories []string `json:"categories"`
	Tracers    []string `json:"tracers"`
	YearMin    int      `json:"year_min"`
	YearMax    int      `json:"year_max"`
}

// Filter keeps rows whose category and tracer are selected and whose year lies in
// [YearMin, YearMax]. Empty sets or an inverted range give an empty view.
func Filter(t *dataset.Table, sel Selection) View {
	v := View{table: t}
	if len(sel.Categories) == 0 || len(sel.Tracers) == 0 || sel.YearMin > sel.YearMax {
		return v
	}

	cats := toSet(sel.Categories)
	tracers := toSet(sel.Tracers)

	for i := 0; i < t.Len(); i++ {
		r := t.At(i)
		if r.Year < sel.YearMin || r.Year > sel.YearMax {
			continue
		}
		if _, ok := cats[r.Category]; !ok {
			continue
		}
		if _, ok := tracers[r.Tracer]; !ok {
			continue
		}
		v.indices = append(v.indices, i)
	}
	return v
}

// Categories lists distinct categories in first-appearance order.
func Categories(t *dataset.Table) []string {
	var out []string
	seen := make(map[string]struct{})
	for i := 0; i < t.Len(); i++ {
		c := t.At(i).Category
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// TracerOptions lists, in first-appearance order, the tracers present in rows
// whose category is one of categories.
func TracerOptions(t *dataset.Table, categories []string) []string {
	cats := toSet(categories)
	var out []string
	seen := make(map[string]struct{})
	for i := 0; i < t.Len(); i++ {
		r := t.At(i)
		if _, ok := cats[r.Category]; !ok {
			continue
		}
		if _, ok := seen[r.Tracer]; !ok {
			seen[r.Tracer] = struct{}{}
			out = append(out, r.Tracer)
		}
	}
	return out
}

// YearBounds returns the smallest and largest year in t; ok is false for an empty table.
func YearBounds(t *dataset.Table) (lo, hi int, ok bool) {
	if t.Len() == 0 {
		return 0, 0, false
	}
	lo, hi = t.At(0).Year, t.At(0).Year
	for i := 1; i < t.Len(); i++ {
		y := t.At(i).Year
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	return lo, hi, true
}

// DefaultSelection selects everything: all categories, all their tracers and the
// full year span.
func DefaultSelection(t *dataset.Table) Selection {
	cats := Categories(t)
	lo, hi, _ := YearBounds(t)
	return Selection{
		Categories: cats,
		Tracers:    TracerOptions(t, cats),
		YearMin:    lo,
		YearMax:    hi,
	}
}

// Options describes the choices offered to the user for the current selection.
type Options struct {
	Categories []string `json:"categories"`
	Tracers    []string `json:"tracers"`
	YearMin    int      `json:"year_min"`
	YearMax    int      `json:"year_max"`
}

// OptionsFor returns every category, the tracers valid for the selected
// categories and the data's year bounds.
func OptionsFor(t *dataset.Table, categories []string) Options {
	lo, hi, _ := YearBounds(t)
	return Options{
		Categories: nonNil(Categories(t)),
		Tracers:    nonNil(TracerOptions(t, categories)),
		YearMin:    lo,
		YearMax:    hi,
	}
}

// Restrict drops tracers that are not offered for the selected categories,
// keeping the caller's order.
func Restrict(t *dataset.Table, sel Selection) Selection {
	valid := toSet(TracerOptions(t, sel.Categories))
	kept := make([]string, 0, len(sel.Tracers))
	for _, tr := range sel.Tracers {
		if _, ok := valid[tr]; ok {
			kept = append(kept, tr)
		}
	}
	sel.Tracers = kept
	return sel
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
