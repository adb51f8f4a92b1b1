package dashboard

import (
	"net/url"
	"strconv"
	"strings"

	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
)

// listParam reads a repeatable parameter. Each value is one label, commas
// included. Empty values are skipped; present reports whether the key appeared
// at all, so "category=" selects nothing while a missing key selects the default.
func listParam(q url.Values, key string) (vals []string, present bool) {
	raw, present := q[key]
	if !present {
		return nil, false
	}
	vals = []string{}
	for _, r := range raw {
		if strings.TrimSpace(r) != "" {
			vals = append(vals, r)
		}
	}
	return vals, true
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !contains(b, v) {
			return false
		}
	}
	return true
}

func intParam(q url.Values, key string, def int) int {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ParseSelection turns query parameters into a Selection against t. Missing
// categories mean all of them; missing tracers mean every tracer of the selected
// categories; tracers outside those categories are dropped. Missing years fall
// back to the data's bounds.
//
// The page form also sends shown_category, the categories its tracer list was
// built for. When the submitted categories differ, the tracer checkboxes are
// stale and every tracer of the new categories is selected instead.
func ParseSelection(q url.Values, t *dataset.Table) engine.Selection {
	lo, hi, _ := engine.YearBounds(t)

	cats, ok := listParam(q, "category")
	if !ok {
		cats = engine.Categories(t)
	}

	sel := engine.Selection{
		Categories: cats,
		YearMin:    intParam(q, "year_min", lo),
		YearMax:    intParam(q, "year_max", hi),
	}

	if shown, ok := listParam(q, "shown_category"); ok && !sameSet(shown, cats) {
		sel.Tracers = nonNilTracers(engine.TracerOptions(t, cats))
		return sel
	}
	if tracers, ok := listParam(q, "tracer"); ok {
		sel.Tracers = tracers
		return engine.Restrict(t, sel)
	}
	sel.Tracers = nonNilTracers(engine.TracerOptions(t, cats))
	return sel
}

func nonNilTracers(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
