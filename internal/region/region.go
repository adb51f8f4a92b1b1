// Package region maps geography names from the Triple Billion dataset onto WHO regions.
//
// The country table lives in regions.yaml and is embedded at build time, so membership
// changes never touch the lookup logic.
package region

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	Africa               = "Africa"
	Americas             = "Americas"
	EasternMediterranean = "Eastern Mediterranean"
	Europe               = "Europe"
	SouthEastAsia        = "South-East Asia"
	WesternPacific       = "Western Pacific"
	Other                = "Other"
)

//go:embed regions.yaml
var regionsYAML []byte

var (
	canonical = []string{Africa, Americas, EasternMediterranean, Europe, SouthEastAsia, WesternPacific}

	canonicalSet = map[string]struct{}{
		Africa: {}, Americas: {}, EasternMediterranean: {},
		Europe: {}, SouthEastAsia: {}, WesternPacific: {},
	}

	// countries is written once in init and only read afterwards.
	countries map[string]string
)

func init() {
	m, err := parseTable(regionsYAML)
	if err != nil {
		panic(fmt.Sprintf("region: embedded table: %v", err))
	}
	countries = m
}

// parseTable decodes a region -> members document and inverts it into name -> region.
func parseTable(b []byte) (map[string]string, error) {
	var doc map[string][]string
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	out := make(map[string]string, 200)
	for reg, members := range doc {
		if _, ok := canonicalSet[reg]; !ok {
			return nil, fmt.Errorf("unknown region %q", reg)
		}
		for _, name := range members {
			if prev, dup := out[name]; dup && prev != reg {
				return nil, fmt.Errorf("%q listed under %q and %q", name, prev, reg)
			}
			out[name] = reg
		}
	}
	return out, nil
}

// Classify returns the WHO region for a geography name. Names already equal to a
// canonical region pass through; anything unrecognised is Other.
func Classify(geo string) string {
	if reg, ok := countries[geo]; ok {
		return reg
	}
	if _, ok := canonicalSet[geo]; ok {
		return geo
	}
	return Other
}

// Canonical lists the six WHO regions in display order.
func Canonical() []string {
	return append([]string(nil), canonical...)
}

// All lists every value Classify can return, Other last.
func All() []string {
	return append(Canonical(), Other)
}

func IsCanonical(name string) bool {
	_, ok := canonicalSet[name]
	return ok
}

// IsKnown reports whether name is one of the values Classify can return.
func IsKnown(name string) bool {
	return name == Other || IsCanonical(name)
}

// Countries returns a copy of the country -> region table.
func Countries() map[string]string {
	out := make(map[string]string, len(countries))
	for k, v := range countries {
		out[k] = v
	}
	return out
}

// Members returns the sorted country names assigned to reg.
func Members(reg string) []string {
	var out []string
	for name, r := range countries {
		if r == reg {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
