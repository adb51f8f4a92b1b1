package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
	"triplebillion/internal/region"
	"triplebillion/pkg/models"
)

type report struct {
	Source       string                     `json:"source"`
	ContentKey   string                     `json:"content_key"`
	Rows         int                        `json:"rows"`
	BlankCounts  int                        `json:"blank_counts"`
	YearMin      int                        `json:"year_min"`
	YearMax      int                        `json:"year_max"`
	Categories   []string                   `json:"categories"`
	Tracers      map[string][]string        `json:"tracers"`
	RegionRows   map[string]int             `json:"region_rows"`
	UnmappedRows int                        `json:"unmapped_rows"`
	Unmapped     []models.UnmappedGeography `json:"unmapped"`
}

func main() {
	var (
		dataPath = flag.String("data", "RELAY_3B_DATA.csv", "input CSV path")
		asJSON   = flag.Bool("json", false, "print the report as JSON")
		regions  = flag.Bool("regions", false, "print the country to region table and exit")
	)
	flag.Parse()

	if *regions {
		printRegions()
		return
	}

	t, err := dataset.Load(dataset.FileSource{Path: *dataPath})
	if err != nil {
		log.Fatalf("load failed: %v", err)
	}

	r := buildReport(t)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			log.Fatal(err)
		}
		return
	}

	fmt.Printf("%s\n  key %s\n  %d rows (%d blank counts), years %d-%d\n",
		r.Source, r.ContentKey[:12], r.Rows, r.BlankCounts, r.YearMin, r.YearMax)
	fmt.Println("categories:")
	for _, c := range r.Categories {
		fmt.Printf("  %s: %s\n", c, strings.Join(r.Tracers[c], ", "))
	}
	fmt.Println("rows per region:")
	for _, reg := range region.All() {
		fmt.Printf("  %-22s %d\n", reg, r.RegionRows[reg])
	}
	if r.UnmappedRows > 0 {
		fmt.Printf("unmapped geographies (%d rows):\n", r.UnmappedRows)
		for _, u := range r.Unmapped {
			hint := ""
			if u.Alpha3 != "" {
				hint = " [" + u.Alpha3 + "]"
			}
			fmt.Printf("  %-30s %d%s\n", u.Name, u.Rows, hint)
		}
	}
}

func buildReport(t *dataset.Table) report {
	lo, hi, _ := engine.YearBounds(t)
	r := report{
		Source:       t.Source(),
		ContentKey:   t.Key(),
		Rows:         t.Len(),
		BlankCounts:  t.BlankCounts(),
		YearMin:      lo,
		YearMax:      hi,
		Categories:   engine.Categories(t),
		Tracers:      make(map[string][]string),
		RegionRows:   make(map[string]int),
		UnmappedRows: t.UnmappedRows(),
		Unmapped:     t.Unmapped(),
	}
	for _, c := range r.Categories {
		r.Tracers[c] = engine.TracerOptions(t, []string{c})
	}
	for i := 0; i < t.Len(); i++ {
		r.RegionRows[t.At(i).Region]++
	}
	return r
}

func printRegions() {
	for _, reg := range region.Canonical() {
		members := region.Members(reg)
		fmt.Printf("%s (%d)\n", reg, len(members))
		for _, m := range members {
			fmt.Printf("  %s\n", m)
		}
	}
}
