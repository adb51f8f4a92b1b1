package main

import (
	"testing"

	"triplebillion/internal/dataset"
	"triplebillion/internal/region"
)

func TestBuildReport(t *testing.T) {
	tbl, err := dataset.Parse("relay.csv", []byte(`TRIPLE_BILLION,TRIPLE_BILLION_TRACER,GEO_NAME_SHORT,DIM_TIME,COUNT_N
UHC,Coverage,Kenya,2019,1
UHC,Protection,Kenya,2020,
HEP,Prevent,Atlantis,2021,3
`))
	if err != nil {
		t.Fatal(err)
	}

	r := buildReport(tbl)
	if r.Rows != 3 || r.BlankCounts != 1 || r.YearMin != 2019 || r.YearMax != 2021 {
		t.Fatalf("report = %+v", r)
	}
	if len(r.Tracers["UHC"]) != 2 || len(r.Tracers["HEP"]) != 1 {
		t.Fatalf("tracers = %v", r.Tracers)
	}
	if r.RegionRows[region.Africa] != 2 || r.RegionRows[region.Other] != 1 || r.UnmappedRows != 1 {
		t.Fatalf("regions = %v unmapped = %d", r.RegionRows, r.UnmappedRows)
	}
}
