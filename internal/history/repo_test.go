package history

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"triplebillion/internal/dataset"
	"triplebillion/pkg/database"
)

const csvData = `TRIPLE_BILLION,TRIPLE_BILLION_TRACER,GEO_NAME_SHORT,DIM_TIME,COUNT_N
UHC,Coverage,Kenya,2019,1000000
UHC,Coverage,Atlantis,2020,5
`

func newRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepo(db)
}

func TestLoadLedger(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	tbl, err := dataset.Parse("fixture.csv", []byte(csvData))
	if err != nil {
		t.Fatal(err)
	}

	id, err := r.LatestLoadID(ctx, tbl.Key())
	if err != nil || id != "" {
		t.Fatalf("LatestLoadID before insert = %q, %v", id, err)
	}

	first, err := r.RecordLoad(ctx, tbl)
	if err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}
	if first.Rows != 2 || first.UnmappedRows != 1 || first.ContentKey != tbl.Key() {
		t.Fatalf("load = %+v", first)
	}

	time.Sleep(5 * time.Millisecond)
	second, err := r.RecordLoad(ctx, tbl)
	if err != nil {
		t.Fatal(err)
	}

	id, err = r.LatestLoadID(ctx, tbl.Key())
	if err != nil || id != second.ID {
		t.Fatalf("LatestLoadID = %q, %v; want %q", id, err, second.ID)
	}

	loads, total, err := r.ListLoads(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListLoads: %v", err)
	}
	if total != 2 || len(loads) != 2 || loads[0].ID != second.ID {
		t.Fatalf("loads = %+v total=%d", loads, total)
	}
}

func TestExportLedger(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	sel := map[string]any{"categories": []string{"UHC"}, "year_min": 2019}
	rec, err := r.RecordExport(ctx, "", "who_triple_billion_filtered_20240101_000000.csv", "csv", 12, sel)
	if err != nil {
		t.Fatalf("RecordExport: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("missing id")
	}

	if _, err := r.RecordExport(ctx, "", "x.pdf", "pdf", 1, sel); err == nil {
		t.Fatal("unknown format should violate the format check")
	}

	list, total, err := r.ListExports(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Fatalf("exports = %+v total=%d", list, total)
	}
	got := list[0]
	if got.Filename != rec.Filename || got.Rows != 12 || got.LoadID != "" {
		t.Fatalf("export = %+v", got)
	}
	var decoded struct {
		Categories []string `json:"categories"`
		YearMin    int      `json:"year_min"`
	}
	if err := json.Unmarshal(got.Selection, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Categories) != 1 || decoded.YearMin != 2019 {
		t.Fatalf("selection = %s", got.Selection)
	}
}
