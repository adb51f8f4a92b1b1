package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
	"triplebillion/internal/export"
	"triplebillion/internal/history"
	"triplebillion/pkg/database"
	"triplebillion/pkg/utils"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := utils.LoadAppConfig()

	var (
		dataPath = flag.String("data", cfg.DataPath, "input CSV path")
		category = flag.String("category", "", "comma-separated categories (default: all)")
		tracer   = flag.String("tracer", "", "comma-separated tracers (default: all for the categories)")
		yearMin  = flag.Int("year-min", 0, "first year (default: earliest)")
		yearMax  = flag.Int("year-max", 0, "last year (default: latest)")
		format   = flag.String("format", "csv", "csv or xlsx")
		outDir   = flag.String("dir", "data", "output directory")
		record   = flag.Bool("record", true, "record the export in the history database")
	)
	flag.Parse()

	f, err := export.ParseFormat(*format)
	if err != nil {
		log.Fatal(err)
	}

	t, err := dataset.Load(dataset.FileSource{Path: *dataPath})
	if err != nil {
		log.Fatalf("load failed: %v", err)
	}

	sel := engine.DefaultSelection(t)
	if *category != "" {
		sel.Categories = splitList(*category)
		sel.Tracers = engine.TracerOptions(t, sel.Categories)
	}
	if *tracer != "" {
		sel.Tracers = splitList(*tracer)
		sel = engine.Restrict(t, sel)
	}
	if *yearMin != 0 {
		sel.YearMin = *yearMin
	}
	if *yearMax != 0 {
		sel.YearMax = *yearMax
	}

	d := engine.Build(t, sel, engine.DefaultConfig())
	if !d.OK() {
		log.Fatalf("nothing to export: %s", d.Warning)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, f, d.View()); err != nil {
		log.Fatalf("export failed: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create %s: %v", *outDir, err)
	}
	name := export.Filename(export.Prefix, string(f), time.Now())
	outPath := filepath.Join(*outDir, name)
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		log.Fatalf("write %s: %v", outPath, err)
	}

	if *record {
		if err := recordExport(t, name, f, d); err != nil {
			log.Printf("history not updated: %v", err)
		}
	}

	log.Printf("✅ exported %d rows to %s", d.Rows, outPath)
}

func recordExport(t *dataset.Table, name string, f export.Format, d engine.Dashboard) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Open(database.DefaultConfig())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return err
	}

	repo := history.NewRepo(db)
	loadID, err := repo.LatestLoadID(ctx, t.Key())
	if err != nil {
		return err
	}
	if loadID == "" {
		load, err := repo.RecordLoad(ctx, t)
		if err != nil {
			return err
		}
		loadID = load.ID
	}
	_, err = repo.RecordExport(ctx, loadID, name, string(f), d.Rows, d.Selection)
	return err
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
