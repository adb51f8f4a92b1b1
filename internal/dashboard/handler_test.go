package dashboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
	"triplebillion/internal/history"
	"triplebillion/pkg/database"
)

const relayCSV = `TRIPLE_BILLION,TRIPLE_BILLION_TRACER,GEO_NAME_SHORT,DIM_TIME,COUNT_N
UHC,Coverage,Kenya,2019,1000000
UHC,Coverage,Kenya,2020,1500000
UHC,Protection,France,2020,500000
HEP,Prevent,Japan,2020,2000000
HEP,Prevent,Atlantis,2021,10
`

type fixture struct {
	router *gin.Engine
	path   string
	hist   *history.Repo
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	path := filepath.Join(dir, "relay.csv")
	if err := os.WriteFile(path, []byte(relayCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	var hist *history.Repo
	if withHistory {
		db, err := database.Open(database.Config{Path: filepath.Join(dir, "history.db")})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { db.Close() })
		if err := database.Migrate(db); err != nil {
			t.Fatal(err)
		}
		hist = history.NewRepo(db)
	}

	src := dataset.CachedSource{Cache: dataset.NewCache(), Source: dataset.FileSource{Path: path}}
	h := NewHandler(src, hist, engine.DefaultConfig())
	h.Now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local) }

	r := gin.New()
	h.RegisterRoutes(r.Group(""))
	return &fixture{router: r, path: path, hist: hist}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestParseSelection(t *testing.T) {
	tbl, err := dataset.Parse("x", []byte(relayCSV))
	if err != nil {
		t.Fatal(err)
	}

	sel := ParseSelection(url.Values{}, tbl)
	if len(sel.Categories) != 2 || len(sel.Tracers) != 3 || sel.YearMin != 2019 || sel.YearMax != 2021 {
		t.Fatalf("default = %+v", sel)
	}

	sel = ParseSelection(url.Values{"category": {"UHC"}}, tbl)
	if strings.Join(sel.Tracers, ",") != "Coverage,Protection" {
		t.Fatalf("dependent tracers = %v", sel.Tracers)
	}

	sel = ParseSelection(url.Values{"category": {"UHC", "HEP"}, "tracer": {"Prevent", "Bogus"}, "year_min": {"2020"}}, tbl)
	if len(sel.Categories) != 2 || strings.Join(sel.Tracers, ",") != "Prevent" || sel.YearMin != 2020 || sel.YearMax != 2021 {
		t.Fatalf("explicit = %+v", sel)
	}

	sel = ParseSelection(url.Values{"category": {""}}, tbl)
	if sel.Categories == nil || len(sel.Categories) != 0 || len(sel.Tracers) != 0 {
		t.Fatalf("empty categories = %+v", sel)
	}

	sel = ParseSelection(url.Values{"tracer": {"Protection"}, "year_max": {"abc"}}, tbl)
	if strings.Join(sel.Tracers, ",") != "Protection" || sel.YearMax != 2021 {
		t.Fatalf("tracer only = %+v", sel)
	}
}

func TestDashboardAPI(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/dashboard?category=UHC&year_min=2019&year_max=2020")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var d engine.Dashboard
	decode(t, w, &d)
	if d.Status != engine.StatusOK || d.Rows != 3 || d.Metrics == nil || d.Metrics.Regions != 2 {
		t.Fatalf("dashboard = %+v", d)
	}

	w = f.do(t, http.MethodGet, "/api/dashboard?category=")
	d = engine.Dashboard{}
	decode(t, w, &d)
	if d.Status != engine.StatusEmptySelection {
		t.Fatalf("status = %s", d.Status)
	}

	w = f.do(t, http.MethodGet, "/api/dashboard?year_min=2030&year_max=2031")
	d = engine.Dashboard{}
	decode(t, w, &d)
	if d.Status != engine.StatusEmptyResult {
		t.Fatalf("status = %s", d.Status)
	}
}

func TestOptionsAndRows(t *testing.T) {
	f := newFixture(t, false)

	var opts engine.Options
	decode(t, f.do(t, http.MethodGet, "/api/options?category=HEP"), &opts)
	if len(opts.Categories) != 2 || strings.Join(opts.Tracers, ",") != "Prevent" || opts.YearMax != 2021 {
		t.Fatalf("options = %+v", opts)
	}

	var page struct {
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
		Items  []struct {
			Region        string  `json:"region"`
			CountMillions float64 `json:"count_millions"`
		} `json:"items"`
	}
	decode(t, f.do(t, http.MethodGet, "/api/rows?limit=2&offset=1"), &page)
	if page.Total != 5 || page.Limit != 2 || len(page.Items) != 2 || page.Items[0].CountMillions != 1.5 {
		t.Fatalf("page = %+v", page)
	}

	decode(t, f.do(t, http.MethodGet, "/api/rows?limit=1000"), &page)
	if page.Limit != 20 {
		t.Fatalf("limit = %d, want clamp to 20", page.Limit)
	}
}

func TestUnmappedReport(t *testing.T) {
	f := newFixture(t, false)
	var report struct {
		UnmappedRows int `json:"unmapped_rows"`
		Items        []struct {
			Name string `json:"name"`
			Rows int    `json:"rows"`
		} `json:"items"`
	}
	decode(t, f.do(t, http.MethodGet, "/api/unmapped"), &report)
	if report.UnmappedRows != 1 || len(report.Items) != 1 || report.Items[0].Name != "Atlantis" {
		t.Fatalf("report = %+v", report)
	}
}

func TestChartsAndEmptySelection(t *testing.T) {
	f := newFixture(t, false)

	for _, path := range []string{"/chart/regions.png", "/chart/trend.png"} {
		w := f.do(t, http.MethodGet, path)
		if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
			t.Fatalf("%s: %d %s", path, w.Code, w.Header().Get("Content-Type"))
		}
		if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
			t.Fatalf("%s: not a PNG", path)
		}

		w = f.do(t, http.MethodGet, path+"?tracer=")
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s empty selection: %d", path, w.Code)
		}
		var body map[string]string
		decode(t, w, &body)
		if body["status"] != string(engine.StatusEmptySelection) || !strings.Contains(body["error"], "TRACER") {
			t.Fatalf("body = %v", body)
		}
	}
}

func TestExportRecordsHistory(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/export.csv?category=UHC")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	want := `attachment; filename="who_triple_billion_filtered_20240506_070809.csv"`
	if got := w.Header().Get("Content-Disposition"); got != want {
		t.Fatalf("Content-Disposition = %q", got)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "TRIPLE_BILLION,") {
		t.Fatalf("csv = %q", w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/export.xlsx")
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("xlsx: %d", w.Code)
	}

	if w := f.do(t, http.MethodGet, "/export.csv?category="); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty export status = %d", w.Code)
	}

	var exports struct {
		Total int `json:"total"`
		Items []struct {
			Format string `json:"format"`
			Rows   int    `json:"rows"`
		} `json:"items"`
	}
	decode(t, f.do(t, http.MethodGet, "/api/history/exports"), &exports)
	if exports.Total != 2 {
		t.Fatalf("exports = %+v", exports)
	}
}

func TestHistoryDisabled(t *testing.T) {
	f := newFixture(t, false)
	if w := f.do(t, http.MethodGet, "/api/history/loads"); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	f := newFixture(t, false)

	var first map[string]any
	decode(t, f.do(t, http.MethodPost, "/api/reload"), &first)

	updated := relayCSV + "UHC,Coverage,Kenya,2021,3000000\n"
	if err := os.WriteFile(f.path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	var second map[string]any
	decode(t, f.do(t, http.MethodPost, "/api/reload"), &second)
	if second["content_key"] == first["content_key"] || second["rows"].(float64) != 6 {
		t.Fatalf("reload: %v -> %v", first, second)
	}
}

func TestLoadErrorIs503(t *testing.T) {
	f := newFixture(t, false)
	if err := os.Remove(f.path); err != nil {
		t.Fatal(err)
	}

	w := f.do(t, http.MethodGet, "/api/dashboard")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	w = f.do(t, http.MethodGet, "/")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "could not be loaded") {
		t.Fatalf("page: %d", w.Code)
	}
}

func TestParseSelectionKeepsCommasInLabels(t *testing.T) {
	const csvData = `TRIPLE_BILLION,TRIPLE_BILLION_TRACER,GEO_NAME_SHORT,DIM_TIME,COUNT_N
"Healthier populations, HPOP","Overweight, children",Kenya,2020,1000000
"Healthier populations, HPOP",Tobacco,France,2020,2000000
`
	tbl, err := dataset.Parse("x", []byte(csvData))
	if err != nil {
		t.Fatal(err)
	}

	sel := ParseSelection(url.Values{
		"category": {"Healthier populations, HPOP"},
		"tracer":   {"Overweight, children"},
	}, tbl)
	if len(sel.Categories) != 1 || len(sel.Tracers) != 1 || sel.Tracers[0] != "Overweight, children" {
		t.Fatalf("sel = %+v", sel)
	}
	d := engine.Build(tbl, sel, engine.DefaultConfig())
	if !d.OK() || d.Rows != 1 {
		t.Fatalf("status = %s rows = %d", d.Status, d.Rows)
	}
}

func TestDashboardAPIWithCommaTracer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "relay.csv")
	data := "TRIPLE_BILLION,TRIPLE_BILLION_TRACER,GEO_NAME_SHORT,DIM_TIME,COUNT_N\n" +
		"HPOP,\"Overweight, children\",Kenya,2020,1000000\n" +
		"HPOP,Tobacco,France,2020,2000000\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	src := dataset.CachedSource{Cache: dataset.NewCache(), Source: dataset.FileSource{Path: path}}
	r := gin.New()
	NewHandler(src, nil, engine.DefaultConfig()).RegisterRoutes(r.Group(""))

	q := url.Values{"tracer": {"Overweight, children"}}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard?"+q.Encode(), nil))

	var d engine.Dashboard
	decode(t, w, &d)
	if d.Status != engine.StatusOK || d.Rows != 1 {
		t.Fatalf("status = %s rows = %d", d.Status, d.Rows)
	}
}

func TestParseSelectionResetsStaleTracers(t *testing.T) {
	tbl, err := dataset.Parse("x", []byte(relayCSV))
	if err != nil {
		t.Fatal(err)
	}

	// form built for UHC only, user adds HEP; the UHC tracer checkbox is all it sends
	sel := ParseSelection(url.Values{
		"category":       {"", "UHC", "HEP"},
		"shown_category": {"", "UHC"},
		"tracer":         {"", "Coverage"},
	}, tbl)
	if strings.Join(sel.Tracers, ",") != "Coverage,Protection,Prevent" {
		t.Fatalf("tracers after category change = %v", sel.Tracers)
	}

	// same categories: the checkboxes are honoured
	sel = ParseSelection(url.Values{
		"category":       {"", "HEP", "UHC"},
		"shown_category": {"", "UHC", "HEP"},
		"tracer":         {"", "Coverage"},
	}, tbl)
	if strings.Join(sel.Tracers, ",") != "Coverage" {
		t.Fatalf("tracers with unchanged categories = %v", sel.Tracers)
	}
}

func TestPageHeadingsFollowConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "relay.csv")
	if err := os.WriteFile(path, []byte(relayCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	src := dataset.CachedSource{Cache: dataset.NewCache(), Source: dataset.FileSource{Path: path}}
	r := gin.New()
	NewHandler(src, nil, engine.Config{GrowthWindow: 2, TopN: 3}).RegisterRoutes(r.Group(""))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	body := w.Body.String()
	for _, want := range []string{"Top 3 Regions", "Growth Rate (Last 2 Years)", `name="shown_category" value="UHC"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestPage(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/?category=UHC")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Regional Snapshot: UHC", "Top 5 Regions", "Growth Rate (Last 3 Years)", "n/a", "100.00%", "/export.csv?category=UHC"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	w = f.do(t, http.MethodGet, "/?category=")
	if !strings.Contains(w.Body.String(), "Please select at least one TRIPLE BILLION category.") {
		t.Fatal("warning not rendered")
	}
}
