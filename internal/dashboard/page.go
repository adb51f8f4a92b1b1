package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"triplebillion/internal/engine"
	"triplebillion/internal/logger"
	"triplebillion/pkg/models"
)

// MaxPageRows caps the raw-data table on the HTML page.
const MaxPageRows = 500

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"fmt2":    func(v float64) string { return fmt.Sprintf("%.2f", engine.Round2(v)) },
	"growth":  formatGrowth,
	"inc":     func(i int) int { return i + 1 },
	"checked": contains,
}).ParseFS(templateFS, "templates/dashboard.html"))

func formatGrowth(g engine.Growth) string {
	if !g.Defined() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", engine.Round2(g.Value()))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type pageData struct {
	Error     string
	Source    string
	Options   engine.Options
	Dashboard engine.Dashboard
	Rows      []models.IndicatorRow
	Truncated bool
	Query     template.URL

	TopN         int
	GrowthWindow int
}

func (h *Handler) page(c *gin.Context) {
	t, err := h.Tables.Table(c.Request.Context())
	if err != nil {
		logger.L().Error("dataset_load_error", "err", err, "request_id", logger.GetRequestID(c))
		h.renderPage(c, http.StatusServiceUnavailable, pageData{Error: err.Error()})
		return
	}

	d := h.build(c, t)
	data := pageData{
		Source:    t.Source(),
		Options:   engine.OptionsFor(t, engine.Categories(t)),
		Dashboard: d,
		Query:     template.URL(c.Request.URL.RawQuery),

		TopN:         h.Config.TopN,
		GrowthWindow: h.Config.GrowthWindow,
	}
	// tracer choices depend on the selected categories
	data.Options.Tracers = engine.TracerOptions(t, d.Selection.Categories)
	if d.OK() {
		data.Rows = d.View().Page(0, MaxPageRows)
		data.Truncated = d.Rows > MaxPageRows
	}
	h.renderPage(c, http.StatusOK, data)
}

func (h *Handler) renderPage(c *gin.Context, code int, data pageData) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		logger.L().Error("page_render_error", "err", err)
		c.String(http.StatusInternalServerError, "render failed")
		return
	}
	c.Data(code, "text/html; charset=utf-8", buf.Bytes())
}
