// Package dashboard serves the HTML dashboard, its JSON API, charts and exports.
package dashboard

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"triplebillion/internal/chart"
	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
	"triplebillion/internal/export"
	"triplebillion/internal/history"
	"triplebillion/internal/logger"
	"triplebillion/internal/metrics"
)

// Source is the current table plus an explicit reload.
type Source interface {
	dataset.Provider
	Reload(ctx context.Context) (*dataset.Table, error)
}

type Handler struct {
	Tables  Source
	History *history.Repo // nil disables the ledger endpoints
	Config  engine.Config
	Now     func() time.Time
}

func NewHandler(tables Source, hist *history.Repo, cfg engine.Config) *Handler {
	return &Handler{Tables: tables, History: hist, Config: cfg, Now: time.Now}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", h.page)

	api := rg.Group("/api")
	api.GET("/options", h.options)
	api.GET("/dashboard", h.dashboard)
	api.GET("/rows", h.rows)
	api.GET("/unmapped", h.unmapped)
	api.POST("/reload", h.reload)
	api.GET("/history/loads", h.historyLoads)
	api.GET("/history/exports", h.historyExports)

	rg.GET("/chart/regions.png", h.regionsChart)
	rg.GET("/chart/trend.png", h.trendChart)

	rg.GET("/export.csv", h.exportFile(export.CSV))
	rg.GET("/export.xlsx", h.exportFile(export.XLSX))
}

// table loads the current table, answering 503 on failure.
func (h *Handler) table(c *gin.Context) (*dataset.Table, bool) {
	t, err := h.Tables.Table(c.Request.Context())
	if err != nil {
		logger.L().Error("dataset_load_error", "err", err, "request_id", logger.GetRequestID(c))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return nil, false
	}
	return t, true
}

// build recomputes the dashboard for the request's query.
func (h *Handler) build(c *gin.Context, t *dataset.Table) engine.Dashboard {
	d := engine.Build(t, ParseSelection(c.Request.URL.Query(), t), h.Config)
	metrics.DashboardBuildsTotal.WithLabelValues(string(d.Status)).Inc()
	return d
}

func (h *Handler) options(c *gin.Context) {
	t, ok := h.table(c)
	if !ok {
		return
	}
	cats, present := listParam(c.Request.URL.Query(), "category")
	if !present {
		cats = engine.Categories(t)
	}
	c.JSON(http.StatusOK, engine.OptionsFor(t, cats))
}

func (h *Handler) dashboard(c *gin.Context) {
	t, ok := h.table(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.build(c, t))
}

func (h *Handler) rows(c *gin.Context) {
	t, ok := h.table(c)
	if !ok {
		return
	}
	q := c.Request.URL.Query()
	limit := intParam(q, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := intParam(q, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	v := engine.Filter(t, ParseSelection(q, t))
	c.JSON(http.StatusOK, gin.H{
		"total":  v.Len(),
		"limit":  limit,
		"offset": offset,
		"items":  v.Page(offset, limit),
	})
}

func (h *Handler) unmapped(c *gin.Context) {
	t, ok := h.table(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source":        t.Source(),
		"content_key":   t.Key(),
		"unmapped_rows": t.UnmappedRows(),
		"blank_counts":  t.BlankCounts(),
		"items":         t.Unmapped(),
	})
}

func (h *Handler) reload(c *gin.Context) {
	t, err := h.Tables.Reload(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source":      t.Source(),
		"content_key": t.Key(),
		"rows":        t.Len(),
		"loaded_at":   t.LoadedAt(),
	})
}

func (h *Handler) historyLoads(c *gin.Context) {
	if h.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	q := c.Request.URL.Query()
	items, total, err := h.History.ListLoads(c.Request.Context(), intParam(q, "limit", 50), intParam(q, "offset", 0))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "items": items})
}

func (h *Handler) historyExports(c *gin.Context) {
	if h.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	q := c.Request.URL.Query()
	items, total, err := h.History.ListExports(c.Request.Context(), intParam(q, "limit", 50), intParam(q, "offset", 0))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "items": items})
}

// notRenderable answers 422 for dashboards that have nothing to draw.
func notRenderable(c *gin.Context, d engine.Dashboard) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": d.Warning, "status": d.Status})
}

func (h *Handler) regionsChart(c *gin.Context) {
	h.renderChart(c, func(buf *bytes.Buffer, d engine.Dashboard) error {
		return chart.RegionPie(buf, "Regional Snapshot: "+d.Title, d.ByRegion)
	})
}

func (h *Handler) trendChart(c *gin.Context) {
	h.renderChart(c, func(buf *bytes.Buffer, d engine.Dashboard) error {
		return chart.TrendLine(buf, "Trend by Region: "+d.Title, d.Trend)
	})
}

func (h *Handler) renderChart(c *gin.Context, draw func(*bytes.Buffer, engine.Dashboard) error) {
	t, ok := h.table(c)
	if !ok {
		return
	}
	d := h.build(c, t)
	if !d.OK() {
		notRenderable(c, d)
		return
	}

	var buf bytes.Buffer
	if err := draw(&buf, d); err != nil {
		if errors.Is(err, chart.ErrNoData) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "status": d.Status})
			return
		}
		logger.L().Error("chart_render_error", "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *Handler) exportFile(f export.Format) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := h.table(c)
		if !ok {
			return
		}
		d := h.build(c, t)
		if !d.OK() {
			notRenderable(c, d)
			return
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, f, d.View()); err != nil {
			logger.L().Error("export_error", "format", f, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}

		name := export.Filename(export.Prefix, string(f), h.Now())
		metrics.ExportsTotal.WithLabelValues(string(f)).Inc()
		h.recordExport(c.Request.Context(), t, name, f, d)

		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Header("Content-Length", strconv.Itoa(buf.Len()))
		c.Data(http.StatusOK, f.ContentType(), buf.Bytes())
	}
}

// recordExport writes the ledger entry. Ledger failures never fail the download.
func (h *Handler) recordExport(ctx context.Context, t *dataset.Table, name string, f export.Format, d engine.Dashboard) {
	if h.History == nil {
		return
	}
	l := logger.L()
	loadID, err := h.History.LatestLoadID(ctx, t.Key())
	if err != nil {
		l.Warn("history_lookup_error", "err", err)
	}
	if _, err := h.History.RecordExport(ctx, loadID, name, string(f), d.Rows, d.Selection); err != nil {
		l.Warn("history_export_error", "file", name, "err", err)
		return
	}
	l.Info("export_recorded", "file", name, "rows", d.Rows, "categories", strings.Join(d.Selection.Categories, "|"))
}
