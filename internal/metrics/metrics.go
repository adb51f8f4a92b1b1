package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triplebillion_cache_hits_total",
		Help: "Dataset loads served from the content-addressed cache",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triplebillion_cache_misses_total",
		Help: "Dataset loads whose content key was not cached locally",
	})
	CacheDerivationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triplebillion_cache_derivations_total",
		Help: "Times a normalized table was parsed and derived from source bytes",
	})
	RemoteCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triplebillion_remote_cache_hits_total",
		Help: "Local misses satisfied by the remote cache tier",
	})
	LoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "triplebillion_load_duration_ms",
		Help:    "Time to parse and normalize a source in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	LoadErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triplebillion_load_errors_total",
		Help: "Failed dataset loads by kind",
	}, []string{"kind"})
	UnmappedRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "triplebillion_unmapped_geography_rows",
		Help: "Rows in the current table whose geography classified as Other",
	})
	DashboardBuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triplebillion_dashboard_builds_total",
		Help: "Dashboard recomputations by resulting status",
	}, []string{"status"})
	ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triplebillion_exports_total",
		Help: "Filtered-subset exports by format",
	}, []string{"format"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "triplebillion_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds by route",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route", "status"})
	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "triplebillion_ws_clients",
		Help: "Connected websocket sessions",
	})
)

func init() {
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheDerivationsTotal)
	prometheus.MustRegister(RemoteCacheHitsTotal)
	prometheus.MustRegister(LoadDurationMs)
	prometheus.MustRegister(LoadErrorsTotal)
	prometheus.MustRegister(UnmappedRows)
	prometheus.MustRegister(DashboardBuildsTotal)
	prometheus.MustRegister(ExportsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(WSClients)
}

// Handler exposes the default registry for scraping at /metrics.
func Handler() http.Handler { return promhttp.Handler() }

// Middleware records request duration under the matched route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDurationMs.WithLabelValues(route, http.StatusText(c.Writer.Status())).
			Observe(float64(time.Since(start).Milliseconds()))
	}
}
