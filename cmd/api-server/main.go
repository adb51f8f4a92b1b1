package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"triplebillion/internal/dashboard"
	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
	"triplebillion/internal/history"
	"triplebillion/internal/logger"
	"triplebillion/internal/metrics"
	"triplebillion/internal/session"
	"triplebillion/pkg/database"
	"triplebillion/pkg/utils"
)

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()

	appCfg := utils.LoadAppConfig()
	dbCfg := database.DefaultConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		l.Error("db_open_error", "path", dbCfg.Path, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		l.Error("db_migrate_error", "err", err)
		os.Exit(1)
	}
	hist := history.NewRepo(db)

	hub := session.NewHub()
	src := dataset.FileSource{Path: appCfg.DataPath}

	opts := []dataset.CacheOption{
		dataset.WithLogger(l),
	}
	if rc := utils.OpenRedis(appCfg.Redis); rc != nil {
		defer rc.Close()
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "addr", appCfg.Redis.Addr, "err", err)
		} else {
			l.Info("redis_ping_ok", "addr", appCfg.Redis.Addr)
		}
		opts = append(opts, dataset.WithRemote(dataset.NewRedisStore(rc, appCfg.Redis.TTL)))
	} else {
		l.Info("redis_disabled")
	}

	var cache *dataset.Cache
	// Fires on the first successful load too, so a file that appears after boot
	// still gets a ledger row.
	opts = append(opts, dataset.WithOnChange(func(source, _, newKey string) {
		if t, ok := cache.Current(source); ok {
			if _, err := hist.RecordLoad(context.Background(), t); err != nil {
				l.Warn("history_load_error", "err", err)
			}
		}
		hub.BroadcastJSON(session.NewChangeEvent(filepath.Base(source), newKey))
	}))
	cache = dataset.NewCache(opts...)
	tables := dataset.CachedSource{Cache: cache, Source: src}

	// Load once at startup so a bad input shows up in the log immediately.
	if _, err := tables.Table(context.Background()); err != nil {
		l.Error("dataset_load_error", "path", appCfg.DataPath, "err", err)
	}

	engCfg := engine.Config{GrowthWindow: appCfg.GrowthWindow, TopN: appCfg.TopN}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), logger.RequestID(), logger.Access(l), metrics.Middleware())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/ws", session.WSHandler(hub, tables, engCfg))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path, "data": appCfg.DataPath})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"db_error":   err.Error(),
				"ws_clients": stats.Clients,
			})
			return
		}
		t, err := tables.Table(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"data_error": err.Error(),
				"ws_clients": stats.Clients,
			})
			return
		}

		cs := cache.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"rows":        t.Len(),
			"content_key": t.Key(),
			"cache":       cs,
			"ws_clients":  stats.Clients,
		})
	})

	dash := dashboard.NewHandler(tables, hist, engCfg)
	dash.RegisterRoutes(router.Group(""))

	httpSrv := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Info("http_listen", "addr", appCfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		l.Info("shutdown_signal", "signal", sig.String())
	case err := <-errCh:
		l.Error("server_error", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		l.Error("http_shutdown_error", "err", err)
	}

	wg.Wait()
	l.Info("server_stopped")
}
