package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
	"triplebillion/internal/grpcserver"
	"triplebillion/internal/logger"
	"triplebillion/pkg/utils"
)

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()

	cfg := utils.LoadAppConfig()
	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		l.Error("grpc_listen_error", "addr", cfg.GRPCAddr, "err", err)
		os.Exit(1)
	}

	opts := []dataset.CacheOption{dataset.WithLogger(l)}
	if rc := utils.OpenRedis(cfg.Redis); rc != nil {
		defer rc.Close()
		opts = append(opts, dataset.WithRemote(dataset.NewRedisStore(rc, cfg.Redis.TTL)))
	}
	tables := dataset.CachedSource{
		Cache:  dataset.NewCache(opts...),
		Source: dataset.FileSource{Path: cfg.DataPath},
	}
	svc := grpcserver.NewServer(tables, engine.Config{GrowthWindow: cfg.GrowthWindow, TopN: cfg.TopN})

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor()))
	grpcserver.Register(grpcServer, svc)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		l.Info("shutdown_signal", "signal", sig.String())
		grpcServer.GracefulStop()
	}()

	l.Info("grpc_listen", "addr", cfg.GRPCAddr, "data", cfg.DataPath)
	if err := grpcServer.Serve(listener); err != nil {
		l.Error("grpc_serve_error", "err", err)
		os.Exit(1)
	}
}
