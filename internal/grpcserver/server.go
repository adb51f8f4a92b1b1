package grpcserver

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
	"triplebillion/internal/logger"
	"triplebillion/internal/metrics"
)

type Server struct {
	Tables dataset.Provider
	Config engine.Config
}

func NewServer(tables dataset.Provider, cfg engine.Config) *Server {
	return &Server{Tables: tables, Config: cfg}
}

func (s *Server) GetOptions(ctx context.Context, req *OptionsRequest) (*OptionsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	t, err := s.table(ctx)
	if err != nil {
		return nil, err
	}

	cats := req.Categories
	if cats == nil {
		cats = engine.Categories(t)
	}
	return &OptionsResponse{Options: engine.OptionsFor(t, cats)}, nil
}

func (s *Server) GetDashboard(ctx context.Context, req *DashboardRequest) (*DashboardResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	t, err := s.table(ctx)
	if err != nil {
		return nil, err
	}

	sel := engine.DefaultSelection(t)
	if req.Selection != nil {
		sel = engine.Restrict(t, *req.Selection)
	}
	d := engine.Build(t, sel, s.Config)
	metrics.DashboardBuildsTotal.WithLabelValues(string(d.Status)).Inc()
	return &DashboardResponse{Dashboard: d}, nil
}

func (s *Server) table(ctx context.Context) (*dataset.Table, error) {
	t, err := s.Tables.Table(ctx)
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, dataset.ErrNotFound):
		return nil, status.Error(codes.NotFound, err.Error())
	case errors.Is(err, dataset.ErrMalformed):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	default:
		return nil, status.Error(codes.Internal, "load failed")
	}
}

// LoggingInterceptor logs every unary call with its status code.
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.L().Debug("grpc_call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
