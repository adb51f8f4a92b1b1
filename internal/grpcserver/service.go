package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"triplebillion/internal/engine"
)

const serviceName = "triplebillion.v1.DashboardService"

// OptionsRequest asks for the filter choices. Nil Categories means all categories.
type OptionsRequest struct {
	Categories []string `json:"categories"`
}

type OptionsResponse struct {
	Options engine.Options `json:"options"`
}

// DashboardRequest asks for one recompute. A nil Selection means the default
// selection.
type DashboardRequest struct {
	Selection *engine.Selection `json:"selection,omitempty"`
}

type DashboardResponse struct {
	Dashboard engine.Dashboard `json:"dashboard"`
}

// DashboardServer is implemented by Server.
type DashboardServer interface {
	GetOptions(context.Context, *OptionsRequest) (*OptionsResponse, error)
	GetDashboard(context.Context, *DashboardRequest) (*DashboardResponse, error)
}

// ServiceDesc is registered by hand in place of generated stubs.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOptions", Handler: getOptionsHandler},
		{MethodName: "GetDashboard", Handler: getDashboardHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "triplebillion/v1/dashboard",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv DashboardServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getOptionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(OptionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DashboardServer).GetOptions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetOptions"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DashboardServer).GetOptions(ctx, req.(*OptionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getDashboardHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DashboardRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DashboardServer).GetDashboard(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetDashboard"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DashboardServer).GetDashboard(ctx, req.(*DashboardRequest))
	}
	return interceptor(ctx, in, info, handler)
}
