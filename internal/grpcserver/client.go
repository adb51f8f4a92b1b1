package grpcserver

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls DashboardService with the JSON codec.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr without TLS.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) GetOptions(ctx context.Context, req *OptionsRequest) (*OptionsResponse, error) {
	out := new(OptionsResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/GetOptions", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDashboard(ctx context.Context, req *DashboardRequest) (*DashboardResponse, error) {
	out := new(DashboardResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/GetDashboard", req, out); err != nil {
		return nil, err
	}
	return out, nil
}
