package grpcserver

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
)

const relayCSV = `TRIPLE_BILLION,TRIPLE_BILLION_TRACER,GEO_NAME_SHORT,DIM_TIME,COUNT_N
UHC,Coverage,Kenya,2019,100000000
UHC,Coverage,Kenya,2020,150000000
UHC,Coverage,Kenya,2021,120000000
HEP,Prevent,India,2021,7000000
`

func startServer(t *testing.T, src dataset.Source) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	s := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor()))
	Register(s, NewServer(dataset.CachedSource{Cache: dataset.NewCache(), Source: src}, engine.DefaultConfig()))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDashboardOverGRPC(t *testing.T) {
	c := startServer(t, dataset.BytesSource{Label: "relay.csv", Data: []byte(relayCSV)})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts, err := c.GetOptions(ctx, &OptionsRequest{Categories: []string{"UHC"}})
	if err != nil {
		t.Fatalf("GetOptions: %v", err)
	}
	if len(opts.Options.Categories) != 2 || len(opts.Options.Tracers) != 1 || opts.Options.YearMax != 2021 {
		t.Fatalf("options = %+v", opts.Options)
	}

	sel := engine.Selection{Categories: []string{"UHC"}, Tracers: []string{"Coverage"}, YearMin: 2019, YearMax: 2021}
	resp, err := c.GetDashboard(ctx, &DashboardRequest{Selection: &sel})
	if err != nil {
		t.Fatalf("GetDashboard: %v", err)
	}
	d := resp.Dashboard
	if d.Status != engine.StatusOK || d.Rows != 3 {
		t.Fatalf("dashboard = %+v", d)
	}
	if len(d.Growth) != 3 || d.Growth[0].Rate != nil {
		t.Fatalf("growth = %+v", d.Growth)
	}
	if got := *d.Growth[1].Rate; got < 49.999 || got > 50.001 {
		t.Errorf("2020 growth = %v, want 50", got)
	}
	if got := *d.Growth[2].Rate; got < -20.001 || got > -19.999 {
		t.Errorf("2021 growth = %v, want -20", got)
	}

	resp, err = c.GetDashboard(ctx, &DashboardRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Dashboard.Rows != 4 {
		t.Fatalf("default selection rows = %d, want 4", resp.Dashboard.Rows)
	}
}

func TestLoadErrorCodes(t *testing.T) {
	ctx := context.Background()

	missing := startServer(t, dataset.FileSource{Path: filepath.Join(t.TempDir(), "absent.csv")})
	_, err := missing.GetDashboard(ctx, &DashboardRequest{})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("missing file code = %v (%v)", status.Code(err), err)
	}

	bad := startServer(t, dataset.BytesSource{Data: []byte("a,b\n1,2\n")})
	_, err = bad.GetOptions(ctx, &OptionsRequest{})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("malformed code = %v (%v)", status.Code(err), err)
	}
}

func TestNilRequest(t *testing.T) {
	s := NewServer(nil, engine.DefaultConfig())
	if _, err := s.GetDashboard(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v", status.Code(err))
	}
	if _, err := s.GetOptions(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v", status.Code(err))
	}
}
