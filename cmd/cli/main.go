package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"triplebillion/internal/engine"
	"triplebillion/internal/grpcserver"
	"triplebillion/internal/session"
)

const (
	defaultBaseURL  = "http://localhost:8080"
	defaultGRPCAddr = "localhost:9090"
)

func main() {
	global := flag.NewFlagSet("triplebillion", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	grpcAddr := global.String("grpc", defaultGRPCAddr, "gRPC server address")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "options":
		handleOptions(ctx, client, *baseURL, rest)
	case "dashboard":
		handleDashboard(ctx, client, *baseURL, rest)
	case "rows":
		handleRows(ctx, client, *baseURL, rest)
	case "unmapped":
		var out any
		if err := doJSON(ctx, client, http.MethodGet, *baseURL+"/api/unmapped", nil, &out); err != nil {
			log.Fatalf("unmapped failed: %v", err)
		}
		printJSON(out)
	case "reload":
		var out any
		if err := doJSON(ctx, client, http.MethodPost, *baseURL+"/api/reload", nil, &out); err != nil {
			log.Fatalf("reload failed: %v", err)
		}
		printJSON(out)
	case "history":
		handleHistory(ctx, client, *baseURL, rest)
	case "export":
		handleExport(ctx, client, *baseURL, rest)
	case "watch":
		handleWatch(*baseURL, rest)
	case "grpc":
		handleGRPC(ctx, *grpcAddr, rest)
	default:
		printUsage()
		os.Exit(1)
	}
}

// selectionFlags registers the filter flags shared by several subcommands.
type selectionFlags struct {
	fs       *flag.FlagSet
	category *string
	tracer   *string
	yearMin  *int
	yearMax  *int
}

func newSelectionFlags(fs *flag.FlagSet) *selectionFlags {
	return &selectionFlags{
		fs:       fs,
		category: fs.String("category", "", "comma-separated TRIPLE_BILLION categories (empty string selects none)"),
		tracer:   fs.String("tracer", "", "comma-separated tracers (empty string selects none)"),
		yearMin:  fs.Int("year-min", 0, "first year, inclusive"),
		yearMax:  fs.Int("year-max", 0, "last year, inclusive"),
	}
}

// set reports which flags were given explicitly.
func (s *selectionFlags) set() map[string]bool {
	seen := make(map[string]bool)
	s.fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	return seen
}

// query forwards only explicitly given flags so the server applies its defaults.
func (s *selectionFlags) query() url.Values {
	q := url.Values{}
	seen := s.set()
	if seen["category"] {
		addList(q, "category", *s.category)
	}
	if seen["tracer"] {
		addList(q, "tracer", *s.tracer)
	}
	if seen["year-min"] {
		q.Set("year_min", fmt.Sprint(*s.yearMin))
	}
	if seen["year-max"] {
		q.Set("year_max", fmt.Sprint(*s.yearMax))
	}
	return q
}

// addList sends one value per label. An empty list is sent as a bare key so the
// server sees an explicit empty selection.
func addList(q url.Values, key, raw string) {
	items := splitList(raw)
	if len(items) == 0 {
		q.Set(key, "")
		return
	}
	for _, it := range items {
		q.Add(key, it)
	}
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// selection resolves the flags against the server's options, filling what was
// not given. It returns nil when nothing was given.
func (s *selectionFlags) selection(opts engine.Options) *engine.Selection {
	seen := s.set()
	if len(seen) == 0 {
		return nil
	}
	sel := engine.Selection{Categories: opts.Categories, Tracers: opts.Tracers, YearMin: opts.YearMin, YearMax: opts.YearMax}
	if seen["category"] {
		sel.Categories = splitList(*s.category)
	}
	if seen["tracer"] {
		sel.Tracers = splitList(*s.tracer)
	}
	if seen["year-min"] {
		sel.YearMin = *s.yearMin
	}
	if seen["year-max"] {
		sel.YearMax = *s.yearMax
	}
	return &sel
}

func handleOptions(ctx context.Context, client *http.Client, baseURL string, args []string) {
	fs := flag.NewFlagSet("options", flag.ExitOnError)
	sf := newSelectionFlags(fs)
	_ = fs.Parse(args)

	var opts engine.Options
	if err := doJSON(ctx, client, http.MethodGet, endpoint(baseURL, "/api/options", sf.query()), nil, &opts); err != nil {
		log.Fatalf("options failed: %v", err)
	}
	printJSON(opts)
}

func handleDashboard(ctx context.Context, client *http.Client, baseURL string, args []string) {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	sf := newSelectionFlags(fs)
	raw := fs.Bool("json", false, "print the raw dashboard JSON")
	_ = fs.Parse(args)

	var d engine.Dashboard
	if err := doJSON(ctx, client, http.MethodGet, endpoint(baseURL, "/api/dashboard", sf.query()), nil, &d); err != nil {
		log.Fatalf("dashboard failed: %v", err)
	}
	if *raw {
		printJSON(d)
		return
	}
	printDashboard(os.Stdout, d)
}

func handleRows(ctx context.Context, client *http.Client, baseURL string, args []string) {
	fs := flag.NewFlagSet("rows", flag.ExitOnError)
	sf := newSelectionFlags(fs)
	limit := fs.Int("limit", 20, "page size (max 100)")
	offset := fs.Int("offset", 0, "offset")
	_ = fs.Parse(args)

	q := sf.query()
	q.Set("limit", fmt.Sprint(*limit))
	q.Set("offset", fmt.Sprint(*offset))

	var out any
	if err := doJSON(ctx, client, http.MethodGet, endpoint(baseURL, "/api/rows", q), nil, &out); err != nil {
		log.Fatalf("rows failed: %v", err)
	}
	printJSON(out)
}

func handleHistory(ctx context.Context, client *http.Client, baseURL string, args []string) {
	if len(args) == 0 || (args[0] != "loads" && args[0] != "exports") {
		log.Fatal("usage: triplebillion history <loads|exports>")
	}
	var out any
	if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/history/"+args[0], nil, &out); err != nil {
		log.Fatalf("history failed: %v", err)
	}
	printJSON(out)
}

func handleExport(ctx context.Context, client *http.Client, baseURL string, args []string) {
	if len(args) == 0 || (args[0] != "csv" && args[0] != "xlsx") {
		log.Fatal("usage: triplebillion export <csv|xlsx> [flags]")
	}
	format := args[0]

	fs := flag.NewFlagSet("export "+format, flag.ExitOnError)
	sf := newSelectionFlags(fs)
	dir := fs.String("dir", ".", "output directory")
	_ = fs.Parse(args[1:])

	path, n, err := download(ctx, client, endpoint(baseURL, "/export."+format, sf.query()), *dir)
	if err != nil {
		log.Fatalf("export %s failed: %v", format, err)
	}
	log.Printf("✅ wrote %d bytes to %s", n, path)
}

// download saves the response body under the server-chosen file name.
func download(ctx context.Context, client *http.Client, endpoint, dir string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("GET %s failed: %s", endpoint, strings.TrimSpace(string(data)))
	}

	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	if err != nil || params["filename"] == "" {
		return "", 0, errors.New("response has no file name")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(dir, filepath.Base(params["filename"]))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	return path, n, err
}

func handleWatch(baseURL string, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	sf := newSelectionFlags(fs)
	_ = fs.Parse(args)

	wsURL, err := websocketURL(baseURL, "/ws")
	if err != nil {
		log.Fatalf("invalid api url: %v", err)
	}
	for {
		if err := runWatch(wsURL, sf); err != nil {
			log.Printf("[watch] disconnected: %v", err)
		}
		time.Sleep(1 * time.Second)
	}
}

// runWatch requests a dashboard and requests it again whenever the server
// reports a dataset change.
func runWatch(wsURL string, sf *selectionFlags) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[watch] connected to %s", wsURL)

	if err := conn.WriteJSON(session.Request{Type: session.TypeOptions}); err != nil {
		return err
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			fmt.Println(string(msg))
			continue
		}

		switch head.Type {
		case session.TypeOptions:
			var resp session.Response
			if err := json.Unmarshal(msg, &resp); err != nil || resp.Options == nil {
				return fmt.Errorf("bad options message: %s", msg)
			}
			req := session.Request{Type: session.TypeFilter, Selection: sf.selection(*resp.Options)}
			if err := conn.WriteJSON(req); err != nil {
				return err
			}
		case session.TypeDashboard:
			var resp session.Response
			if err := json.Unmarshal(msg, &resp); err != nil || resp.Dashboard == nil {
				return fmt.Errorf("bad dashboard message: %s", msg)
			}
			printDashboard(os.Stdout, *resp.Dashboard)
		case session.TypeDatasetChanged:
			log.Printf("[watch] dataset changed: %s", msg)
			if err := conn.WriteJSON(session.Request{Type: session.TypeOptions}); err != nil {
				return err
			}
		default:
			fmt.Println(string(msg))
		}
	}
}

func handleGRPC(ctx context.Context, addr string, args []string) {
	if len(args) == 0 || (args[0] != "options" && args[0] != "dashboard") {
		log.Fatal("usage: triplebillion grpc <options|dashboard> [flags]")
	}
	fs := flag.NewFlagSet("grpc "+args[0], flag.ExitOnError)
	sf := newSelectionFlags(fs)
	_ = fs.Parse(args[1:])

	c, err := grpcserver.Dial(addr)
	if err != nil {
		log.Fatalf("grpc: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	optReq := &grpcserver.OptionsRequest{}
	if sf.set()["category"] {
		optReq.Categories = splitList(*sf.category)
	}
	opts, err := c.GetOptions(ctx, optReq)
	if err != nil {
		log.Fatalf("grpc options failed: %v", err)
	}
	if args[0] == "options" {
		printJSON(opts.Options)
		return
	}

	resp, err := c.GetDashboard(ctx, &grpcserver.DashboardRequest{Selection: sf.selection(opts.Options)})
	if err != nil {
		log.Fatalf("grpc dashboard failed: %v", err)
	}
	printDashboard(os.Stdout, resp.Dashboard)
}

func printDashboard(w io.Writer, d engine.Dashboard) {
	if !d.OK() {
		fmt.Fprintf(w, "⚠️  %s\n", d.Warning)
		return
	}
	m := d.Metrics
	fmt.Fprintf(w, "%s (%d rows)\n", d.Title, d.Rows)
	fmt.Fprintf(w, "  total %.2fM | years %d | regions %d | avg/year %.2fM\n",
		m.TotalMillions, m.YearsCovered, m.Regions, m.AvgPerYearMillions)
	fmt.Fprintln(w, "  top regions:")
	for i, r := range d.TopRegions {
		fmt.Fprintf(w, "    %d. %-22s %10.2f\n", i+1, r.Region, r.CountMillions)
	}
	fmt.Fprintln(w, "  growth:")
	for _, g := range d.Growth {
		if g.Defined() {
			fmt.Fprintf(w, "    %d %8.2f%%\n", g.Year, g.Value())
		} else {
			fmt.Fprintf(w, "    %d %9s\n", g.Year, "n/a")
		}
	}
}

func endpoint(baseURL, path string, q url.Values) string {
	if len(q) == 0 {
		return baseURL + path
	}
	return baseURL + path + "?" + q.Encode()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("triplebillion [-api URL] [-grpc ADDR] <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  options|dashboard|rows  [-category a,b] [-tracer x,y] [-year-min N] [-year-max N]")
	fmt.Println("  unmapped")
	fmt.Println("  reload")
	fmt.Println("  history loads|exports")
	fmt.Println("  export csv|xlsx [-dir DIR]")
	fmt.Println("  watch")
	fmt.Println("  grpc options|dashboard")
}
