package session

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
)

const relayCSV = `TRIPLE_BILLION,TRIPLE_BILLION_TRACER,GEO_NAME_SHORT,DIM_TIME,COUNT_N
UHC,Coverage,Kenya,2019,1000000
UHC,Coverage,Kenya,2020,1500000
UHC,Protection,France,2020,500000
HEP,Prevent,Japan,2020,2000000
`

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	tables := dataset.CachedSource{
		Cache:  dataset.NewCache(),
		Source: dataset.BytesSource{Label: "relay.csv", Data: []byte(relayCSV)},
	}
	r := gin.New()
	r.GET("/ws", WSHandler(hub, tables, engine.DefaultConfig()))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	var w Welcome
	readJSON(t, ws, &w)
	if w.Type != TypeWelcome || w.Clients < 1 {
		t.Fatalf("welcome = %+v", w)
	}
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := ws.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestFilterRoundTrip(t *testing.T) {
	_, srv := newTestServer(t)
	ws := dial(t, srv)

	sel := engine.Selection{
		Categories: []string{"UHC"},
		Tracers:    []string{"Coverage", "Prevent"},
		YearMin:    2019,
		YearMax:    2020,
	}
	if err := ws.WriteJSON(Request{Type: TypeFilter, Selection: &sel}); err != nil {
		t.Fatal(err)
	}

	var resp Response
	readJSON(t, ws, &resp)
	if resp.Type != TypeDashboard || resp.Dashboard == nil {
		t.Fatalf("resp = %+v", resp)
	}
	d := resp.Dashboard
	if d.Status != engine.StatusOK || d.Rows != 2 {
		t.Fatalf("dashboard = %+v", d)
	}
	// Prevent belongs to HEP and is dropped from the selection.
	if len(d.Selection.Tracers) != 1 || d.Selection.Tracers[0] != "Coverage" {
		t.Fatalf("selection tracers = %v", d.Selection.Tracers)
	}
	if len(d.Growth) != 2 || d.Growth[0].Rate != nil || d.Growth[1].Rate == nil || *d.Growth[1].Rate != 50 {
		t.Fatalf("growth = %+v", d.Growth)
	}
}

func TestEmptySelectionAndOptions(t *testing.T) {
	_, srv := newTestServer(t)
	ws := dial(t, srv)

	empty := engine.Selection{Categories: []string{}, Tracers: []string{}, YearMin: 2019, YearMax: 2020}
	_ = ws.WriteJSON(Request{Type: TypeFilter, Selection: &empty})
	var resp Response
	readJSON(t, ws, &resp)
	if resp.Dashboard == nil || resp.Dashboard.Status != engine.StatusEmptySelection || resp.Dashboard.Warning == "" {
		t.Fatalf("resp = %+v", resp)
	}

	_ = ws.WriteJSON(Request{Type: TypeOptions, Selection: &engine.Selection{Categories: []string{"HEP"}}})
	resp = Response{}
	readJSON(t, ws, &resp)
	if resp.Type != TypeOptions || resp.Options == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Options.Categories) != 2 || len(resp.Options.Tracers) != 1 || resp.Options.Tracers[0] != "Prevent" {
		t.Fatalf("options = %+v", resp.Options)
	}

	_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`))
	resp = Response{}
	readJSON(t, ws, &resp)
	if resp.Type != TypeError {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestBroadcastReachesSessions(t *testing.T) {
	hub, srv := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	if n := hub.Stats().Clients; n != 2 {
		t.Fatalf("clients = %d, want 2", n)
	}

	hub.BroadcastJSON(NewChangeEvent("relay.csv", "abc"))
	for _, ws := range []*websocket.Conn{a, b} {
		var ev ChangeEvent
		readJSON(t, ws, &ev)
		if ev.Type != TypeDatasetChanged || ev.ContentKey != "abc" {
			t.Fatalf("event = %+v", ev)
		}
	}

	a.Close()
	deadline := time.Now().Add(5 * time.Second)
	for hub.Stats().Clients != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d after close, want 1", hub.Stats().Clients)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
