package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"triplebillion/internal/dataset"
	"triplebillion/internal/engine"
	"triplebillion/internal/logger"
	"triplebillion/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler runs one session per connection: every filter message triggers one
// full recompute against the current table.
func WSHandler(hub *Hub, tables dataset.Provider, cfg engine.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		l := logger.L().With("request_id", logger.GetRequestID(c))
		cl := hub.add(ws)
		l.Info("ws_connected", "clients", hub.Stats().Clients)

		_ = cl.writeJSON(Welcome{Type: TypeWelcome, Transport: "websocket", Clients: hub.Stats().Clients})

		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				break
			}
			resp := handle(c.Request.Context(), tables, cfg, msg)
			if resp.Type == TypeError {
				l.Warn("ws_request_error", "err", resp.Error)
			}
			if err := cl.writeJSON(resp); err != nil {
				break
			}
		}

		hub.remove(cl)
		l.Info("ws_disconnected", "clients", hub.Stats().Clients)
	}
}

func handle(ctx context.Context, tables dataset.Provider, cfg engine.Config, msg []byte) Response {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return Response{Type: TypeError, Error: "invalid message: " + err.Error()}
	}

	t, err := tables.Table(ctx)
	if err != nil {
		return Response{Type: TypeError, Error: err.Error()}
	}

	switch req.Type {
	case TypeFilter:
		sel := engine.DefaultSelection(t)
		if req.Selection != nil {
			sel = engine.Restrict(t, *req.Selection)
		}
		d := engine.Build(t, sel, cfg)
		metrics.DashboardBuildsTotal.WithLabelValues(string(d.Status)).Inc()
		return Response{Type: TypeDashboard, Dashboard: &d}
	case TypeOptions:
		cats := engine.Categories(t)
		if req.Selection != nil {
			cats = req.Selection.Categories
		}
		opts := engine.OptionsFor(t, cats)
		return Response{Type: TypeOptions, Options: &opts}
	default:
		return Response{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", req.Type)}
	}
}
