package session

import (
	"time"

	"triplebillion/internal/engine"
)

// Message types.
const (
	TypeWelcome        = "welcome"
	TypeFilter         = "filter"
	TypeOptions        = "options"
	TypeDashboard      = "dashboard"
	TypeError          = "error"
	TypeDatasetChanged = "dataset_changed"
)

// Request is what a session sends. A nil Selection means the default selection
// for "filter" and every category for "options".
type Request struct {
	Type      string            `json:"type"`
	Selection *engine.Selection `json:"selection,omitempty"`
}

// Response is what the server sends back for one Request.
type Response struct {
	Type      string            `json:"type"`
	Dashboard *engine.Dashboard `json:"dashboard,omitempty"`
	Options   *engine.Options   `json:"options,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Welcome is sent once on connect.
type Welcome struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Clients   int    `json:"clients"`
}

// ChangeEvent tells every session that the source content changed.
type ChangeEvent struct {
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	ContentKey string    `json:"content_key"`
	At         time.Time `json:"at"`
}

func NewChangeEvent(source, key string) ChangeEvent {
	return ChangeEvent{Type: TypeDatasetChanged, Source: source, ContentKey: key, At: time.Now().UTC()}
}
